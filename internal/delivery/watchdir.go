package delivery

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// WatchDir delivers torrents by writing them into a local directory
// watched by a separate torrent client. A missing directory is only
// created after the confirm callback approves it.
type WatchDir struct {
	dir     string
	confirm Confirm
}

func NewWatchDir(dir string, confirm Confirm) *WatchDir {
	return &WatchDir{dir: dir, confirm: confirm}
}

// Deliver writes the torrent as a single whole-buffer write and returns
// the absolute path of the new file.
func (w *WatchDir) Deliver(data []byte, filename string) (string, error) {
	absDir, err := filepath.Abs(w.dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve watch directory: %w", err)
	}

	if _, err := os.Stat(absDir); os.IsNotExist(err) {
		if !w.confirm(fmt.Sprintf("WatchDirectory %q does not exist, create", absDir)) {
			return "", fmt.Errorf("watch directory %q does not exist", absDir)
		}
		if err := os.MkdirAll(absDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create watch directory: %w", err)
		}
	}

	path := filepath.Join(absDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write torrent file: %w", err)
	}

	log.Info().
		Str("path", path).
		Msg("saved torrent file to watch directory")

	return path, nil
}

// StalledCount always reports 0; a watch directory cannot track torrent
// status.
func (w *WatchDir) StalledCount() (int, error) {
	return 0, nil
}
