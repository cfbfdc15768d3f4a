package delivery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/archiverctl/internal/config"
)

func acceptAll(string) bool  { return true }
func declineAll(string) bool { return false }

func TestWatchDirDeliver(t *testing.T) {
	dir := t.TempDir()
	w := NewWatchDir(dir, declineAll) // dir exists, confirm must not be consulted

	path, err := w.Deliver([]byte("payload"), "abc.torrent")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "abc.torrent"), path)
	assert.True(t, filepath.IsAbs(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestWatchDirCreatesMissingDirectoryWhenConfirmed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "watch", "Foo")

	asked := false
	confirm := func(q string) bool {
		asked = true
		assert.Contains(t, q, dir)
		return true
	}

	w := NewWatchDir(dir, confirm)
	path, err := w.Deliver([]byte("payload"), "abc.torrent")
	require.NoError(t, err)

	assert.True(t, asked)
	assert.FileExists(t, path)
}

func TestWatchDirDeclinedConfirmAborts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "watch")

	w := NewWatchDir(dir, declineAll)
	_, err := w.Deliver([]byte("payload"), "abc.torrent")
	assert.Error(t, err)
	assert.NoDirExists(t, dir)
}

func TestForContainerDefaultsToWatchDir(t *testing.T) {
	cfg := config.DefaultConfig()
	container := config.Container{WatchDirectory: t.TempDir()}

	d, err := ForContainer(cfg, container, acceptAll)
	require.NoError(t, err)
	assert.IsType(t, &WatchDir{}, d)
}

func TestForContainerUnknownClient(t *testing.T) {
	cfg := config.DefaultConfig()
	container := config.Container{Client: "nope"}

	_, err := ForContainer(cfg, container, acceptAll)
	assert.Error(t, err)
}
