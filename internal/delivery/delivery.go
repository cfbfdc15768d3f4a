// Package delivery places downloaded torrent files: into a watch
// directory by default, or into a configured torrent client.
package delivery

import (
	"fmt"

	"github.com/s0up4200/archiverctl/internal/config"
)

// Confirm is an injected decision point for anything that needs user
// approval, such as creating a missing directory. It blocks until the
// collaborator answers.
type Confirm func(question string) bool

// Deliverer places a torrent payload somewhere a torrent client will
// pick it up.
type Deliverer interface {
	// Deliver places the torrent. path is the absolute local file the
	// payload was written to, or empty when it went to a remote client.
	Deliver(data []byte, filename string) (path string, err error)

	// StalledCount reports the number of stalled downloads the backend
	// can see. Backends that cannot tell report 0.
	StalledCount() (int, error)
}

// ForContainer resolves the delivery backend for a container: the named
// torrent client when Client is set, the watch directory otherwise.
func ForContainer(cfg *config.Config, container config.Container, confirm Confirm) (Deliverer, error) {
	if container.Client == "" {
		return NewWatchDir(container.WatchDirectory, confirm), nil
	}

	if qbit, ok := cfg.QBitClients[container.Client]; ok {
		return NewQBit(qbit)
	}
	if rtorr, ok := cfg.RTorrClients[container.Client]; ok {
		return NewRTorrent(rtorr)
	}
	if del, ok := cfg.DelugeClients[container.Client]; ok {
		return NewDeluge(del)
	}
	return nil, fmt.Errorf("no configured torrent client named %q", container.Client)
}
