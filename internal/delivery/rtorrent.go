package delivery

import (
	"context"
	"fmt"

	rtorrent "github.com/autobrr/go-rtorrent"
	"github.com/rs/zerolog/log"

	"github.com/s0up4200/archiverctl/internal/config"
)

// RTorrent delivers torrents to an rTorrent instance over XML-RPC.
type RTorrent struct {
	client *rtorrent.Client
}

func NewRTorrent(cfg config.RTorrConfig) (*RTorrent, error) {
	rt := rtorrent.NewClient(rtorrent.Config{
		Addr:      cfg.URL,
		BasicUser: cfg.BasicUser,
		BasicPass: cfg.BasicPass,
	})

	if _, err := rt.Name(context.Background()); err != nil {
		log.Error().Err(err).Str("url", cfg.URL).Msg("failed to connect to rtorrent")
		return nil, fmt.Errorf("failed to connect to rtorrent: %w", err)
	}

	log.Debug().Str("url", cfg.URL).Msg("connected to rtorrent")
	return &RTorrent{client: rt}, nil
}

func (r *RTorrent) Deliver(data []byte, filename string) (string, error) {
	log.Debug().Str("name", filename).Msg("adding torrent to rtorrent")
	if err := r.client.AddTorrent(context.Background(), data); err != nil {
		return "", fmt.Errorf("failed to add torrent to rtorrent: %w", err)
	}
	return "", nil
}

// StalledCount counts incomplete downloads; rTorrent has no stalled
// state of its own.
func (r *RTorrent) StalledCount() (int, error) {
	torrents, err := r.client.GetTorrents(context.Background(), rtorrent.ViewMain)
	if err != nil {
		return 0, fmt.Errorf("failed to get torrents: %w", err)
	}

	stalled := 0
	for _, t := range torrents {
		status, err := r.client.GetStatus(context.Background(), t)
		if err != nil {
			continue
		}
		if !status.Completed {
			stalled++
		}
	}
	return stalled, nil
}
