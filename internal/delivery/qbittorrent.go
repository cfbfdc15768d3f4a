package delivery

import (
	"fmt"

	qbittorrent "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"

	"github.com/s0up4200/archiverctl/internal/config"
)

// QBit delivers torrents straight into a qBittorrent instance.
type QBit struct {
	client *qbittorrent.Client
}

func NewQBit(cfg config.QBitConfig) (*QBit, error) {
	qb := qbittorrent.NewClient(qbittorrent.Config{
		Host:      cfg.URL,
		Username:  cfg.Username,
		Password:  cfg.Password,
		BasicUser: cfg.BasicUser,
		BasicPass: cfg.BasicPass,
	})
	if err := qb.Login(); err != nil {
		log.Error().Err(err).Str("url", cfg.URL).Msg("failed to login to qbittorrent")
		return nil, fmt.Errorf("failed to login to qbittorrent: %w", err)
	}

	log.Debug().Str("url", cfg.URL).Msg("connected to qbittorrent")
	return &QBit{client: qb}, nil
}

func (q *QBit) Deliver(data []byte, filename string) (string, error) {
	log.Debug().Str("name", filename).Msg("adding torrent to qbittorrent")
	if err := q.client.AddTorrentFromMemory(data, map[string]string{}); err != nil {
		return "", fmt.Errorf("failed to add torrent to qbittorrent: %w", err)
	}
	return "", nil
}

// StalledCount counts downloads qBittorrent reports as stalled.
func (q *QBit) StalledCount() (int, error) {
	torrents, err := q.client.GetTorrents(qbittorrent.TorrentFilterOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to get torrents: %w", err)
	}

	stalled := 0
	for _, t := range torrents {
		if t.State == qbittorrent.TorrentStateStalledDl {
			stalled++
		}
	}
	return stalled, nil
}
