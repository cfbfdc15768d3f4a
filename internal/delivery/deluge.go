package delivery

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/autobrr/go-deluge"
	"github.com/rs/zerolog/log"

	"github.com/s0up4200/archiverctl/internal/config"
)

// Deluge delivers torrents to a Deluge daemon, trying the v2 protocol
// first and falling back to v1.
type Deluge struct {
	client interface {
		Connect(context.Context) error
		AddTorrentFile(ctx context.Context, filename, contents string, options *deluge.Options) (string, error)
	}
}

func NewDeluge(cfg config.DelugeConfig) (*Deluge, error) {
	settings := deluge.Settings{
		Hostname: cfg.Host,
		Port:     uint(cfg.Port),
		Login:    cfg.Username,
		Password: cfg.Password,
	}

	v2 := deluge.NewV2(settings)
	if err := v2.Connect(context.Background()); err == nil {
		log.Debug().Str("host", cfg.Host).Msg("connected to deluge v2")
		return &Deluge{client: v2}, nil
	}

	v1 := deluge.NewV1(settings)
	if err := v1.Connect(context.Background()); err != nil {
		log.Error().Err(err).Str("host", cfg.Host).Msg("failed to connect to deluge")
		return nil, fmt.Errorf("failed to connect to deluge: %w", err)
	}

	log.Debug().Str("host", cfg.Host).Msg("connected to deluge v1")
	return &Deluge{client: v1}, nil
}

func (d *Deluge) Deliver(data []byte, filename string) (string, error) {
	log.Debug().Str("name", filename).Msg("adding torrent to deluge")

	encoded := base64.StdEncoding.EncodeToString(data)
	if _, err := d.client.AddTorrentFile(context.Background(), filename, encoded, &deluge.Options{}); err != nil {
		return "", fmt.Errorf("failed to add torrent to deluge: %w", err)
	}
	return "", nil
}

// StalledCount always reports 0; telling stalled from healthy needs the
// label plugin, which we do not require.
func (d *Deluge) StalledCount() (int, error) {
	return 0, nil
}
