// Package archiver drives the fetch workflow: ask the server for an
// assignment, download the torrent, deliver it, run the optional
// after-fetch command, and pace the next request.
package archiver

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/bencode"

	"github.com/s0up4200/archiverctl/internal/api"
	"github.com/s0up4200/archiverctl/internal/config"
	"github.com/s0up4200/archiverctl/internal/delivery"
	"github.com/s0up4200/archiverctl/internal/registry"
	"github.com/s0up4200/archiverctl/pkg/version"
)

// Archiver runs fetches for one or all containers. Everything is
// strictly sequential: the server is rate-sensitive and FetchSleep is
// required pacing, not an optimization target.
type Archiver struct {
	cfg           *config.Config
	api           *api.Client
	confirm       delivery.Confirm
	scriptVersion string
	log           zerolog.Logger

	// sleep is swappable so batch pacing is testable
	sleep func(time.Duration)
}

func New(cfg *config.Config, client *api.Client, confirm delivery.Confirm, scriptVersion string) *Archiver {
	return &Archiver{
		cfg:           cfg,
		api:           client,
		confirm:       confirm,
		scriptVersion: scriptVersion,
		log:           log.With().Str("component", "archiver").Logger(),
		sleep:         time.Sleep,
	}
}

// Fetch runs the workflow for the named container, or for every
// container in lexicographic order when name is "all" (case-insensitive).
func (a *Archiver) Fetch(name string) error {
	if strings.EqualFold(name, "all") {
		return a.FetchAll()
	}
	return a.fetchOne(name)
}

// FetchAll processes every container in sorted order, sleeping
// FetchSleep seconds between containers. A failure aborts the rest of
// the batch; IDs assigned and files downloaded before the failure are
// kept.
func (a *Archiver) FetchAll() error {
	names := registry.Names(a.cfg)

	a.log.Debug().
		Int("containerCount", len(names)).
		Msg("starting fetch for all containers")

	for i, name := range names {
		if err := a.fetchOne(name); err != nil {
			return fmt.Errorf("container %s: %w", name, err)
		}

		// only sleep if this isn't the last container
		if i < len(names)-1 {
			a.log.Debug().
				Int("seconds", a.cfg.FetchSleep).
				Msg("sleeping between container fetches")
			a.sleep(time.Duration(a.cfg.FetchSleep) * time.Second)
		}
	}

	a.log.Info().Msg("completed fetch for all containers")
	return nil
}

func (a *Archiver) fetchOne(name string) error {
	container, ok := a.cfg.Containers[name]
	if !ok {
		a.log.Error().Str("container", name).Msg("container not found")
		return fmt.Errorf("%w: %q", api.ErrUnknownContainer, name)
	}

	deliverer, err := delivery.ForContainer(a.cfg, container, a.confirm)
	if err != nil {
		return err
	}

	// only torrent clients can report stalled downloads; the gate never
	// applies to watch directories
	if container.Client != "" && container.MaxStalled > 0 {
		stalled, err := deliverer.StalledCount()
		if err != nil {
			return err
		}
		if stalled >= container.MaxStalled {
			a.log.Info().
				Str("container", name).
				Int("stalledCount", stalled).
				Int("maxStalled", container.MaxStalled).
				Msg("skipping fetch due to too many stalled downloads")
			return nil
		}
	}

	a.log.Info().
		Str("container", name).
		Msg("fetching torrent for container")

	assignment, err := a.api.FetchAssignment(name)
	if err != nil {
		return fmt.Errorf("failed to fetch assignment: %w", err)
	}

	// keep the server-assigned ID even if the download below fails; the
	// final save persists it
	id := assignment.ContainerID
	container.ContainerID = &id
	a.cfg.Containers[name] = container

	a.checkScriptVersion(assignment.ScriptVersion)

	filename, body, err := a.api.DownloadAssignment(name, assignment)
	if err != nil {
		return fmt.Errorf("failed to download torrent: %w", err)
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return fmt.Errorf("failed to read torrent data: %w", err)
	}

	torrentName, totalSize := describeTorrent(data)
	a.log.Info().
		Str("container", name).
		Str("torrent", torrentName).
		Str("size", units.HumanSize(float64(totalSize))).
		Msg("downloaded torrent")

	path, err := deliverer.Deliver(data, filename)
	if err != nil {
		return err
	}

	if path != "" {
		a.log.Info().
			Str("container", name).
			Str("path", path).
			Msg("new download written")

		if container.AfterFetchExec != "" {
			if err := a.runAfterFetch(container.AfterFetchExec, path); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkScriptVersion warns when the server announces a newer script
// version. Advisory only, never blocks the fetch.
func (a *Archiver) checkScriptVersion(remote string) {
	if remote == "" {
		return
	}

	newer, err := version.IsNewer(remote, a.scriptVersion)
	if err != nil {
		a.log.Warn().Err(err).Msg("could not compare script versions")
		return
	}
	if newer {
		a.log.Warn().
			Str("currentVersion", a.scriptVersion).
			Str("newestVersion", remote).
			Msg("this client is out-of-date, run update")
	}
}

// describeTorrent decodes the torrent's info dict for logging. Failure
// is not fatal; the payload is already on disk or on its way.
func describeTorrent(data []byte) (string, int64) {
	var t struct {
		Info struct {
			Name   string `bencode:"name"`
			Length int64  `bencode:"length"`
			Files  []struct {
				Length int64    `bencode:"length"`
				Path   []string `bencode:"path"`
			} `bencode:"files"`
		} `bencode:"info"`
	}
	if err := bencode.DecodeBytes(data, &t); err != nil {
		log.Warn().Err(err).Msg("failed to decode torrent info")
		return "unknown", 0
	}

	total := t.Info.Length
	if total == 0 {
		for _, file := range t.Info.Files {
			total += file.Length
		}
	}
	return t.Info.Name, total
}
