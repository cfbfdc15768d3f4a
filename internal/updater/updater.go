// Package updater replaces the running executable with the newest
// script published by the server.
package updater

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/s0up4200/archiverctl/internal/api"
	"github.com/s0up4200/archiverctl/internal/delivery"
	"github.com/s0up4200/archiverctl/pkg/version"
)

// Update checks the server's script version against localVersion and,
// after confirmation, replaces the file at exePath with the newest
// script. The previous file is kept as <exePath>-<localVersion>.bak.
//
// Returns the path of the updated file, or "" when already up-to-date
// or the confirmation was declined.
func Update(client *api.Client, confirm delivery.Confirm, exePath, localVersion string) (string, error) {
	remote, err := client.CheckVersion()
	if err != nil {
		return "", err
	}

	newer, err := version.IsNewer(remote, localVersion)
	if err != nil {
		return "", err
	}
	if !newer {
		log.Info().
			Str("version", localVersion).
			Msg("script is currently up-to-date")
		return "", nil
	}

	if !confirm(fmt.Sprintf("Update from %s to %s", localVersion, remote)) {
		return "", nil
	}

	body, err := client.FetchScript()
	if err != nil {
		return "", err
	}
	defer body.Close()

	absPath, err := filepath.Abs(exePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}

	backup := fmt.Sprintf("%s-%s.bak", absPath, localVersion)
	if err := os.Rename(absPath, backup); err != nil {
		return "", fmt.Errorf("failed to back up current script: %w", err)
	}

	if err := writeScript(absPath, body); err != nil {
		return "", err
	}

	log.Info().
		Str("path", absPath).
		Str("backup", backup).
		Str("version", remote).
		Msg("updated script")

	return absPath, nil
}

// writeScript streams the new script to a temp file and renames it into
// place, so the target is never observable half-written.
func writeScript(path string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".update-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write new script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0755); err != nil {
		return fmt.Errorf("failed to set script permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace script: %w", err)
	}
	return nil
}
