// Package registry provides name-keyed CRUD over the containers held in
// the config.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/s0up4200/archiverctl/internal/config"
)

// ErrDuplicate is returned by Create when the name is already taken.
var ErrDuplicate = errors.New("container already exists")

// Entry pairs a container with its name for display.
type Entry struct {
	Name      string
	Container config.Container
}

// List returns all containers sorted by name.
func List(cfg *config.Config) []Entry {
	entries := make([]Entry, 0, len(cfg.Containers))
	for name, container := range cfg.Containers {
		entries = append(entries, Entry{Name: name, Container: container})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Names returns all container names sorted lexicographically.
func Names(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Containers))
	for name := range cfg.Containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create registers a new container under name as an independent copy of
// the Default template. The config is left untouched when the name is
// already taken.
func Create(cfg *config.Config, name string) error {
	if _, ok := cfg.Containers[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	if cfg.Containers == nil {
		cfg.Containers = map[string]config.Container{}
	}
	cfg.Containers[name] = cfg.Default.Clone()
	return nil
}
