package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// ErrMissing is returned by Load when no config file exists at the
	// given path. Run setup first.
	ErrMissing = errors.New("config file not found")
	// ErrMalformed is returned when the file exists but cannot be parsed.
	ErrMalformed = errors.New("config file is malformed")
	// ErrValidation is returned when a parsed config fails pattern or
	// range validation.
	ErrValidation = errors.New("config validation failed")
)

var (
	apiUserPattern = regexp.MustCompile(`^[A-Za-z0-9_]{16}$`)
	apiKeyPattern  = regexp.MustCompile(`^[A-Za-z0-9_]{32}$`)
	sizePattern    = regexp.MustCompile(`^\d+[BKMGTP]$`)
)

// ValidCredentials reports whether user and key match the account token
// patterns the server issues.
func ValidCredentials(user, key string) bool {
	return apiUserPattern.MatchString(user) && apiKeyPattern.MatchString(key)
}

// ValidSize reports whether s is a well-formed container size token,
// e.g. "500G".
func ValidSize(s string) bool {
	return sizePattern.MatchString(s)
}

// Load reads, merges and validates the config file at path.
//
// Older config files may predate fields that exist in the current
// default template. The merge is a fixed-shape migration: the document
// is decoded loosely, every top-level key absent from it is backfilled
// from the compiled-in template, every container gets the same
// treatment against the Default template, and only then is the document
// decoded into the strict schema and validated. Keys that are present
// on disk are never altered.
//
// As a final step, $name in each container's WatchDirectory is replaced
// with the container's map key.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	merged, err := mergeDefaults(doc)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(merged, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	for name, container := range cfg.Containers {
		container.WatchDirectory = strings.ReplaceAll(container.WatchDirectory, "$name", name)
		cfg.Containers[name] = container
	}

	log.Debug().
		Str("path", path).
		Int("containers", len(cfg.Containers)).
		Msg("loaded config file")

	return &cfg, nil
}

// mergeDefaults backfills missing keys in a loosely-decoded document
// from the compiled-in defaults and returns the remarshalled document.
func mergeDefaults(doc map[string]json.RawMessage) ([]byte, error) {
	defaults, err := rawDocument(DefaultConfig())
	if err != nil {
		return nil, err
	}
	for key, value := range defaults {
		if _, ok := doc[key]; !ok {
			doc[key] = value
		}
	}

	var containers map[string]map[string]json.RawMessage
	if err := json.Unmarshal(doc["Containers"], &containers); err != nil {
		return nil, fmt.Errorf("%w: Containers: %v", ErrMalformed, err)
	}
	if containers == nil {
		containers = map[string]map[string]json.RawMessage{}
	}

	containerDefaults, err := rawDocument(DefaultConfig().Default)
	if err != nil {
		return nil, err
	}
	for name, container := range containers {
		for key, value := range containerDefaults {
			if _, ok := container[key]; !ok {
				container[key] = value
			}
		}
		containers[name] = container
	}

	remarshalled, err := json.Marshal(containers)
	if err != nil {
		return nil, fmt.Errorf("failed to remarshal containers: %w", err)
	}
	doc["Containers"] = remarshalled

	return json.Marshal(doc)
}

func rawDocument(v interface{}) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode defaults: %w", err)
	}
	return doc, nil
}

func (c *Config) validate() error {
	if !apiUserPattern.MatchString(c.ApiUser) {
		return fmt.Errorf("%w: ApiUser does not match the expected token format", ErrValidation)
	}
	if !apiKeyPattern.MatchString(c.ApiKey) {
		return fmt.Errorf("%w: ApiKey does not match the expected token format", ErrValidation)
	}
	for name, container := range c.Containers {
		if !sizePattern.MatchString(container.Size) {
			return fmt.Errorf("%w: container %q has invalid size %q", ErrValidation, name, container.Size)
		}
		if container.MaxStalled < 0 {
			return fmt.Errorf("%w: container %q has negative MaxStalled", ErrValidation, name)
		}
	}
	return nil
}

// Save writes cfg to path as indented JSON with stable key ordering, so
// repeated saves of the same state produce identical files. The write
// goes to a temp file in the same directory and is renamed over the
// destination, so a crash mid-write leaves the old file intact.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp config file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}

	log.Debug().Str("path", path).Msg("saved config file")
	return nil
}
