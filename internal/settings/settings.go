// Package settings persists user preferences that live outside the pipeline,
// such as the last words file used. It is a narrow key-value store with
// explicit load and save calls; the pipeline itself never touches it.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Store is a JSON-backed string key-value store.
type Store struct {
	path   string
	values map[string]string
}

// NewStore creates a store backed by the given file. The file is not read
// until Load is called.
func NewStore(path string) *Store {
	return &Store{path: path, values: make(map[string]string)}
}

// DefaultPath returns the standard settings location under the user's home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ordkort_settings.json"
	}
	return filepath.Join(home, ".local", "state", "ordkort", "settings.json")
}

// Load reads the settings file. A missing or malformed file is logged and
// treated as empty.
func (s *Store) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("Could not read settings file")
		}
		return
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		log.WithError(err).Warn("Malformed settings file, starting empty")
		s.values = make(map[string]string)
	}
}

// Save writes the settings file, creating its directory if needed.
func (s *Store) Save() error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Get returns the value for key, or fallback when unset.
func (s *Store) Get(key, fallback string) string {
	if value, ok := s.values[key]; ok {
		return value
	}
	return fallback
}

// Set stores a value for key. The change is not durable until Save.
func (s *Store) Set(key, value string) {
	s.values[key] = value
}
