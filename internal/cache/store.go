// Package cache provides the content-addressed store for synthesized word
// audio. Artifacts are keyed by a hash of the synthesized text so identical
// text is never sent to the speech backend twice.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"codeberg.org/snonux/ordkort/internal"
)

const metadataFile = "cache_metadata.json"

// Store maps md5(text) to a cached audio artifact inside its directory.
// Metadata lives in cache_metadata.json next to the artifacts and is
// written through on every update.
type Store struct {
	dir      string
	format   string
	metadata map[string]string
}

// New opens (or creates) a cache directory and loads its metadata.
// Malformed metadata is logged and treated as an empty cache.
func New(dir, format string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s := &Store{
		dir:      dir,
		format:   format,
		metadata: make(map[string]string),
	}

	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("Could not read audio cache metadata")
		}
		return s, nil
	}
	if err := json.Unmarshal(data, &s.metadata); err != nil {
		log.WithError(err).Warn("Malformed audio cache metadata, starting empty")
		s.metadata = make(map[string]string)
	}

	return s, nil
}

// Key returns the deterministic cache key for a piece of text.
func Key(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the path of the cached artifact for text. A metadata entry
// whose artifact no longer exists on disk is a miss, not an error.
func (s *Store) Lookup(text string) (string, bool) {
	filename, ok := s.metadata[Key(text)]
	if !ok {
		return "", false
	}
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Put copies the artifact generated for text into the cache and writes the
// metadata through. The source is resolved through the doubled-extension
// fallback since the backend occasionally double-suffixes its output.
func (s *Store) Put(text, sourcePath string) error {
	source, ok := internal.ResolveArtifact(sourcePath)
	if !ok {
		return fmt.Errorf("audio artifact not found: %s", sourcePath)
	}

	key := Key(text)
	filename := fmt.Sprintf("%s.%s", key, s.format)
	if err := internal.CopyFile(source, filepath.Join(s.dir, filename)); err != nil {
		return fmt.Errorf("failed to cache audio: %w", err)
	}

	s.metadata[key] = filename
	s.save()
	return nil
}

func (s *Store) save() {
	data, err := json.MarshalIndent(s.metadata, "", "  ")
	if err != nil {
		log.WithError(err).Warn("Could not encode audio cache metadata")
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, metadataFile), data, 0644); err != nil {
		log.WithError(err).Warn("Could not save audio cache metadata")
	}
}
