package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "settings.json")

	store := NewStore(path)
	store.Set("last_words_file", "words.txt")
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}

	reopened := NewStore(path)
	reopened.Load()
	if got := reopened.Get("last_words_file", ""); got != "words.txt" {
		t.Errorf("expected persisted value, got %q", got)
	}
}

func TestGetFallback(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	store.Load()
	if got := store.Get("missing", "default"); got != "default" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path)
	store.Load()
	if got := store.Get("anything", "fallback"); got != "fallback" {
		t.Errorf("malformed file must be treated as empty, got %q", got)
	}
}
