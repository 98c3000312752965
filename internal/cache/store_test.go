package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestKeyIsDeterministic(t *testing.T) {
	if Key("hund") != Key("hund") {
		t.Error("identical text must produce identical keys")
	}
	if Key("hund") == Key("kat") {
		t.Error("different text must produce different keys")
	}
}

func TestPutThenLookup(t *testing.T) {
	workDir := t.TempDir()
	store, err := New(filepath.Join(t.TempDir(), "audio_cache"), "mp3")
	if err != nil {
		t.Fatal(err)
	}

	source := writeArtifact(t, workDir, "hund.mp3")
	if err := store.Put("hund", source); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	cached, ok := store.Lookup("hund")
	if !ok {
		t.Fatal("expected cache hit after Put")
	}
	data, err := os.ReadFile(cached)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "audio bytes" {
		t.Errorf("cached artifact content = %q", data)
	}
}

func TestLookupMiss(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "audio_cache"), "mp3")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Lookup("aldrig set"); ok {
		t.Error("expected miss for uncached text")
	}
}

func TestStaleMetadataIsAMiss(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "audio_cache")
	store, err := New(cacheDir, "mp3")
	if err != nil {
		t.Fatal(err)
	}

	source := writeArtifact(t, t.TempDir(), "kat.mp3")
	if err := store.Put("kat", source); err != nil {
		t.Fatal(err)
	}

	// Delete the artifact behind the metadata's back.
	cached, ok := store.Lookup("kat")
	if !ok {
		t.Fatal("expected hit before deletion")
	}
	if err := os.Remove(cached); err != nil {
		t.Fatal(err)
	}

	if _, ok := store.Lookup("kat"); ok {
		t.Error("metadata pointing at a deleted artifact must be a miss")
	}
}

func TestMetadataSurvivesReopen(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "audio_cache")
	store, err := New(cacheDir, "mp3")
	if err != nil {
		t.Fatal(err)
	}
	source := writeArtifact(t, t.TempDir(), "hund.mp3")
	if err := store.Put("hund", source); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(cacheDir, "mp3")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Lookup("hund"); !ok {
		t.Error("expected hit after reopening the cache directory")
	}
}

func TestPutResolvesDoubledExtension(t *testing.T) {
	workDir := t.TempDir()
	store, err := New(filepath.Join(t.TempDir(), "audio_cache"), "mp3")
	if err != nil {
		t.Fatal(err)
	}

	// Backend wrote hund.mp3.mp3 instead of hund.mp3.
	writeArtifact(t, workDir, "hund.mp3.mp3")
	if err := store.Put("hund", filepath.Join(workDir, "hund.mp3")); err != nil {
		t.Fatalf("Put() should resolve the doubled extension: %v", err)
	}
	if _, ok := store.Lookup("hund"); !ok {
		t.Error("expected hit after Put via doubled-extension source")
	}
}

func TestMalformedMetadata(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "audio_cache")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, "cache_metadata.json"), []byte("]["), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := New(cacheDir, "mp3")
	if err != nil {
		t.Fatalf("malformed metadata must not be fatal: %v", err)
	}
	if _, ok := store.Lookup("hund"); ok {
		t.Error("store with malformed metadata should start empty")
	}
}
