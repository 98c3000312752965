package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

// Version is the current ordkort version
const Version = "0.1.0"

var (
	markupRe = regexp.MustCompile(`<.*?>`)
	spaceRe  = regexp.MustCompile(`\s+`)
	unsafeRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// NormalizeFilename turns generated text into a safe media filename stem.
// Markup tags are stripped, whitespace becomes underscores and anything
// outside [a-zA-Z0-9_-] is dropped.
func NormalizeFilename(text string) string {
	text = markupRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, "_")
	return unsafeRe.ReplaceAllString(text, "")
}

// ResolveArtifact locates an audio artifact on disk, tolerating the
// synthesis backend quirk where files are occasionally written with a
// doubled extension ("word.wav.wav" instead of "word.wav").
// TODO: remove the fallback once the backend stops double-suffixing.
func ResolveArtifact(path string) (string, bool) {
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	alt := path + filepath.Ext(path)
	if _, err := os.Stat(alt); err == nil {
		return alt, true
	}
	return "", false
}

// CopyFile copies src to dst, creating dst's directory if needed.
func CopyFile(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
	}
	return nil
}
