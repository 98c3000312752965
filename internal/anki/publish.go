package anki

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	log "github.com/sirupsen/logrus"

	"codeberg.org/snonux/ordkort/internal"
	"codeberg.org/snonux/ordkort/internal/card"
	"codeberg.org/snonux/ordkort/internal/pipeline"
)

// Connector is the slice of the AnkiConnect client the publisher needs.
type Connector interface {
	MediaDirPath() (string, error)
	AddNote(note Note) (int64, error)
}

// PublisherOptions configures a publisher.
type PublisherOptions struct {
	AudioDir         string
	DeckName         string
	ModelName        string
	ReverseModelName string
	GenerateReverse  bool
}

// Publisher stages audio into Anki's media directory and adds the notes.
type Publisher struct {
	client Connector
	opts   PublisherOptions
	token  *pipeline.Token
}

// NewPublisher creates a publisher.
func NewPublisher(client Connector, opts PublisherOptions, token *pipeline.Token) *Publisher {
	return &Publisher{client: client, opts: opts, token: token}
}

// mediaDir resolves Anki's collection.media directory, asking AnkiConnect
// first and falling back to the platform's default profile location.
func (p *Publisher) mediaDir() string {
	dir, err := p.client.MediaDirPath()
	if err == nil && dir != "" {
		return dir
	}
	log.WithError(err).Warn("Could not query Anki media directory, using platform default")

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Anki2", "User 1", "collection.media")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Anki2", "User 1", "collection.media")
	default:
		return filepath.Join(home, ".local", "share", "Anki2", "User 1", "collection.media")
	}
}

// Stage copies the audio files of all successful records into Anki's media
// directory. Individual copy failures are logged, never fatal: a note whose
// audio is missing still carries the text content.
func (p *Publisher) Stage(records []*card.Record) error {
	dir := p.mediaDir()
	if dir == "" {
		log.Error("No Anki media directory available, audio will be missing from the notes")
		return nil
	}
	if _, err := os.Stat(dir); err != nil {
		log.WithError(err).Errorf("Anki media directory not found: %s", dir)
		return nil
	}
	log.Infof("Anki media directory: %s", dir)

	for _, rec := range records {
		if rec.Failed() || p.token.Cancelled() {
			continue
		}
		p.stageFile(rec.WordAudio, dir)
		p.stageFile(rec.SentenceAudio, dir)
	}
	return nil
}

func (p *Publisher) stageFile(filename, mediaDir string) {
	if filename == "" {
		return
	}
	source, ok := internal.ResolveArtifact(filepath.Join(p.opts.AudioDir, filename))
	if !ok {
		log.Warnf("Audio file missing, skipping: %s", filename)
		return
	}
	if err := internal.CopyFile(source, filepath.Join(mediaDir, filename)); err != nil {
		log.WithError(err).Warnf("Could not copy %s to Anki", filename)
		return
	}
	log.Infof("Copied %s", filepath.Base(source))
}

// Publish adds one note per successful record, plus a reverse note when
// configured. A forward failure marks the record failed and skips its
// reverse note; a reverse failure is only logged.
func (p *Publisher) Publish(records []*card.Record) error {
	for _, rec := range records {
		if rec.Failed() || p.token.Cancelled() {
			continue
		}

		note := ForwardNote(rec, p.opts.DeckName, p.opts.ModelName)
		if _, err := p.client.AddNote(note); err != nil {
			log.WithError(err).Errorf("Failed to add card for %q", rec.Word)
			rec.Err = fmt.Sprintf("failed to add card: %v", err)
			continue
		}
		log.Infof("Added card for: %s", rec.Word)

		if !p.opts.GenerateReverse {
			continue
		}
		reverse := ReverseNote(rec, p.opts.DeckName, p.opts.ReverseModelName)
		if _, err := p.client.AddNote(reverse); err != nil {
			log.WithError(err).Warnf("Failed to add reverse card for %q", rec.Word)
			continue
		}
		log.Infof("Added reverse card for: %s", rec.Word)
	}
	return nil
}
