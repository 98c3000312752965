// Package pipeline drives the word list through content generation, audio
// synthesis and publication as a single sequential state machine. Stages
// run strictly one word at a time to respect backend rate limits and keep
// checkpoint writes consistent.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/snonux/ordkort/internal/card"
	"codeberg.org/snonux/ordkort/internal/words"
)

// ContentStage produces one record per word, skipping checkpointed words.
type ContentStage interface {
	Generate(ctx context.Context, word string) (rec *card.Record, skipped bool)
}

// AudioStage obtains word and sentence audio for a record.
type AudioStage interface {
	Process(ctx context.Context, rec *card.Record) bool
}

// Publisher stages media and adds the notes to the flashcard store.
type Publisher interface {
	Stage(records []*card.Record) error
	Publish(records []*card.Record) error
}

// Config is the immutable configuration of one generator run.
type Config struct {
	WordsFile        string
	DeckName         string
	ModelName        string
	ReverseModelName string
	AudioDir         string
	AudioFormat      string
	CacheDir         string
	CheckpointFile   string
	RequestDelay     time.Duration

	SkipExistingAudio    bool
	TestMode             bool // skip audio generation entirely
	GenerateReverseCards bool
}

// DefaultConfig returns the standard run configuration.
func DefaultConfig() Config {
	return Config{
		WordsFile:            "words.txt",
		DeckName:             "Danish vocab",
		ModelName:            "Danish",
		ReverseModelName:     "Danish Reverse",
		AudioDir:             "audio_files",
		AudioFormat:          "mp3",
		CacheDir:             "audio_cache",
		CheckpointFile:       "checkpoint.json",
		RequestDelay:         6500 * time.Millisecond,
		GenerateReverseCards: true,
	}
}

// Generator runs the flashcard pipeline to one terminal state. It owns the
// stats and reports exclusively through the observer; all logging happens
// in the stages and stores.
type Generator struct {
	config     Config
	content    ContentStage
	audio      AudioStage
	publisher  Publisher
	checkpoint *card.CheckpointStore
	observer   Observer
	token      *Token

	state State
	stats Stats
}

// NewGenerator creates a generator. A nil observer discards progress.
func NewGenerator(config Config, content ContentStage, audio AudioStage, publisher Publisher,
	checkpoint *card.CheckpointStore, observer Observer, token *Token) *Generator {
	if observer == nil {
		observer = NopObserver
	}
	if token == nil {
		token = &Token{}
	}
	return &Generator{
		config:     config,
		content:    content,
		audio:      audio,
		publisher:  publisher,
		checkpoint: checkpoint,
		observer:   observer,
		token:      token,
		state:      StateIdle,
	}
}

// Cancel requests cooperative cancellation. Idempotent; honored at the next
// word or record boundary.
func (g *Generator) Cancel() {
	g.token.Cancel()
}

// State returns the current pipeline state.
func (g *Generator) State() State {
	return g.state
}

// Stats returns a snapshot of the run counters.
func (g *Generator) Stats() Stats {
	return g.stats
}

func (g *Generator) report(state State, message string) {
	g.state = state
	g.observer.OnProgress(state, g.stats, message)
}

func (g *Generator) fail(err error) error {
	g.report(StateFailed, fmt.Sprintf("Pipeline failed: %v", err))
	return err
}

// Run executes the pipeline synchronously until a terminal state. It
// returns an error only when the run ends in Failed; a cancelled run is
// not an error.
func (g *Generator) Run(ctx context.Context) error {
	g.stats = Stats{StartTime: time.Now()}

	g.report(StateReadingWords, "Reading word list...")
	list, err := words.Read(g.config.WordsFile)
	if err != nil {
		return g.fail(fmt.Errorf("%w: %v", ErrConfiguration, err))
	}
	if len(list) == 0 {
		return g.fail(fmt.Errorf("%w: no words to process", ErrConfiguration))
	}
	g.stats.TotalWords = len(list)

	g.checkpoint.Load()

	records := g.generateContent(ctx, list)
	if g.token.Cancelled() {
		g.report(StateCancelled, "Cancelled")
		return nil
	}

	if !g.config.TestMode {
		g.generateAudio(ctx, records)
		if g.token.Cancelled() {
			g.report(StateCancelled, "Cancelled")
			return nil
		}
	}

	g.report(StateCopyingAudio, "Copying audio to the flashcard store...")
	if err := g.publisher.Stage(records); err != nil {
		return g.fail(fmt.Errorf("failed to stage audio: %w", err))
	}
	if g.token.Cancelled() {
		g.report(StateCancelled, "Cancelled")
		return nil
	}

	g.report(StateSendingToStore, "Sending cards to the flashcard store...")
	if err := g.publisher.Publish(records); err != nil {
		return g.fail(fmt.Errorf("failed to publish cards: %w", err))
	}
	if g.token.Cancelled() {
		g.report(StateCancelled, "Cancelled")
		return nil
	}

	successful := 0
	for _, rec := range records {
		if !rec.Failed() {
			successful++
		}
	}

	// The checkpoint only goes away after a run that finished everything.
	g.checkpoint.Clear()

	g.report(StateCompleted, fmt.Sprintf("Completed: %d/%d cards", successful, g.stats.TotalWords))
	return nil
}

// generateContent runs the content stage over the word list, checkpointing
// every successful record immediately so a crash loses at most the current
// word.
func (g *Generator) generateContent(ctx context.Context, list []string) []*card.Record {
	g.report(StateGeneratingContent, "Generating flashcard content...")

	records := make([]*card.Record, 0, len(list))
	for i, word := range list {
		if g.token.Cancelled() {
			return records
		}

		g.stats.CurrentWord = word
		g.report(StateGeneratingContent, fmt.Sprintf("Generating content for: %s", word))

		rec, skipped := g.content.Generate(ctx, word)
		records = append(records, rec)

		g.stats.ProcessedWords = i + 1
		if skipped {
			g.stats.SkippedWords++
		} else if rec.Failed() {
			g.stats.FailedWords++
		} else if err := g.checkpoint.Put(word, rec); err != nil {
			// A checkpoint write failure costs resumability, not the run.
			g.report(StateGeneratingContent, fmt.Sprintf("Could not checkpoint %q: %v", word, err))
		}

		g.report(StateGeneratingContent, fmt.Sprintf("Processed %d/%d words", i+1, len(list)))
	}

	return records
}

// generateAudio runs the audio stage per record, recomputing the time
// estimate from the remaining synthesis calls before each one.
func (g *Generator) generateAudio(ctx context.Context, records []*card.Record) {
	g.report(StateGeneratingAudio, "Generating audio...")

	for i, rec := range records {
		if g.token.Cancelled() {
			return
		}
		if rec.Failed() {
			continue
		}

		// Two synthesis calls per remaining record, spaced by the delay.
		remaining := len(records) - (i + 1)
		g.stats.EstimatedTimeRemaining = time.Duration(remaining) * 2 * g.config.RequestDelay
		g.stats.CurrentWord = rec.Word
		g.report(StateGeneratingAudio, fmt.Sprintf("Generating audio for: %s", rec.Word))

		if !g.audio.Process(ctx, rec) && rec.Failed() {
			g.stats.FailedWords++
		}
	}

	g.stats.EstimatedTimeRemaining = 0
}
