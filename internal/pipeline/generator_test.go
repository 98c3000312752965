package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/snonux/ordkort/internal/card"
	"codeberg.org/snonux/ordkort/internal/testutil"
)

type fakeContent struct {
	checkpoint *card.CheckpointStore
	failWords  map[string]bool
	calls      []string

	// onGenerate runs after each call, e.g. to cancel mid-run.
	onGenerate func(word string)
}

func (f *fakeContent) Generate(_ context.Context, word string) (*card.Record, bool) {
	defer func() {
		if f.onGenerate != nil {
			f.onGenerate(word)
		}
	}()

	if rec, ok := f.checkpoint.Get(word); ok {
		return rec, true
	}
	f.calls = append(f.calls, word)

	if f.failWords[word] {
		return card.NewFailed(word, "backend refused"), false
	}
	return &card.Record{
		Word:        word,
		Translation: "a " + word,
		SentenceDA:  fmt.Sprintf("Min %s.", word),
		SentenceEN:  fmt.Sprintf("My %s.", word),
	}, false
}

type fakeAudio struct {
	calls     []string
	failWords map[string]bool
}

func (f *fakeAudio) Process(_ context.Context, rec *card.Record) bool {
	f.calls = append(f.calls, rec.Word)
	if f.failWords[rec.Word] {
		rec.Err = "synthesis failed"
		return false
	}
	rec.WordAudio = rec.Word + ".mp3"
	rec.SentenceAudio = rec.Word + "_sentence.mp3"
	return true
}

type fakePublisher struct {
	staged    [][]*card.Record
	published [][]*card.Record
}

func (f *fakePublisher) Stage(records []*card.Record) error {
	f.staged = append(f.staged, records)
	return nil
}

func (f *fakePublisher) Publish(records []*card.Record) error {
	f.published = append(f.published, records)
	return nil
}

type testHarness struct {
	generator  *Generator
	content    *fakeContent
	audio      *fakeAudio
	publisher  *fakePublisher
	checkpoint *card.CheckpointStore
	config     Config
	events     *[]State

	// estimates holds the remaining-time estimate announced before each
	// synthesis call.
	estimates *[]time.Duration
}

func newHarness(t *testing.T, wordList string, mutate func(*Config)) *testHarness {
	t.Helper()

	dir := t.TempDir()
	wordsFile := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(wordsFile, []byte(wordList), 0644); err != nil {
		t.Fatal(err)
	}

	config := DefaultConfig()
	config.WordsFile = wordsFile
	config.CheckpointFile = filepath.Join(dir, "checkpoint.json")
	config.AudioDir = filepath.Join(dir, "audio")
	config.CacheDir = filepath.Join(dir, "cache")
	config.RequestDelay = 0
	if mutate != nil {
		mutate(&config)
	}

	checkpoint := card.NewCheckpointStore(config.CheckpointFile)
	content := &fakeContent{checkpoint: checkpoint, failWords: map[string]bool{}}
	audio := &fakeAudio{failWords: map[string]bool{}}
	publisher := &fakePublisher{}

	var events []State
	var estimates []time.Duration
	observer := ObserverFunc(func(state State, stats Stats, message string) {
		if len(events) == 0 || events[len(events)-1] != state {
			events = append(events, state)
		}
		if strings.HasPrefix(message, "Generating audio for:") {
			estimates = append(estimates, stats.EstimatedTimeRemaining)
		}
	})

	return &testHarness{
		generator:  NewGenerator(config, content, audio, publisher, checkpoint, observer, nil),
		content:    content,
		audio:      audio,
		publisher:  publisher,
		checkpoint: checkpoint,
		config:     config,
		events:     &events,
		estimates:  &estimates,
	}
}

func TestRunCompletes(t *testing.T) {
	h := newHarness(t, "hund\nkat\nfugl\n", nil)

	if err := h.generator.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.generator.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", h.generator.State())
	}

	stats := h.generator.Stats()
	if stats.TotalWords != 3 || stats.ProcessedWords != 3 {
		t.Errorf("unexpected counters: %+v", stats)
	}
	if stats.FailedWords != 0 || stats.SkippedWords != 0 {
		t.Errorf("unexpected failure counters: %+v", stats)
	}
	if len(h.audio.calls) != 3 {
		t.Errorf("expected 3 audio calls, got %v", h.audio.calls)
	}
	if len(h.publisher.staged) != 1 || len(h.publisher.published) != 1 {
		t.Errorf("expected one staging and one publish pass: %+v", h.publisher)
	}

	want := []State{StateReadingWords, StateGeneratingContent, StateGeneratingAudio,
		StateCopyingAudio, StateSendingToStore, StateCompleted}
	got := *h.events
	if len(got) != len(want) {
		t.Fatalf("unexpected state sequence %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected state sequence %v", got)
		}
	}
}

func TestRunClearsCheckpointOnCompletion(t *testing.T) {
	h := newHarness(t, "hund\n", nil)

	if err := h.generator.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.AssertFileNotExists(t, h.config.CheckpointFile)
}

func TestRunMissingWordsFileFails(t *testing.T) {
	h := newHarness(t, "hund\n", func(c *Config) {
		c.WordsFile = filepath.Join(t.TempDir(), "missing.txt")
	})

	err := h.generator.Run(context.Background())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if h.generator.State() != StateFailed {
		t.Errorf("expected failed state, got %s", h.generator.State())
	}
}

func TestRunEmptyWordsFileFails(t *testing.T) {
	h := newHarness(t, "# only a comment\n\n", nil)

	err := h.generator.Run(context.Background())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	h := newHarness(t, "hund\nkat\n", nil)
	seed := card.NewCheckpointStore(h.config.CheckpointFile)
	if err := seed.Put("hund", &card.Record{
		Word: "hund", Translation: "dog", SentenceDA: "x", SentenceEN: "y",
	}); err != nil {
		t.Fatal(err)
	}

	if err := h.generator.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(h.content.calls) != 1 || h.content.calls[0] != "kat" {
		t.Errorf("content backend must only be called for new words, got %v", h.content.calls)
	}
	stats := h.generator.Stats()
	if stats.SkippedWords != 1 || stats.ProcessedWords != 2 {
		t.Errorf("unexpected counters: %+v", stats)
	}
}

func TestRunCancelledAfterFirstWord(t *testing.T) {
	h := newHarness(t, "hund\nkat\nfugl\n", nil)
	h.content.onGenerate = func(string) { h.generator.Cancel() }

	if err := h.generator.Run(context.Background()); err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if h.generator.State() != StateCancelled {
		t.Fatalf("expected cancelled state, got %s", h.generator.State())
	}
	if h.checkpoint.Len() != 1 {
		t.Errorf("checkpoint must contain exactly the completed word, got %d entries", h.checkpoint.Len())
	}
	if len(h.audio.calls) != 0 {
		t.Errorf("no audio calls after cancellation, got %v", h.audio.calls)
	}
	if len(h.publisher.staged) != 0 || len(h.publisher.published) != 0 {
		t.Error("no publish activity after cancellation")
	}
	if _, err := os.Stat(h.config.CheckpointFile); err != nil {
		t.Error("checkpoint file must survive a cancelled run")
	}
}

func TestRunToleratesPerWordFailures(t *testing.T) {
	h := newHarness(t, "hund\nkat\n", nil)
	h.content.failWords["hund"] = true

	if err := h.generator.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.generator.State() != StateCompleted {
		t.Fatalf("partial failures must still complete, got %s", h.generator.State())
	}

	stats := h.generator.Stats()
	if stats.FailedWords != 1 {
		t.Errorf("expected 1 failed word, got %+v", stats)
	}
	if len(h.audio.calls) != 1 || h.audio.calls[0] != "kat" {
		t.Errorf("failed records must not reach the audio stage, got %v", h.audio.calls)
	}
	if h.checkpoint.Len() != 1 {
		t.Errorf("failed records must not be checkpointed, got %d entries", h.checkpoint.Len())
	}
}

func TestRunCountsAudioFailures(t *testing.T) {
	h := newHarness(t, "hund\nkat\n", nil)
	h.audio.failWords["hund"] = true

	if err := h.generator.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	stats := h.generator.Stats()
	if stats.FailedWords != 1 {
		t.Errorf("audio failure must be counted, got %+v", stats)
	}
	if h.generator.State() != StateCompleted {
		t.Errorf("audio failure must not halt the run, got %s", h.generator.State())
	}
}

func TestRunRecomputesAudioTimeEstimate(t *testing.T) {
	h := newHarness(t, "hund\nkat\nfugl\n", func(c *Config) {
		c.RequestDelay = 2 * time.Second
	})

	if err := h.generator.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Two synthesis calls per remaining record: with three records and a
	// 2s delay the announced estimates shrink 8s, 4s, 0.
	want := []time.Duration{8 * time.Second, 4 * time.Second, 0}
	got := *h.estimates
	if len(got) != len(want) {
		t.Fatalf("expected %d estimates, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("estimate %d = %v, want %v", i, got[i], want[i])
		}
	}

	if remaining := h.generator.Stats().EstimatedTimeRemaining; remaining != 0 {
		t.Errorf("estimate must be zero after the audio stage, got %v", remaining)
	}
}

func TestRunTestModeSkipsAudio(t *testing.T) {
	h := newHarness(t, "hund\n", func(c *Config) { c.TestMode = true })

	if err := h.generator.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(h.audio.calls) != 0 {
		t.Errorf("test mode must skip the audio stage, got %v", h.audio.calls)
	}
	if len(h.publisher.published) != 1 {
		t.Error("test mode must still publish")
	}
	for _, state := range *h.events {
		if state == StateGeneratingAudio {
			t.Error("test mode must not enter the audio state")
		}
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	h := newHarness(t, "hund\n", nil)
	h.generator.Cancel()
	h.generator.Cancel()

	if err := h.generator.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.generator.State() != StateCancelled {
		t.Errorf("expected cancelled, got %s", h.generator.State())
	}
}
