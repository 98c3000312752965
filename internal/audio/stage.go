// Package audio synthesizes pronunciation audio for flashcard records,
// preferring the content-addressed cache for word audio and applying the
// rate-limit backoff policy around the speech backend.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"codeberg.org/snonux/ordkort/internal"
	"codeberg.org/snonux/ordkort/internal/cache"
	"codeberg.org/snonux/ordkort/internal/card"
	"codeberg.org/snonux/ordkort/internal/pipeline"
)

// rateLimitBackoff is the fixed wait before the single retry after a
// rate-limit refusal.
const rateLimitBackoff = 20 * time.Second

// StageOptions configures an audio stage.
type StageOptions struct {
	AudioDir     string        // working directory for synthesized files
	Format       string        // audio file extension, e.g. "mp3"
	RequestDelay time.Duration // pause between synthesis requests
	SkipExisting bool          // reuse word audio already in AudioDir
}

// Stage obtains word and sentence audio for records. Word audio is served
// from the cache when possible; sentence audio is always synthesized fresh
// because the same word gets different sentences across runs.
type Stage struct {
	provider Provider
	cache    *cache.Store
	opts     StageOptions
	token    *pipeline.Token
	backoff  time.Duration
	sleep    func(time.Duration)
}

// NewStage creates an audio stage.
func NewStage(provider Provider, cacheStore *cache.Store, opts StageOptions, token *pipeline.Token) *Stage {
	if opts.Format == "" {
		opts.Format = "mp3"
	}
	return &Stage{
		provider: provider,
		cache:    cacheStore,
		opts:     opts,
		token:    token,
		backoff:  rateLimitBackoff,
		sleep:    time.Sleep,
	}
}

// Process obtains both audio files for a record. It returns false when the
// record failed or cancellation stopped the work; a failure is recorded on
// the record itself and already-completed audio for the other part is kept.
func (s *Stage) Process(ctx context.Context, rec *card.Record) bool {
	if s.token.Cancelled() || rec.Failed() {
		return false
	}

	if err := s.SynthesizeWord(ctx, rec); err != nil {
		rec.Err = fmt.Sprintf("failed to generate word audio: %v", err)
		return false
	}

	if s.token.Cancelled() {
		return false
	}

	if err := s.SynthesizeSentence(ctx, rec); err != nil {
		rec.Err = fmt.Sprintf("failed to generate sentence audio: %v", err)
		return false
	}

	return true
}

// SynthesizeWord obtains the word audio, preferring the cache.
func (s *Stage) SynthesizeWord(ctx context.Context, rec *card.Record) error {
	filename := internal.NormalizeFilename(rec.Word) + "." + s.opts.Format
	target := filepath.Join(s.opts.AudioDir, filename)

	if s.opts.SkipExisting {
		if _, err := os.Stat(target); err == nil {
			log.Infof("Reusing existing audio for word: %s", rec.Word)
			rec.WordAudio = filename
			return nil
		}
	}

	if cached, ok := s.cache.Lookup(rec.Word); ok {
		if err := internal.CopyFile(cached, target); err != nil {
			return fmt.Errorf("failed to copy cached audio: %w", err)
		}
		log.Infof("Using cached audio for word: %s", rec.Word)
		rec.WordAudio = filename
		return nil
	}

	if err := s.synthesize(ctx, rec.Word, target); err != nil {
		return err
	}
	rec.WordAudio = filename

	if err := s.cache.Put(rec.Word, target); err != nil {
		log.WithError(err).Warnf("Could not cache audio for %q", rec.Word)
	}

	s.delay()
	return nil
}

// SynthesizeSentence obtains the sentence audio. Sentences are never cached.
func (s *Stage) SynthesizeSentence(ctx context.Context, rec *card.Record) error {
	filename := internal.NormalizeFilename(rec.Word) + "_sentence." + s.opts.Format
	target := filepath.Join(s.opts.AudioDir, filename)

	if err := s.synthesize(ctx, rec.SentenceDA, target); err != nil {
		return err
	}
	rec.SentenceAudio = filename

	s.delay()
	return nil
}

// synthesize calls the backend, retrying exactly once after a fixed
// backoff when the backend signals rate limiting. Any other error is
// non-retryable.
func (s *Stage) synthesize(ctx context.Context, text, target string) error {
	if s.token.Cancelled() {
		return fmt.Errorf("cancelled before synthesis")
	}

	err := s.provider.Synthesize(ctx, text, target)
	if IsRateLimited(err) {
		log.Warnf("Rate limit hit, retrying in %s...", s.backoff)
		s.sleep(s.backoff)
		err = s.provider.Synthesize(ctx, text, target)
	}
	return err
}

// delay spaces out backend requests; skipped once cancellation is pending.
func (s *Stage) delay() {
	if s.opts.RequestDelay > 0 && !s.token.Cancelled() {
		s.sleep(s.opts.RequestDelay)
	}
}
