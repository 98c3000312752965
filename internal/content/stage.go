// Package content generates flashcard content for single words via an
// external language-model backend and validates the structured response.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"codeberg.org/snonux/ordkort/internal/card"
)

// cardPrompt instructs the backend to answer in strict JSON. The word in
// the example sentence and the translation are bolded with <b></b> tags.
const cardPrompt = `
You are a helpful Danish language assistant.
Your task is to take a Danish word and:
1. Create a simple, natural example sentence in Danish using that word.
2. Provide the English translation of the word.
3. Provide the English translation of the example sentence.
4. The word must include the article and the plural form.

Return your output in strict JSON format, following exactly this structure (use double quotes and proper JSON syntax):
{
  "word": "<the Danish word with the article and the plural form>",
  "translation": "<English translation of the word>",
  "example_sentence_da": "<Danish example sentence>",
  "example_sentence_en": "<English translation of the example sentence>"
}

Important:
- Do NOT include any text before or after the JSON.
- Make the the target word in the example sentence BOLD using <b></b> tag.
- Make the the target word in the translation sentence BOLD using <b></b> tag.
- Do not using any markup apart from the <b></b> tag already mentioned above.
- Do NOT write ` + "```json" + ` before the JSON.

Input word: %s
`

// Prompt builds the content-generation prompt for a word.
func Prompt(word string) string {
	return fmt.Sprintf(cardPrompt, word)
}

// ErrMalformedResponse marks a backend response that did not parse as the
// expected JSON structure. Distinct from a backend call failure, though
// both end up as a per-word failure on the record.
var ErrMalformedResponse = errors.New("malformed content response")

type cardResponse struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
	SentenceDA  string `json:"example_sentence_da"`
	SentenceEN  string `json:"example_sentence_en"`
}

// parseResponse validates the backend's raw text as a strict card response.
func parseResponse(raw string) (*card.Record, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()

	var resp cardResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	for name, value := range map[string]string{
		"word":                resp.Word,
		"translation":         resp.Translation,
		"example_sentence_da": resp.SentenceDA,
		"example_sentence_en": resp.SentenceEN,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, name)
		}
	}

	return &card.Record{
		Word:        resp.Word,
		Translation: resp.Translation,
		SentenceDA:  resp.SentenceDA,
		SentenceEN:  resp.SentenceEN,
	}, nil
}

// Stage generates flashcard content word by word, skipping words that are
// already checkpointed from an earlier run.
type Stage struct {
	provider   Provider
	checkpoint *card.CheckpointStore
}

// NewStage creates a content stage.
func NewStage(provider Provider, checkpoint *card.CheckpointStore) *Stage {
	return &Stage{provider: provider, checkpoint: checkpoint}
}

// Generate produces the record for one word. Backend and parsing failures
// never escape: they are recorded on the record's error field so the run
// can continue with the remaining words. The skipped result reports a
// checkpoint hit.
func (s *Stage) Generate(ctx context.Context, word string) (rec *card.Record, skipped bool) {
	if rec, ok := s.checkpoint.Get(word); ok {
		log.Infof("Skipping %q (already processed)", word)
		return rec, true
	}

	raw, err := s.provider.Generate(ctx, Prompt(word))
	if err != nil {
		log.WithError(err).Errorf("Content generation failed for %q", word)
		return card.NewFailed(word, fmt.Sprintf("content generation failed: %v", err)), false
	}

	rec, err = parseResponse(raw)
	if err != nil {
		log.WithError(err).Errorf("Could not parse content response for %q", word)
		return card.NewFailed(word, fmt.Sprintf("failed to parse response: %v", err)), false
	}

	return rec, false
}
