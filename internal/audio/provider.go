package audio

import (
	"context"
	"errors"
	"fmt"
)

// ErrRateLimited marks a speech backend refusal due to rate limiting
// (HTTP 429). It is the only retryable synthesis failure.
var ErrRateLimited = errors.New("speech backend rate limit exceeded")

// IsRateLimited reports whether err is a rate-limit condition.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Provider defines the interface for text-to-speech backends
type Provider interface {
	// Synthesize generates audio from text and saves it to the specified file
	Synthesize(ctx context.Context, text string, outputFile string) error

	// Name returns the provider name
	Name() string
}

// Config holds common configuration for audio providers
type Config struct {
	OutputFormat string // "mp3" or "wav"

	// OpenAI-specific settings
	OpenAIKey         string
	OpenAIModel       string  // "tts-1", "tts-1-hd", or "gpt-4o-mini-tts"
	OpenAIVoice       string  // "alloy", "ash", "ballad", "coral", "echo", "fable", "onyx", "nova", "sage", "shimmer", "verse"
	OpenAISpeed       float64 // 0.25 to 4.0
	OpenAIInstruction string  // Voice instructions for gpt-4o-mini-tts model
}

// DefaultProviderConfig returns default configuration
func DefaultProviderConfig() *Config {
	return &Config{
		OutputFormat:      "mp3",
		OpenAIModel:       "gpt-4o-mini-tts",
		OpenAIVoice:       "alloy",
		OpenAISpeed:       0.9,
		OpenAIInstruction: "You are speaking Danish (dansk). Pronounce the text with authentic Danish phonetics. Speak slowly and clearly for language learners.",
	}
}

// NewProvider creates the OpenAI audio provider from configuration.
func NewProvider(config *Config) (Provider, error) {
	if config == nil {
		config = DefaultProviderConfig()
	}
	if config.OpenAIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return NewOpenAIProvider(config)
}
