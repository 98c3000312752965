// Package cli wires flags, configuration and progress rendering around the
// pipeline.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codeberg.org/snonux/ordkort/internal"
	"codeberg.org/snonux/ordkort/internal/pipeline"
)

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ordkort <words-file>",
		Short: "Danish Anki Flashcard Generator",
		Long: `ordkort turns a list of Danish words into Anki flashcards.

For every word it generates a translation and example sentence via Gemini,
synthesizes pronunciation audio via OpenAI TTS (cached across runs), and
publishes the cards to Anki through AnkiConnect. Interrupted runs resume
from a checkpoint.

Examples:
  ordkort words.txt                    # Generate and publish flashcards
  ordkort words.txt --apkg deck.apkg   # Export a standalone .apkg instead
  ordkort --check                      # Verify Anki and API keys are reachable`,
		Args:    cobra.MaximumNArgs(1),
		Version: internal.Version,
	}

	setupFlags(rootCmd, flags)

	return rootCmd
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	// Global flags
	cmd.PersistentFlags().StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.ordkort.yaml)")

	// Local flags
	cmd.Flags().StringVar(&flags.DeckName, "deck-name", flags.DeckName, "Anki deck to add cards to")
	cmd.Flags().StringVar(&flags.ModelName, "model-name", flags.ModelName, "Anki note type for forward cards")
	cmd.Flags().StringVar(&flags.ReverseModelName, "reverse-model-name", flags.ReverseModelName, "Anki note type for reverse cards")
	cmd.Flags().StringVarP(&flags.AudioDir, "audio-dir", "o", flags.AudioDir, "Working directory for synthesized audio")
	cmd.Flags().StringVarP(&flags.AudioFormat, "format", "f", flags.AudioFormat, "Audio format (mp3 or wav)")
	cmd.Flags().StringVar(&flags.CacheDir, "cache-dir", flags.CacheDir, "Audio cache directory")
	cmd.Flags().StringVar(&flags.CheckpointFile, "checkpoint", flags.CheckpointFile, "Checkpoint file for resuming interrupted runs")
	cmd.Flags().Float64Var(&flags.RequestDelay, "request-delay", flags.RequestDelay, "Delay between synthesis requests in seconds")
	cmd.Flags().BoolVar(&flags.SkipExistingAudio, "skip-existing-audio", false, "Reuse audio files already in the audio directory")
	cmd.Flags().BoolVar(&flags.TestMode, "test-mode", false, "Skip audio generation entirely")
	cmd.Flags().BoolVar(&flags.NoReverse, "no-reverse", false, "Do not create reverse (English first) cards")
	cmd.Flags().StringVar(&flags.APKGPath, "apkg", "", "Export a standalone .apkg file instead of publishing via AnkiConnect")
	cmd.Flags().StringVar(&flags.AnkiURL, "anki-url", "", "AnkiConnect endpoint (default http://127.0.0.1:8765)")
	cmd.Flags().BoolVar(&flags.Check, "check", false, "Probe AnkiConnect and API keys, then exit")
	cmd.Flags().BoolVar(&flags.SaveConfig, "save-config", false, "Write the effective configuration to the config file and exit")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn, error")

	// OpenAI flags
	cmd.Flags().StringVar(&flags.OpenAIModel, "openai-model", flags.OpenAIModel, "OpenAI TTS model: tts-1, tts-1-hd, gpt-4o-mini-tts")
	cmd.Flags().StringVar(&flags.OpenAIVoice, "openai-voice", flags.OpenAIVoice, "OpenAI voice: alloy, ash, ballad, coral, echo, fable, onyx, nova, sage, shimmer, verse")
	cmd.Flags().Float64Var(&flags.OpenAISpeed, "openai-speed", flags.OpenAISpeed, "OpenAI speech speed (0.25 to 4.0)")
	cmd.Flags().StringVar(&flags.OpenAIInstruction, "openai-instruction", "", "Voice instructions for gpt-4o-mini-tts model")

	// Gemini flags
	cmd.Flags().StringVar(&flags.GeminiModel, "gemini-model", flags.GeminiModel, "Gemini model for content generation")

	// Bind flags to viper
	bindFlagsToViper(cmd)
}

func bindFlagsToViper(cmd *cobra.Command) {
	viper.BindPFlag("anki.deck_name", cmd.Flags().Lookup("deck-name"))
	viper.BindPFlag("anki.model_name", cmd.Flags().Lookup("model-name"))
	viper.BindPFlag("anki.reverse_model_name", cmd.Flags().Lookup("reverse-model-name"))
	viper.BindPFlag("anki.url", cmd.Flags().Lookup("anki-url"))
	viper.BindPFlag("audio.directory", cmd.Flags().Lookup("audio-dir"))
	viper.BindPFlag("audio.format", cmd.Flags().Lookup("format"))
	viper.BindPFlag("audio.cache_directory", cmd.Flags().Lookup("cache-dir"))
	viper.BindPFlag("audio.request_delay", cmd.Flags().Lookup("request-delay"))
	viper.BindPFlag("audio.openai_model", cmd.Flags().Lookup("openai-model"))
	viper.BindPFlag("audio.openai_voice", cmd.Flags().Lookup("openai-voice"))
	viper.BindPFlag("audio.openai_speed", cmd.Flags().Lookup("openai-speed"))
	viper.BindPFlag("audio.openai_instruction", cmd.Flags().Lookup("openai-instruction"))
	viper.BindPFlag("content.gemini_model", cmd.Flags().Lookup("gemini-model"))
	viper.BindPFlag("pipeline.checkpoint", cmd.Flags().Lookup("checkpoint"))
	viper.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))
}

// InitConfig initializes viper configuration
func InitConfig(cfgFile string) {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".ordkort" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ordkort")
	}

	// Environment variables
	viper.SetEnvPrefix("ORDKORT")
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// SetupLogging configures logrus from the effective log level.
func SetupLogging(level string) {
	if configured := viper.GetString("log.level"); configured != "" {
		level = configured
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// SaveConfig writes the effective configuration to the config file.
func SaveConfig(cfgFile string) error {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to locate home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".ordkort.yaml")
	}
	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Println("Configuration saved to:", cfgFile)
	return nil
}

// BuildConfig turns the effective flag/config values into a pipeline
// configuration for the given words file.
func BuildConfig(flags *Flags, wordsFile string) pipeline.Config {
	config := pipeline.DefaultConfig()
	config.WordsFile = wordsFile
	config.DeckName = flags.DeckName
	config.ModelName = flags.ModelName
	config.ReverseModelName = flags.ReverseModelName
	config.AudioDir = flags.AudioDir
	config.AudioFormat = flags.AudioFormat
	config.CacheDir = flags.CacheDir
	config.CheckpointFile = flags.CheckpointFile
	config.RequestDelay = time.Duration(flags.RequestDelay * float64(time.Second))
	config.SkipExistingAudio = flags.SkipExistingAudio
	config.TestMode = flags.TestMode
	config.GenerateReverseCards = !flags.NoReverse
	return config
}

// GetOpenAIKey retrieves the OpenAI API key from environment or config
func GetOpenAIKey() string {
	// First check environment variable
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}

	// Then check config file
	return viper.GetString("audio.openai_key")
}

// GetGeminiKey retrieves the Gemini API key from environment or config
func GetGeminiKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return viper.GetString("content.gemini_key")
}
