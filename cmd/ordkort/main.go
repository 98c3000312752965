package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/ordkort/internal/anki"
	"codeberg.org/snonux/ordkort/internal/audio"
	"codeberg.org/snonux/ordkort/internal/cache"
	"codeberg.org/snonux/ordkort/internal/card"
	"codeberg.org/snonux/ordkort/internal/cli"
	"codeberg.org/snonux/ordkort/internal/content"
	"codeberg.org/snonux/ordkort/internal/pipeline"
	"codeberg.org/snonux/ordkort/internal/settings"
)

func main() {
	// Create flags instance
	flags := cli.NewFlags()

	// Create root command
	rootCmd := cli.CreateRootCommand(flags)

	// Set up command initialization
	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
		cli.SetupLogging(flags.LogLevel)
	})

	// Set the run function
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, args, flags)
	}

	// Execute command
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCommand(cmd *cobra.Command, args []string, flags *cli.Flags) error {
	// Handle --save-config flag
	if flags.SaveConfig {
		return cli.SaveConfig(flags.CfgFile)
	}

	// Handle --check flag
	if flags.Check {
		return runChecks(flags)
	}

	if len(args) == 0 {
		return fmt.Errorf("a words file is required (one word per line)")
	}
	wordsFile := args[0]

	prefs := settings.NewStore(settings.DefaultPath())
	prefs.Load()
	prefs.Set("last_words_file", wordsFile)
	if err := prefs.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save settings: %v\n", err)
	}

	config := cli.BuildConfig(flags, wordsFile)

	if err := os.MkdirAll(config.AudioDir, 0755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}

	token := &pipeline.Token{}
	observer := cli.NewProgressObserver()

	generator, err := buildGenerator(flags, config, token, observer)
	if err != nil {
		observer.Stop()
		return err
	}

	// First SIGINT requests a graceful stop at the next word boundary.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCancelling after the current word...")
		generator.Cancel()
		signal.Stop(sigCh)
	}()

	err = generator.Run(context.Background())
	observer.Stop()
	cli.PrintSummary(generator.State(), generator.Stats())
	return err
}

// buildGenerator assembles the stores, providers and stages for one run.
func buildGenerator(flags *cli.Flags, config pipeline.Config, token *pipeline.Token,
	observer pipeline.Observer) (*pipeline.Generator, error) {
	ctx := context.Background()

	contentProvider, err := content.NewGeminiProvider(ctx, cli.GetGeminiKey(), flags.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("content backend unavailable: %w", err)
	}

	checkpoint := card.NewCheckpointStore(config.CheckpointFile)
	contentStage := content.NewStage(contentProvider, checkpoint)

	// In test mode the audio stage is never invoked.
	var audioStage pipeline.AudioStage
	if !config.TestMode {
		audioConfig := audio.DefaultProviderConfig()
		audioConfig.OutputFormat = config.AudioFormat
		audioConfig.OpenAIKey = cli.GetOpenAIKey()
		audioConfig.OpenAIModel = flags.OpenAIModel
		audioConfig.OpenAIVoice = flags.OpenAIVoice
		audioConfig.OpenAISpeed = flags.OpenAISpeed
		if flags.OpenAIInstruction != "" {
			audioConfig.OpenAIInstruction = flags.OpenAIInstruction
		}

		audioProvider, err := audio.NewProvider(audioConfig)
		if err != nil {
			return nil, fmt.Errorf("speech backend unavailable: %w", err)
		}
		cacheStore, err := cache.New(config.CacheDir, config.AudioFormat)
		if err != nil {
			return nil, err
		}
		audioStage = audio.NewStage(audioProvider, cacheStore, audio.StageOptions{
			AudioDir:     config.AudioDir,
			Format:       config.AudioFormat,
			RequestDelay: config.RequestDelay,
			SkipExisting: config.SkipExistingAudio,
		}, token)
	}

	var publisher pipeline.Publisher
	if flags.APKGPath != "" {
		publisher = &apkgPublisher{
			exporter:   anki.NewExporter(config.DeckName, config.AudioDir),
			outputPath: flags.APKGPath,
		}
	} else {
		client := anki.NewClient(flags.AnkiURL)
		publisher = anki.NewPublisher(client, anki.PublisherOptions{
			AudioDir:         config.AudioDir,
			DeckName:         config.DeckName,
			ModelName:        config.ModelName,
			ReverseModelName: config.ReverseModelName,
			GenerateReverse:  config.GenerateReverseCards,
		}, token)
	}

	return pipeline.NewGenerator(config, contentStage, audioStage, publisher,
		checkpoint, observer, token), nil
}

// apkgPublisher satisfies the publisher contract by writing a standalone
// package instead of talking to AnkiConnect. Staging is a no-op: the
// exporter reads audio straight from the working directory.
type apkgPublisher struct {
	exporter   *anki.Exporter
	outputPath string
}

func (p *apkgPublisher) Stage(records []*card.Record) error {
	return nil
}

func (p *apkgPublisher) Publish(records []*card.Record) error {
	if err := p.exporter.Export(records, p.outputPath); err != nil {
		return err
	}
	fmt.Println("Anki package created:", p.outputPath)
	return nil
}

// runChecks probes the external collaborators before a real run.
func runChecks(flags *cli.Flags) error {
	ok := true

	if cli.GetGeminiKey() == "" {
		fmt.Println("✗ GEMINI_API_KEY is not set")
		ok = false
	} else {
		fmt.Println("✓ Gemini API key present")
	}

	if cli.GetOpenAIKey() == "" {
		fmt.Println("✗ OPENAI_API_KEY is not set")
		ok = false
	} else {
		fmt.Println("✓ OpenAI API key present")
	}

	client := anki.NewClient(flags.AnkiURL)
	if version, err := client.Ping(); err != nil {
		fmt.Printf("✗ AnkiConnect unreachable: %v\n", err)
		ok = false
	} else {
		fmt.Printf("✓ AnkiConnect reachable (API version %d)\n", version)
	}

	if !ok {
		return fmt.Errorf("launch checks failed")
	}
	fmt.Println("All checks passed")
	return nil
}
