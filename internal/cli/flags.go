package cli

// Flags holds all command-line flag values
type Flags struct {
	// General flags
	CfgFile    string
	SaveConfig bool
	Check      bool
	LogLevel   string

	// Pipeline flags
	DeckName          string
	ModelName         string
	ReverseModelName  string
	AudioDir          string
	AudioFormat       string
	CacheDir          string
	CheckpointFile    string
	RequestDelay      float64 // seconds
	SkipExistingAudio bool
	TestMode          bool
	NoReverse         bool

	// Output flags
	APKGPath string
	AnkiURL  string

	// OpenAI TTS flags
	OpenAIModel       string
	OpenAIVoice       string
	OpenAISpeed       float64
	OpenAIInstruction string

	// Gemini flags
	GeminiModel string
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		LogLevel:         "info",
		DeckName:         "Danish vocab",
		ModelName:        "Danish",
		ReverseModelName: "Danish Reverse",
		AudioDir:         "audio_files",
		AudioFormat:      "mp3",
		CacheDir:         "audio_cache",
		CheckpointFile:   "checkpoint.json",
		RequestDelay:     6.5,
		OpenAIModel:      "gpt-4o-mini-tts",
		OpenAIVoice:      "alloy",
		OpenAISpeed:      0.9,
		GeminiModel:      "gemini-flash-lite-latest",
	}
}
