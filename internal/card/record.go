// Package card holds the per-word flashcard record and its durable
// checkpoint store.
package card

// Record is one word's work product as it moves through the pipeline.
// The Content stage creates it, the Audio stage fills in the audio file
// references and the Publish stage reads it. Once Err is set the record
// is final for the run: no later stage acts on it.
type Record struct {
	Word          string `json:"word"`
	Translation   string `json:"translation"`
	SentenceDA    string `json:"example_sentence_da"`
	SentenceEN    string `json:"example_sentence_en"`
	WordAudio     string `json:"audio_word_file,omitempty"`
	SentenceAudio string `json:"audio_sentence_file,omitempty"`
	Err           string `json:"error,omitempty"`
}

// Failed reports whether the record has been marked failed for this run.
func (r *Record) Failed() bool {
	return r.Err != ""
}

// NewFailed creates a record carrying only the source word and an error,
// used when content generation never produced a card body.
func NewFailed(word, errMsg string) *Record {
	return &Record{Word: word, Err: errMsg}
}
