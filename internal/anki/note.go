package anki

import (
	"fmt"

	"codeberg.org/snonux/ordkort/internal/card"
)

// Note is an AnkiConnect addNote payload.
type Note struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Options   NoteOptions       `json:"options"`
}

// NoteOptions carries the addNote behavior switches.
type NoteOptions struct {
	AllowDuplicate bool `json:"allowDuplicate"`
}

func soundTag(filename string) string {
	if filename == "" {
		return ""
	}
	return fmt.Sprintf("[sound:%s]", filename)
}

// ForwardNote builds the Danish-to-English note for a record.
func ForwardNote(rec *card.Record, deckName, modelName string) Note {
	return Note{
		DeckName:  deckName,
		ModelName: modelName,
		Fields: map[string]string{
			"Word":                 fmt.Sprintf("<b>%s</b>", rec.Word),
			"Danish Sentence":      rec.SentenceDA,
			"Word Translation":     fmt.Sprintf("<b>%s</b>", rec.Translation),
			"Sentence Translation": rec.SentenceEN,
			"Audio":                soundTag(rec.WordAudio),
			"Sentence Audio":       soundTag(rec.SentenceAudio),
		},
		Options: NoteOptions{AllowDuplicate: false},
	}
}

// ReverseNote builds the English-to-Danish note for a record. It shares the
// deck with the forward note but uses the reverse note type.
func ReverseNote(rec *card.Record, deckName, modelName string) Note {
	return Note{
		DeckName:  deckName,
		ModelName: modelName,
		Fields: map[string]string{
			"English":          fmt.Sprintf("<b>%s</b>", rec.Translation),
			"English Sentence": rec.SentenceEN,
			"Danish Word":      fmt.Sprintf("<b>%s</b>", rec.Word),
			"Danish Sentence":  rec.SentenceDA,
			"Audio":            soundTag(rec.WordAudio),
			"Sentence Audio":   soundTag(rec.SentenceAudio),
		},
		Options: NoteOptions{AllowDuplicate: false},
	}
}
