package card

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// CheckpointStore persists the word -> record mapping of completed content
// generations so an interrupted run can resume without redoing finished
// words. Writes are synchronous and write the full mapping every time:
// a crash loses at most the word in flight.
type CheckpointStore struct {
	path    string
	records map[string]*Record
}

// NewCheckpointStore creates a store backed by the given JSON file.
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{
		path:    path,
		records: make(map[string]*Record),
	}
}

// Load reads the checkpoint file if it exists. A missing or malformed file
// is never fatal: it is logged and the store starts empty.
func (s *CheckpointStore) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warnf("Could not read checkpoint %s", s.path)
		}
		return
	}

	records := make(map[string]*Record)
	if err := json.Unmarshal(data, &records); err != nil {
		log.WithError(err).Warnf("Malformed checkpoint %s, starting empty", s.path)
		return
	}

	s.records = records
	log.Infof("Loaded checkpoint with %d completed words", len(records))
}

// Get returns the checkpointed record for a word, if any.
func (s *CheckpointStore) Get(word string) (*Record, bool) {
	rec, ok := s.records[word]
	return rec, ok
}

// Len returns the number of checkpointed words.
func (s *CheckpointStore) Len() int {
	return len(s.records)
}

// Put records a completed word and writes the full mapping through to disk.
// Records carrying an error are rejected: the checkpoint only ever holds
// successfully generated cards.
func (s *CheckpointStore) Put(word string, rec *Record) error {
	if rec == nil || rec.Failed() {
		return fmt.Errorf("refusing to checkpoint failed record for %q", word)
	}

	s.records[word] = rec

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		log.WithError(err).Warn("Could not encode checkpoint")
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		log.WithError(err).Warnf("Could not save checkpoint %s", s.path)
		return err
	}
	return nil
}

// Clear removes the checkpoint file. Called only after a run that reached
// the completed state without being cancelled.
func (s *CheckpointStore) Clear() {
	s.records = make(map[string]*Record)
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warnf("Could not remove checkpoint %s", s.path)
	}
}
