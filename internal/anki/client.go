// Package anki publishes finished flashcard records to a running Anki
// instance over the AnkiConnect HTTP API and can export them as a
// standalone .apkg package.
package anki

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// DefaultConnectURL is where the AnkiConnect add-on listens by default.
const DefaultConnectURL = "http://127.0.0.1:8765"

const connectVersion = 6

// Client talks to AnkiConnect. All calls go through a circuit breaker so a
// stopped Anki does not stall a long run with per-note connection timeouts.
type Client struct {
	url     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates an AnkiConnect client. An empty url selects the default
// local endpoint.
func NewClient(url string) *Client {
	if url == "" {
		url = DefaultConnectURL
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "ankiconnect",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnf("AnkiConnect circuit breaker: %s -> %s", from, to)
			},
		}),
	}
}

type connectRequest struct {
	Action  string      `json:"action"`
	Version int         `json:"version"`
	Params  interface{} `json:"params,omitempty"`
}

type connectResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// invoke performs one AnkiConnect action and decodes the result into out
// (which may be nil when the result does not matter). Only transport
// failures count against the breaker: an application-level error such as a
// duplicate note comes from a healthy Anki and belongs to the caller, not
// the circuit.
func (c *Client) invoke(action string, params, out interface{}) error {
	body, err := json.Marshal(connectRequest{
		Action:  action,
		Version: connectVersion,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("AnkiConnect %s failed: %w", action, err)
	}

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(body)
	})
	if err != nil {
		return fmt.Errorf("AnkiConnect %s failed: %w", action, err)
	}

	var decoded connectResponse
	if err := json.Unmarshal(raw.([]byte), &decoded); err != nil {
		return fmt.Errorf("AnkiConnect %s returned a malformed response: %w", action, err)
	}
	if decoded.Error != nil && *decoded.Error != "" {
		return fmt.Errorf("AnkiConnect %s failed: %s", action, *decoded.Error)
	}

	if out != nil {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("AnkiConnect %s returned unexpected result: %w", action, err)
		}
	}
	return nil
}

func (c *Client) post(body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return data, nil
}

// Ping checks that AnkiConnect is reachable and returns its API version.
func (c *Client) Ping() (int, error) {
	var version int
	if err := c.invoke("version", nil, &version); err != nil {
		return 0, err
	}
	return version, nil
}

// MediaDirPath asks Anki for its collection.media directory.
func (c *Client) MediaDirPath() (string, error) {
	var dir string
	if err := c.invoke("getMediaDirPath", nil, &dir); err != nil {
		return "", err
	}
	return dir, nil
}

// AddNote adds a note to Anki and returns the new note ID.
func (c *Client) AddNote(note Note) (int64, error) {
	var id int64
	params := map[string]interface{}{"note": note}
	if err := c.invoke("addNote", params, &id); err != nil {
		return 0, err
	}
	return id, nil
}
