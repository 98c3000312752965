package anki

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker"
)

func newTestServer(t *testing.T, handler func(req connectRequest) (interface{}, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req connectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("malformed request: %v", err)
		}
		if req.Version != connectVersion {
			t.Errorf("unexpected API version %d", req.Version)
		}

		result, errMsg := handler(req)
		resp := map[string]interface{}{"result": result}
		if errMsg != "" {
			resp["error"] = errMsg
		} else {
			resp["error"] = nil
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClientPing(t *testing.T) {
	server := newTestServer(t, func(req connectRequest) (interface{}, string) {
		if req.Action != "version" {
			t.Errorf("unexpected action %q", req.Action)
		}
		return 6, ""
	})
	defer server.Close()

	version, err := NewClient(server.URL).Ping()
	if err != nil {
		t.Fatal(err)
	}
	if version != 6 {
		t.Errorf("expected version 6, got %d", version)
	}
}

func TestClientMediaDirPath(t *testing.T) {
	server := newTestServer(t, func(req connectRequest) (interface{}, string) {
		if req.Action != "getMediaDirPath" {
			t.Errorf("unexpected action %q", req.Action)
		}
		return "/home/user/.local/share/Anki2/User 1/collection.media", ""
	})
	defer server.Close()

	dir, err := NewClient(server.URL).MediaDirPath()
	if err != nil {
		t.Fatal(err)
	}
	if dir == "" {
		t.Error("expected a media directory path")
	}
}

func TestClientAddNote(t *testing.T) {
	server := newTestServer(t, func(req connectRequest) (interface{}, string) {
		if req.Action != "addNote" {
			t.Errorf("unexpected action %q", req.Action)
		}
		params, ok := req.Params.(map[string]interface{})
		if !ok || params["note"] == nil {
			t.Errorf("addNote params missing note: %v", req.Params)
		}
		return 1496198395707, ""
	})
	defer server.Close()

	rec := sampleRecord()
	id, err := NewClient(server.URL).AddNote(ForwardNote(rec, "Danish vocab", "Danish"))
	if err != nil {
		t.Fatal(err)
	}
	if id != 1496198395707 {
		t.Errorf("unexpected note ID %d", id)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	server := newTestServer(t, func(req connectRequest) (interface{}, string) {
		return nil, "cannot create note because it is a duplicate"
	})
	defer server.Close()

	_, err := NewClient(server.URL).AddNote(ForwardNote(sampleRecord(), "Danish vocab", "Danish"))
	if err == nil {
		t.Fatal("expected error from API error field")
	}
}

func TestClientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	note := ForwardNote(sampleRecord(), "Danish vocab", "Danish")
	for i := 0; i < 3; i++ {
		if _, err := client.AddNote(note); err == nil {
			t.Fatal("expected error")
		}
	}

	// The breaker is now open; further calls must fail fast without
	// reaching the server.
	server.Close()
	if _, err := client.AddNote(note); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected fast failure from open breaker, got %v", err)
	}
}

func TestClientBreakerIgnoresAPIErrors(t *testing.T) {
	var calls int
	server := newTestServer(t, func(req connectRequest) (interface{}, string) {
		calls++
		if calls <= 3 {
			return nil, "cannot create note because it is a duplicate"
		}
		return 1496198395707, ""
	})
	defer server.Close()

	client := NewClient(server.URL)
	note := ForwardNote(sampleRecord(), "Danish vocab", "Danish")

	// Refused notes come from a healthy Anki and must not open the
	// breaker: each one is that record's failure, not the server's.
	for i := 0; i < 3; i++ {
		_, err := client.AddNote(note)
		if err == nil {
			t.Fatal("expected duplicate error")
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("breaker opened on application error: %v", err)
		}
	}

	id, err := client.AddNote(note)
	if err != nil {
		t.Fatalf("expected note to reach the server, got %v", err)
	}
	if id != 1496198395707 {
		t.Errorf("unexpected note ID %d", id)
	}
	if calls != 4 {
		t.Errorf("expected 4 server calls, got %d", calls)
	}
}
