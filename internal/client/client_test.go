package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/segments"
)

func TestClient_Load(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/media/m1/editor.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method: %s", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")

		json.NewEncoder(w).Encode(editor.LoadResponse{
			Duration: 60000,
			Segments: []segments.Range{{Start: 0, End: 30000}},
			Tracks:   []editor.Track{{ID: "t1", Flavor: "presenter/source"}},
		})
	}))
	defer server.Close()

	c := New(server.URL+"/", "test-token", logging.Discard())
	resp, err := c.Load(context.Background(), "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("auth = %q, want %q", gotAuth, "Bearer test-token")
	}
	if len(gotRequestID) != 36 {
		t.Errorf("request id = %q, want a uuid", gotRequestID)
	}
	if resp.Duration != 60000 || len(resp.Segments) != 1 || resp.TrackIDs()[0] != "t1" {
		t.Errorf("load = %+v", resp)
	}
}

func TestClient_Save(t *testing.T) {
	var got editor.SaveRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(editor.SaveResult{CutID: "c1", JobID: "j1"})
	}))
	defer server.Close()

	c := New(server.URL, "test-token", logging.Discard())
	req := editor.SaveRequest{
		Concat:   editor.Concat{Segments: []editor.SaveSegment{{Start: 0, End: 1000, Deleted: true}}, Tracks: []string{"t1"}},
		Workflow: "publish-edl",
	}
	res, err := c.Save(context.Background(), "m1", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CutID != "c1" || res.JobID != "j1" {
		t.Errorf("result = %+v", res)
	}
	if got.Workflow != "publish-edl" || len(got.Concat.Segments) != 1 {
		t.Errorf("server got %+v", got)
	}
}

func TestClient_RequestError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"bad request", http.StatusBadRequest, false},
		{"not found", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, true},
		{"unavailable", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope","code":"X"}` + "\n"))
			}))
			defer server.Close()

			_, err := New(server.URL, "t", logging.Discard()).Load(context.Background(), "m1")

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected *RequestError, got %T: %v", err, err)
			}
			if reqErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", reqErr.StatusCode, tt.status)
			}
			if reqErr.Body != `{"error":"nope","code":"X"}` {
				t.Errorf("body = %q", reqErr.Body)
			}
			if reqErr.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", reqErr.IsRetryable(), tt.retryable)
			}
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url, "t", logging.Discard()).GetJob(context.Background(), "j1")
	if err == nil {
		t.Fatal("expected error")
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		t.Errorf("network failure reported as %v", reqErr)
	}
}

func TestClient_EscapesIDs(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		json.NewEncoder(w).Encode(Media{ID: "a/b"})
	}))
	defer server.Close()

	if _, err := New(server.URL, "t", nil).GetMedia(context.Background(), "a/b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/media/a%2Fb" {
		t.Errorf("path = %q", gotPath)
	}
}
