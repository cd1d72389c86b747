package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/heimdex-editor/internal/catalog"
	"github.com/heimdex/heimdex-editor/internal/db"
	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/playback"
	"github.com/heimdex/heimdex-editor/internal/segments"
)

const testToken = "test-token"

func testConfig(t *testing.T) ServerConfig {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := catalog.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatalf("failed to store token: %v", err)
	}

	sessions := editor.NewManager(logging.Discard())
	t.Cleanup(sessions.CloseAll)

	return ServerConfig{
		CatalogService: catalog.NewService(repo, nil, logging.Discard()),
		PlaybackServer: playback.NewServer(logging.Discard()),
		Repository:     repo,
		Sessions:       sessions,
		Pinger:         database,
		Logger:         logging.Discard(),
		StartTime:      time.Now(),
		Version:        "test",
		PreviewMode:    true,
	}
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return body
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
}

func wantStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d, body: %s", rr.Code, status, rr.Body.String())
	}
}

func wantCode(t *testing.T, rr *httptest.ResponseRecorder, code string) {
	t.Helper()
	body := decodeJSONBody(t, rr)
	if got, _ := body["code"].(string); got != code {
		t.Errorf("error code = %q, want %q (body %v)", got, code, body)
	}
}

// registerLecture registers a 10 s recording with a single track whose file
// holds the bytes 0-9.
func registerLecture(t *testing.T, h http.Handler) MediaResponse {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presenter.mp4")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}

	rr := doRequest(t, h, http.MethodPost, "/api/media", catalog.NewMedia{
		Title:      "Lecture 1",
		DurationMs: 10000,
		Tracks:     []catalog.NewTrack{{Flavor: "presenter/source", Path: path}},
	})
	wantStatus(t, rr, http.StatusCreated)

	var m MediaResponse
	decodeInto(t, rr, &m)
	return m
}

func TestHealth(t *testing.T) {
	router := NewRouter(testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	wantStatus(t, rr, http.StatusOK)
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["database"] != "ok" {
		t.Errorf("health = %v", body)
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	router := NewRouter(testConfig(t))

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"wrong token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/media", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			wantStatus(t, rr, http.StatusUnauthorized)
			wantCode(t, rr, CodeUnauthorized)
		})
	}
}

func TestMediaRoutes(t *testing.T) {
	router := NewRouter(testConfig(t))
	m := registerLecture(t, router)

	if m.Duration != "00:00:10" {
		t.Errorf("duration = %q, want 00:00:10", m.Duration)
	}
	if len(m.Tracks) != 1 || m.Tracks[0].URL != catalog.TrackURL(m.ID, m.Tracks[0].ID) {
		t.Fatalf("tracks = %+v", m.Tracks)
	}

	rr := doRequest(t, router, http.MethodGet, "/api/media", nil)
	wantStatus(t, rr, http.StatusOK)
	var list MediaListResponse
	decodeInto(t, rr, &list)
	if len(list.Media) != 1 || list.Media[0].ID != m.ID {
		t.Errorf("media list = %+v", list.Media)
	}

	rr = doRequest(t, router, http.MethodGet, "/api/media/"+m.ID, nil)
	wantStatus(t, rr, http.StatusOK)

	rr = doRequest(t, router, http.MethodGet, "/api/media/missing", nil)
	wantStatus(t, rr, http.StatusNotFound)
	wantCode(t, rr, CodeNotFound)
}

func TestRegisterMediaInvalid(t *testing.T) {
	router := NewRouter(testConfig(t))

	tests := []struct {
		name string
		body any
	}{
		{"zero duration", catalog.NewMedia{Title: "x", DurationMs: 0, Tracks: []catalog.NewTrack{{Flavor: "a/b", Path: "/nope"}}}},
		{"no tracks", catalog.NewMedia{Title: "x", DurationMs: 1000}},
		{"missing file", catalog.NewMedia{Title: "x", DurationMs: 1000, Tracks: []catalog.NewTrack{{Flavor: "a/b", Path: "/does/not/exist.mp4"}}}},
		{"unknown field", map[string]any{"title": "x", "bogus": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, router, http.MethodPost, "/api/media", tt.body)
			wantStatus(t, rr, http.StatusBadRequest)
			wantCode(t, rr, CodeBadRequest)
		})
	}
}

func TestEditorLoadAndSave(t *testing.T) {
	router := NewRouter(testConfig(t))
	m := registerLecture(t, router)
	path := "/api/media/" + m.ID + "/editor.json"

	rr := doRequest(t, router, http.MethodGet, path, nil)
	wantStatus(t, rr, http.StatusOK)
	var load editor.LoadResponse
	decodeInto(t, rr, &load)
	if load.Duration != 10000 || len(load.Segments) != 0 {
		t.Fatalf("fresh load = %+v", load)
	}
	if len(load.Workflows) != 2 || len(load.Previews) != 1 {
		t.Errorf("workflows = %+v, previews = %+v", load.Workflows, load.Previews)
	}

	rr = doRequest(t, router, http.MethodPost, path, editor.SaveRequest{
		Concat:   editor.Concat{Segments: []editor.SaveSegment{{Start: 0, End: 2000, Deleted: true}}},
		Workflow: "publish-edl",
	})
	wantStatus(t, rr, http.StatusCreated)
	var res editor.SaveResult
	decodeInto(t, rr, &res)
	if res.CutID == "" || res.JobID == "" {
		t.Fatalf("save result = %+v", res)
	}

	rr = doRequest(t, router, http.MethodGet, path, nil)
	wantStatus(t, rr, http.StatusOK)
	decodeInto(t, rr, &load)
	want := []segments.Range{{Start: 2000, End: 10000}}
	if len(load.Segments) != 1 || load.Segments[0] != want[0] {
		t.Errorf("segments after save = %+v, want %+v", load.Segments, want)
	}

	rr = doRequest(t, router, http.MethodGet, "/api/jobs/"+res.JobID, nil)
	wantStatus(t, rr, http.StatusOK)
	var job JobResponse
	decodeInto(t, rr, &job)
	if job.Status != catalog.JobStatusPending || job.CutID != res.CutID || job.WorkflowID != "publish-edl" {
		t.Errorf("job = %+v", job)
	}

	rr = doRequest(t, router, http.MethodGet, "/api/jobs/missing", nil)
	wantStatus(t, rr, http.StatusNotFound)
}

func TestEditorSaveRejected(t *testing.T) {
	router := NewRouter(testConfig(t))
	m := registerLecture(t, router)
	path := "/api/media/" + m.ID + "/editor.json"

	tests := []struct {
		name string
		req  editor.SaveRequest
	}{
		{"everything deleted", editor.SaveRequest{Concat: editor.Concat{Segments: []editor.SaveSegment{{Start: 0, End: 10000, Deleted: true}}}}},
		{"past duration", editor.SaveRequest{Concat: editor.Concat{Segments: []editor.SaveSegment{{Start: 5000, End: 20000, Deleted: true}}}}},
		{"unknown workflow", editor.SaveRequest{Workflow: "nope"}},
		{"unknown track", editor.SaveRequest{Concat: editor.Concat{Tracks: []string{"nope"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, router, http.MethodPost, path, tt.req)
			wantStatus(t, rr, http.StatusBadRequest)
			wantCode(t, rr, CodeBadRequest)
		})
	}
}

func TestListWorkflows(t *testing.T) {
	router := NewRouter(testConfig(t))

	rr := doRequest(t, router, http.MethodGet, "/api/workflows", nil)
	wantStatus(t, rr, http.StatusOK)
	var resp WorkflowsResponse
	decodeInto(t, rr, &resp)

	kinds := map[string]string{}
	for _, w := range resp.Workflows {
		kinds[w.ID] = w.Kind
	}
	if kinds["publish-edl"] != catalog.WorkflowKindEDL || kinds["render-cut"] != catalog.WorkflowKindRender {
		t.Errorf("workflows = %+v", resp.Workflows)
	}
}

func TestPlayTrack(t *testing.T) {
	router := NewRouter(testConfig(t))
	m := registerLecture(t, router)
	url := catalog.TrackURL(m.ID, m.Tracks[0].ID)

	play := func(method, path, remote, rangeHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+testToken)
		req.RemoteAddr = remote
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := play(http.MethodGet, url, "127.0.0.1:5000", "bytes=2-5")
	wantStatus(t, rr, http.StatusPartialContent)
	if got := rr.Body.String(); got != "2345" {
		t.Errorf("body = %q, want 2345", got)
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", got)
	}

	rr = play(http.MethodHead, url, "127.0.0.1:5000", "")
	wantStatus(t, rr, http.StatusOK)
	if rr.Body.Len() != 0 {
		t.Errorf("HEAD wrote %d body bytes", rr.Body.Len())
	}

	rr = play(http.MethodGet, url, "8.8.8.8:5000", "")
	wantStatus(t, rr, http.StatusForbidden)
	wantCode(t, rr, CodeForbidden)

	rr = play(http.MethodGet, catalog.TrackURL(m.ID, "nope"), "127.0.0.1:5000", "")
	wantStatus(t, rr, http.StatusNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	router := NewRouter(testConfig(t))
	m := registerLecture(t, router)

	rr := doRequest(t, router, http.MethodPost, "/api/sessions", OpenSessionRequest{MediaID: m.ID})
	wantStatus(t, rr, http.StatusCreated)
	var sess SessionResponse
	decodeInto(t, rr, &sess)
	if sess.ID == "" || !sess.Preview || len(sess.Segments.Segments) != 1 {
		t.Fatalf("session = %+v", sess)
	}
	base := "/api/sessions/" + sess.ID

	at := int64(4000)
	rr = doRequest(t, router, http.MethodPost, base+"/ops", OpRequest{Op: "seek", At: &at})
	wantStatus(t, rr, http.StatusOK)
	decodeInto(t, rr, &sess)
	if sess.Position != 4000 {
		t.Errorf("position = %d, want 4000", sess.Position)
	}

	rr = doRequest(t, router, http.MethodPost, base+"/ops", OpRequest{Op: "split"})
	wantStatus(t, rr, http.StatusOK)
	decodeInto(t, rr, &sess)
	if len(sess.Segments.Segments) != 2 || sess.Segments.Segments[1].Start != 4000 {
		t.Fatalf("segments after split = %+v", sess.Segments.Segments)
	}

	rr = doRequest(t, router, http.MethodPost, base+"/ops", OpRequest{Op: "toggle", Index: 0})
	wantStatus(t, rr, http.StatusOK)

	// the last kept segment cannot be deleted
	rr = doRequest(t, router, http.MethodPost, base+"/ops", OpRequest{Op: "toggle", Index: 1})
	wantStatus(t, rr, http.StatusUnprocessableEntity)
	wantCode(t, rr, CodeRejected)

	rr = doRequest(t, router, http.MethodPost, base+"/ops", OpRequest{Op: "set_end", Index: 0, Text: "garbage"})
	wantStatus(t, rr, http.StatusUnprocessableEntity)

	rr = doRequest(t, router, http.MethodPost, base+"/ops", OpRequest{Op: "teleport"})
	wantStatus(t, rr, http.StatusBadRequest)

	rr = doRequest(t, router, http.MethodPost, base+"/ops", OpRequest{Op: "drag_end"})
	wantStatus(t, rr, http.StatusConflict)
	wantCode(t, rr, CodeConflict)

	rr = doRequest(t, router, http.MethodPost, base+"/save", SaveSessionRequest{})
	wantStatus(t, rr, http.StatusCreated)
	var res editor.SaveResult
	decodeInto(t, rr, &res)
	if res.CutID == "" || res.JobID != "" {
		t.Errorf("save result = %+v", res)
	}

	rr = doRequest(t, router, http.MethodGet, "/api/media/"+m.ID+"/editor.json", nil)
	var load editor.LoadResponse
	decodeInto(t, rr, &load)
	if len(load.Segments) != 1 || load.Segments[0] != (segments.Range{Start: 4000, End: 10000}) {
		t.Errorf("saved segments = %+v", load.Segments)
	}

	rr = doRequest(t, router, http.MethodGet, "/api/sessions", nil)
	var list SessionsResponse
	decodeInto(t, rr, &list)
	if len(list.Sessions) != 1 {
		t.Errorf("sessions = %+v", list.Sessions)
	}

	rr = doRequest(t, router, http.MethodDelete, base, nil)
	wantStatus(t, rr, http.StatusNoContent)
	rr = doRequest(t, router, http.MethodGet, base, nil)
	wantStatus(t, rr, http.StatusNotFound)
}

func TestOpenSessionUnknownMedia(t *testing.T) {
	router := NewRouter(testConfig(t))

	rr := doRequest(t, router, http.MethodPost, "/api/sessions", OpenSessionRequest{MediaID: "missing"})
	wantStatus(t, rr, http.StatusNotFound)

	rr = doRequest(t, router, http.MethodPost, "/api/sessions", OpenSessionRequest{})
	wantStatus(t, rr, http.StatusBadRequest)
}

func TestRequestIDEchoed(t *testing.T) {
	router := NewRouter(testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-Id"); got != "abc123" {
		t.Errorf("X-Request-Id = %q, want abc123", got)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := rr.Header().Get("X-Request-Id"); len(got) != 8 || strings.Contains(got, " ") {
		t.Errorf("generated X-Request-Id = %q", got)
	}
}
