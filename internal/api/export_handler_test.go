package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/heimdex/heimdex-editor/internal/editor"
)

func TestCutEDL(t *testing.T) {
	router := NewRouter(testConfig(t))
	m := registerLecture(t, router)

	rr := doRequest(t, router, http.MethodPost, "/api/media/"+m.ID+"/editor.json", editor.SaveRequest{
		Concat: editor.Concat{Segments: []editor.SaveSegment{{Start: 0, End: 2000, Deleted: true}}},
	})
	wantStatus(t, rr, http.StatusCreated)

	rr = doRequest(t, router, http.MethodGet, "/api/media/"+m.ID+"/cut.edl", nil)
	wantStatus(t, rr, http.StatusOK)

	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="Lecture 1.edl"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "TITLE: Lecture 1\n") {
		t.Errorf("EDL header missing:\n%s", body)
	}
	if !strings.Contains(body, "00:00:02:00 00:00:10:00 00:00:00:00 00:00:08:00") {
		t.Errorf("EDL event missing:\n%s", body)
	}
}

func TestCutEDL_NoCut(t *testing.T) {
	router := NewRouter(testConfig(t))
	m := registerLecture(t, router)

	rr := doRequest(t, router, http.MethodGet, "/api/media/"+m.ID+"/cut.edl", nil)
	wantStatus(t, rr, http.StatusNotFound)
	wantCode(t, rr, CodeNotFound)

	rr = doRequest(t, router, http.MethodGet, "/api/media/missing/cut.edl", nil)
	wantStatus(t, rr, http.StatusNotFound)
}
