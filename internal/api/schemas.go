package api

import (
	"strings"
	"time"

	"github.com/heimdex/heimdex-editor/internal/catalog"
	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/segments"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

type HealthResponse struct {
	Status   string          `json:"status"`
	Version  string          `json:"version"`
	UptimeS  int64           `json:"uptime_s"`
	Database string          `json:"database"`
	Render   *RenderResponse `json:"render,omitempty"`
	Sessions int             `json:"sessions"`
	Jobs     int             `json:"jobs_active"`
	Paused   bool            `json:"runner_paused"`
}

type RenderResponse struct {
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type TrackResponse struct {
	ID       string           `json:"id"`
	Flavor   string           `json:"flavor"`
	URL      string           `json:"url"`
	Segments []segments.Range `json:"segments,omitempty"`
}

type MediaResponse struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	DurationMs int64           `json:"duration_ms"`
	Duration   string          `json:"duration"`
	Tracks     []TrackResponse `json:"tracks"`
	CreatedAt  string          `json:"created_at"`
}

type MediaListResponse struct {
	Media []MediaResponse `json:"media"`
}

type WorkflowResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type WorkflowsResponse struct {
	Workflows []WorkflowResponse `json:"workflows"`
}

type JobResponse struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	MediaID    string   `json:"media_id,omitempty"`
	CutID      string   `json:"cut_id,omitempty"`
	WorkflowID string   `json:"workflow_id,omitempty"`
	Progress   int      `json:"progress"`
	Outputs    []string `json:"outputs,omitempty"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type OpenSessionRequest struct {
	MediaID string `json:"media_id"`
	Preview *bool  `json:"preview,omitempty"`
}

// SessionResponse is the full state of a server-hosted session.
type SessionResponse struct {
	ID         string                `json:"id"`
	MediaID    string                `json:"media_id"`
	Segments   segments.List         `json:"segments"`
	Timeline   timeline.Timeline     `json:"timeline"`
	Position   int64                 `json:"position"`
	Player     string                `json:"player"`
	Preview    bool                  `json:"preview"`
	Drag       string                `json:"drag"`
	Workflows  []editor.Workflow     `json:"workflows"`
	Tracks     []editor.Track        `json:"tracks"`
	Zoom       []timeline.ZoomOption `json:"zoom_options"`
	LastActive string                `json:"last_active"`
}

type SessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type SessionSummary struct {
	ID         string `json:"id"`
	MediaID    string `json:"media_id"`
	LastActive string `json:"last_active"`
}

type SaveSessionRequest struct {
	Workflow string `json:"workflow,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func MediaToResponse(m *catalog.Media) MediaResponse {
	resp := MediaResponse{
		ID:         m.ID,
		Title:      m.Title,
		DurationMs: m.DurationMs,
		Duration:   segments.FormatTime(m.DurationMs, false),
		Tracks:     make([]TrackResponse, len(m.Tracks)),
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
	for i, t := range m.Tracks {
		resp.Tracks[i] = TrackResponse{
			ID:       t.ID,
			Flavor:   t.Flavor,
			URL:      catalog.TrackURL(m.ID, t.ID),
			Segments: t.Segments,
		}
	}
	return resp
}

func WorkflowToResponse(w *catalog.Workflow) WorkflowResponse {
	return WorkflowResponse{ID: w.ID, Name: w.Name, Kind: w.Kind}
}

func JobToResponse(j *catalog.Job) JobResponse {
	resp := JobResponse{
		ID:         j.ID,
		Type:       j.Type,
		Status:     j.Status,
		MediaID:    j.MediaID,
		CutID:      j.CutID,
		WorkflowID: j.WorkflowID,
		Progress:   j.Progress,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
	if j.Output != "" {
		resp.Outputs = strings.Split(j.Output, "\n")
	}
	return resp
}

func SessionToResponse(s *editor.Session) SessionResponse {
	l := s.Segments()
	load := s.Load()
	return SessionResponse{
		ID:         s.ID(),
		MediaID:    s.MediaID(),
		Segments:   l,
		Timeline:   s.Timeline(),
		Position:   s.Position(),
		Player:     s.Player().Status().String(),
		Preview:    s.PreviewMode(),
		Drag:       s.DragState().String(),
		Workflows:  load.Workflows,
		Tracks:     load.Tracks,
		Zoom:       timeline.ZoomOptions(l.Duration),
		LastActive: s.LastActive().Format(time.RFC3339),
	}
}
