package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/player"
	"github.com/heimdex/heimdex-editor/internal/segments"
)

// OpRequest is one editing action sent to a server-hosted session. Only the
// fields the op needs are read.
type OpRequest struct {
	Op     string  `json:"op"`
	Index  int     `json:"index,omitempty"`
	At     *int64  `json:"at,omitempty"`
	Text   string  `json:"text,omitempty"`
	Edge   string  `json:"edge,omitempty"`
	Level  float64 `json:"level,omitempty"`
	Option string  `json:"option,omitempty"`
}

func (o OpRequest) at() (int64, error) {
	if o.At == nil {
		return 0, fmt.Errorf("%w: %s needs at", errBadOp, o.Op)
	}
	return *o.At, nil
}

func (o OpRequest) edge() (segments.Edge, error) {
	switch o.Edge {
	case "", "start":
		return segments.EdgeStart, nil
	case "end":
		return segments.EdgeEnd, nil
	}
	return 0, fmt.Errorf("%w: unknown edge %q", errBadOp, o.Edge)
}

var errBadOp = errors.New("invalid op")

// applyOp runs o against s.
func applyOp(s *editor.Session, o OpRequest) error {
	var err error
	switch o.Op {
	case "split":
		if o.At == nil {
			_, err = s.SplitAtPlayhead()
		} else {
			_, err = s.Apply(segments.Split{At: *o.At})
		}
	case "toggle":
		_, err = s.ToggleAt(o.Index)
	case "merge":
		_, err = s.MergeAt(o.Index)
	case "set_start", "set_end":
		err = applyTimeEdit(s, o)
	case "drag_begin":
		var edge segments.Edge
		if edge, err = o.edge(); err == nil {
			err = s.BeginBoundaryDrag(o.Index, edge)
		}
	case "scrub_begin":
		var at int64
		if at, err = o.at(); err == nil {
			err = s.BeginScrub(at)
		}
	case "window_begin":
		err = s.BeginWindowDrag()
	case "drag_move":
		var at int64
		if at, err = o.at(); err == nil {
			s.MoveDrag(at)
		}
	case "drag_end":
		_, err = s.EndDrag()
	case "drag_cancel":
		s.CancelDrag()
	case "seek":
		var at int64
		if at, err = o.at(); err == nil {
			s.Seek(at)
		}
	case "play":
		err = s.Play()
	case "pause":
		s.Pause()
	case "next_frame":
		s.NextFrame()
	case "previous_frame":
		s.PreviousFrame()
	case "skip":
		err = s.SkipToSegment(o.Index)
	case "replay":
		err = s.ReplaySegment(o.Index)
	case "preview":
		s.TogglePreviewMode()
	case "zoom":
		if o.Level < 0 || o.Level > 100 {
			return fmt.Errorf("%w: zoom level %v outside 0..100", errBadOp, o.Level)
		}
		s.SetZoomLevel(o.Level)
	case "zoom_option":
		_, err = s.SelectZoomOption(o.Option)
	default:
		return fmt.Errorf("%w: unknown op %q", errBadOp, o.Op)
	}
	return err
}

// applyTimeEdit takes either a typed HH:MM:SS.mmm text or a ms value.
func applyTimeEdit(s *editor.Session, o OpRequest) error {
	var err error
	if o.Text != "" {
		if o.Op == "set_start" {
			_, err = s.SetStartText(o.Index, o.Text)
		} else {
			_, err = s.SetEndText(o.Index, o.Text)
		}
		return err
	}
	at, err := o.at()
	if err != nil {
		return err
	}
	if o.Op == "set_start" {
		_, err = s.Apply(segments.SetStart{Index: o.Index, At: at})
	} else {
		_, err = s.Apply(segments.SetEnd{Index: o.Index, At: at})
	}
	return err
}

func sessionFromRequest(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	s, ok := cfg.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		WriteError(w, http.StatusNotFound, "session not found", CodeNotFound)
		return nil, false
	}
	return s, true
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := cfg.Sessions.List()
		resp := SessionsResponse{Sessions: make([]SessionSummary, len(sessions))}
		for i, s := range sessions {
			resp.Sessions[i] = SessionSummary{
				ID:         s.ID(),
				MediaID:    s.MediaID(),
				LastActive: s.LastActive().Format(time.RFC3339),
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func openSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenSessionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.MediaID == "" {
			WriteError(w, http.StatusBadRequest, "media_id is required", CodeBadRequest)
			return
		}

		load, err := cfg.CatalogService.LoadEditor(r.Context(), req.MediaID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		preview := cfg.PreviewMode
		if req.Preview != nil {
			preview = *req.Preview
		}

		// sessions outlive the request that opened them
		ctx := cfg.SessionContext
		if ctx == nil {
			ctx = context.Background()
		}
		s, err := cfg.Sessions.Open(ctx, editor.Config{
			MediaID: req.MediaID,
			Load:    load,
			Player:  player.NewClock(player.ClockConfig{Duration: float64(load.Duration) / 1000}),
			Preview: preview,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, SessionToResponse(s))
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFromRequest(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

func sessionOpHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFromRequest(cfg, w, r)
		if !ok {
			return
		}
		var req OpRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := applyOp(s, req); err != nil {
			writeServiceError(w, err)
			return
		}
		// fold the op into selection and playhead state before answering
		s.Tick()
		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

func saveSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFromRequest(cfg, w, r)
		if !ok {
			return
		}
		var req SaveSessionRequest
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}

		res, err := s.Save(r.Context(), cfg.CatalogService, req.Workflow)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, res)
	}
}

func closeSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Sessions.Close(chi.URLParam(r, "id")) {
			WriteError(w, http.StatusNotFound, "session not found", CodeNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
