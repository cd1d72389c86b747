package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/heimdex/heimdex-editor/internal/catalog"
	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/playback"
	"github.com/heimdex/heimdex-editor/internal/segments"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// requestTimeout bounds the JSON endpoints. Playback and the event stream
// are long lived and sit outside it.
const requestTimeout = 30 * time.Second

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(middleware.RealIP)
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))
		if cfg.RateLimit > 0 {
			r.Use(RateLimitMiddleware(cfg.RateLimit, cfg.Logger))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/media", listMediaHandler(cfg))
			r.Post("/media", registerMediaHandler(cfg))
			r.Get("/media/{id}", getMediaHandler(cfg))
			r.Get("/media/{id}/editor.json", loadEditorHandler(cfg))
			r.Post("/media/{id}/editor.json", saveEditorHandler(cfg))
			r.Get("/media/{id}/cut.edl", cutEDLHandler(cfg))
			r.Get("/workflows", listWorkflowsHandler(cfg))
			r.Get("/jobs", listJobsHandler(cfg))
			r.Get("/jobs/{id}", getJobHandler(cfg))

			r.Get("/sessions", listSessionsHandler(cfg))
			r.Post("/sessions", openSessionHandler(cfg))
			r.Get("/sessions/{id}", getSessionHandler(cfg))
			r.Post("/sessions/{id}/ops", sessionOpHandler(cfg))
			r.Post("/sessions/{id}/save", saveSessionHandler(cfg))
			r.Delete("/sessions/{id}", closeSessionHandler(cfg))
		})

		r.Get("/sessions/{id}/events", sessionEventsHandler(cfg))
		r.With(LoopbackGuard()).Get("/media/{id}/tracks/{trackID}/play", playTrackHandler(cfg))
		r.With(LoopbackGuard()).Head("/media/{id}/tracks/{trackID}/play", playTrackHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			Database: "ok",
		}

		if cfg.Pinger != nil {
			if err := cfg.Pinger.Ping(ctx); err != nil {
				cfg.Logger.Error("health database ping failed", "error", err)
				resp.Status = "degraded"
				resp.Database = "unavailable"
			}
		}

		if cfg.Probe != nil {
			caps, err := cfg.Probe.Get(ctx)
			if err == nil && caps != nil {
				resp.Render = &RenderResponse{
					Available: caps.Available,
					Version:   caps.Version,
				}
				if !caps.ProbedAt.IsZero() {
					resp.Render.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
				}
			}
		}

		if cfg.Sessions != nil {
			resp.Sessions = cfg.Sessions.Len()
		}
		if cfg.Runner != nil {
			resp.Jobs = cfg.Runner.GetActiveJobCount(ctx)
			resp.Paused = cfg.Runner.IsPaused()
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		WriteJSON(w, status, resp)
	}
}

// writeServiceError maps errors from the catalog and editor packages to an
// HTTP status and error code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), CodeNotFound)
	case errors.Is(err, catalog.ErrInvalidMedia),
		errors.Is(err, editor.ErrInvalidSave),
		errors.Is(err, editor.ErrUnknownOption),
		errors.Is(err, errBadOp),
		errors.Is(err, segments.ErrInvalidList):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
	case errors.Is(err, segments.ErrRejected):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), CodeRejected)
	case errors.Is(err, editor.ErrSaveInFlight),
		errors.Is(err, timeline.ErrDragActive),
		errors.Is(err, timeline.ErrNotDragging):
		WriteError(w, http.StatusConflict, err.Error(), CodeConflict)
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), CodeInternal)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
		return false
	}
	return true
}

func listMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		media, err := cfg.CatalogService.ListMedia(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list media", CodeInternal)
			return
		}

		resp := MediaListResponse{Media: make([]MediaResponse, len(media))}
		for i, m := range media {
			resp.Media[i] = MediaToResponse(m)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func registerMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req catalog.NewMedia
		if !decodeJSON(w, r, &req) {
			return
		}

		m, err := cfg.CatalogService.RegisterMedia(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, MediaToResponse(m))
	}
}

func getMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := cfg.CatalogService.GetMedia(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, MediaToResponse(m))
	}
}

func loadEditorHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := cfg.CatalogService.LoadEditor(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func saveEditorHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editor.SaveRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := cfg.CatalogService.Save(r.Context(), chi.URLParam(r, "id"), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, res)
	}
}

func listWorkflowsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workflows, err := cfg.CatalogService.ListWorkflows(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list workflows", CodeInternal)
			return
		}

		resp := WorkflowsResponse{Workflows: make([]WorkflowResponse, len(workflows))}
		for i, wf := range workflows {
			resp.Workflows[i] = WorkflowToResponse(wf)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.CatalogService.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", CodeInternal)
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.CatalogService.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func playTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaID := chi.URLParam(r, "id")
		trackID := chi.URLParam(r, "trackID")

		m, err := cfg.CatalogService.GetMedia(r.Context(), mediaID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		var path string
		for _, t := range m.Tracks {
			if t.ID == trackID {
				path = t.Path
				break
			}
		}
		if path == "" {
			WriteError(w, http.StatusNotFound, "track not found", CodeNotFound)
			return
		}

		if err := cfg.PlaybackServer.ServeTrack(w, r, path); err != nil {
			if errors.Is(err, playback.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "track file is missing", CodeNotFound)
				return
			}
			cfg.Logger.Error("playback error", "error", err, "media_id", mediaID, "track_id", trackID)
			WriteError(w, http.StatusInternalServerError, "playback failed", CodeInternal)
		}
	}
}
