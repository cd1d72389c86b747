package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/segments"
)

// ErrInvalidMedia is returned when a media registration is malformed.
var ErrInvalidMedia = errors.New("invalid media")

// Dispatcher hands a freshly created workflow job to whatever executes it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *Job) error
}

type CatalogService interface {
	RegisterMedia(ctx context.Context, in NewMedia) (*Media, error)
	GetMedia(ctx context.Context, id string) (*Media, error)
	ListMedia(ctx context.Context) ([]*Media, error)
	ListWorkflows(ctx context.Context) ([]*Workflow, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	LoadEditor(ctx context.Context, mediaID string) (editor.LoadResponse, error)
	Save(ctx context.Context, mediaID string, req editor.SaveRequest) (editor.SaveResult, error)
	CutEDL(ctx context.Context, mediaID string) (string, error)
}

// NewMedia registers a recording and its track files.
type NewMedia struct {
	Title      string     `json:"title"`
	DurationMs int64      `json:"duration_ms"`
	Tracks     []NewTrack `json:"tracks"`
}

type NewTrack struct {
	Flavor   string           `json:"flavor"`
	Path     string           `json:"path"`
	Segments []segments.Range `json:"segments,omitempty"`
}

type Service struct {
	repo       Repository
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo Repository, dispatcher Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, dispatcher: dispatcher, logger: logger, now: time.Now}
}

// SetDispatcher replaces the workflow dispatcher.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

func (s *Service) RegisterMedia(ctx context.Context, in NewMedia) (*Media, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidMedia)
	}
	if in.DurationMs <= 0 {
		return nil, fmt.Errorf("%w: duration_ms must be positive", ErrInvalidMedia)
	}
	if len(in.Tracks) == 0 {
		return nil, fmt.Errorf("%w: at least one track is required", ErrInvalidMedia)
	}

	m := &Media{
		ID:         NewID(),
		Title:      title,
		DurationMs: in.DurationMs,
		CreatedAt:  s.now(),
	}
	for i, t := range in.Tracks {
		if t.Flavor == "" {
			return nil, fmt.Errorf("%w: track %d has no flavor", ErrInvalidMedia, i)
		}
		absPath, err := filepath.Abs(t.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: track %d: %v", ErrInvalidMedia, i, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("%w: track %d: path does not exist", ErrInvalidMedia, i)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: track %d: path is a directory", ErrInvalidMedia, i)
		}
		if err := checkRanges(t.Segments, in.DurationMs); err != nil {
			return nil, fmt.Errorf("%w: track %d: %v", ErrInvalidMedia, i, err)
		}
		m.Tracks = append(m.Tracks, Track{
			ID:       NewID(),
			MediaID:  m.ID,
			Flavor:   t.Flavor,
			Path:     absPath,
			Segments: t.Segments,
		})
	}

	if err := s.repo.CreateMedia(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("media registered", "media_id", m.ID, "tracks", len(m.Tracks), "duration_ms", m.DurationMs)
	return m, nil
}

// checkRanges requires sorted, non-overlapping ranges inside [0, duration].
func checkRanges(ranges []segments.Range, duration int64) error {
	var last int64
	for i, r := range ranges {
		if r.Start < last || r.Start >= r.End || r.End > duration {
			return fmt.Errorf("segment %d [%d, %d] out of order or range", i, r.Start, r.End)
		}
		last = r.End
	}
	return nil
}

func (s *Service) GetMedia(ctx context.Context, id string) (*Media, error) {
	return s.repo.GetMedia(ctx, id)
}

func (s *Service) ListMedia(ctx context.Context) ([]*Media, error) {
	return s.repo.ListMedia(ctx)
}

func (s *Service) ListWorkflows(ctx context.Context) ([]*Workflow, error) {
	return s.repo.ListWorkflows(ctx)
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

// TrackURL is where the agent serves a track for playback.
func TrackURL(mediaID, trackID string) string {
	return fmt.Sprintf("/api/media/%s/tracks/%s/play", mediaID, trackID)
}

// LoadEditor builds the document an editor opens for a media item.
func (s *Service) LoadEditor(ctx context.Context, mediaID string) (editor.LoadResponse, error) {
	m, err := s.repo.GetMedia(ctx, mediaID)
	if err != nil {
		return editor.LoadResponse{}, err
	}
	workflows, err := s.repo.ListWorkflows(ctx)
	if err != nil {
		return editor.LoadResponse{}, err
	}
	ranges, err := s.storedRanges(ctx, m)
	if err != nil {
		return editor.LoadResponse{}, err
	}

	resp := editor.LoadResponse{
		Duration:  m.DurationMs,
		Segments:  ranges,
		Workflows: make([]editor.Workflow, 0, len(workflows)),
		Tracks:    make([]editor.Track, 0, len(m.Tracks)),
	}
	for _, w := range workflows {
		resp.Workflows = append(resp.Workflows, editor.Workflow{ID: w.ID, Name: w.Name})
	}
	for _, t := range m.Tracks {
		url := TrackURL(m.ID, t.ID)
		resp.Tracks = append(resp.Tracks, editor.Track{ID: t.ID, Flavor: t.Flavor, URL: url})
		if t.IsPreview() {
			resp.Previews = append(resp.Previews, editor.Preview{URL: url})
		}
	}
	if len(resp.Previews) == 0 && len(resp.Tracks) > 0 {
		resp.Previews = []editor.Preview{{URL: resp.Tracks[0].URL}}
	}
	return resp, nil
}

// storedRanges returns the kept ranges of the latest cut, or failing that the
// intersection of the tracks' own segments. A single range covering the whole
// duration carries no information and is reported as none.
func (s *Service) storedRanges(ctx context.Context, m *Media) ([]segments.Range, error) {
	var ranges []segments.Range

	cut, err := s.repo.LatestCut(ctx, m.ID)
	switch {
	case err == nil:
		ranges = cut.Kept
	case errors.Is(err, ErrNotFound):
		first := true
		for _, t := range m.Tracks {
			if len(t.Segments) == 0 {
				continue
			}
			if first {
				ranges = t.Segments
				first = false
				continue
			}
			ranges = segments.Intersect(ranges, t.Segments)
		}
	default:
		return nil, err
	}

	if len(ranges) == 1 && ranges[0].Start == 0 && ranges[0].End == m.DurationMs {
		return nil, nil
	}
	return ranges, nil
}

// Save stores an editor save as a new cut and starts its workflow, if any.
// A dispatch failure marks the job failed but the cut stays saved.
func (s *Service) Save(ctx context.Context, mediaID string, req editor.SaveRequest) (editor.SaveResult, error) {
	m, err := s.repo.GetMedia(ctx, mediaID)
	if err != nil {
		return editor.SaveResult{}, err
	}
	if err := req.Validate(m.DurationMs); err != nil {
		return editor.SaveResult{}, err
	}

	tracks := req.Concat.Tracks
	if len(tracks) == 0 {
		for _, t := range m.Tracks {
			tracks = append(tracks, t.ID)
		}
	}
	known := make(map[string]bool, len(m.Tracks))
	for _, t := range m.Tracks {
		known[t.ID] = true
	}
	for _, id := range tracks {
		if !known[id] {
			return editor.SaveResult{}, fmt.Errorf("%w: unknown track %q", editor.ErrInvalidSave, id)
		}
	}

	var wf *Workflow
	if req.Workflow != "" {
		wf, err = s.repo.GetWorkflow(ctx, req.Workflow)
		if errors.Is(err, ErrNotFound) {
			return editor.SaveResult{}, fmt.Errorf("%w: unknown workflow %q", editor.ErrInvalidSave, req.Workflow)
		}
		if err != nil {
			return editor.SaveResult{}, err
		}
	}

	now := s.now()
	cut := &Cut{
		ID:         NewID(),
		MediaID:    m.ID,
		WorkflowID: req.Workflow,
		Tracks:     tracks,
		Kept:       req.KeptRanges(m.DurationMs),
		CreatedAt:  now,
	}
	if err := s.repo.CreateCut(ctx, cut); err != nil {
		return editor.SaveResult{}, fmt.Errorf("store cut: %w", err)
	}
	s.logger.Info("cut saved", "media_id", m.ID, "cut_id", cut.ID, "kept", len(cut.Kept))

	result := editor.SaveResult{CutID: cut.ID}
	if wf == nil {
		return result, nil
	}

	job := &Job{
		ID:         NewID(),
		Type:       wf.Kind,
		Status:     JobStatusPending,
		MediaID:    m.ID,
		CutID:      cut.ID,
		WorkflowID: wf.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return editor.SaveResult{}, fmt.Errorf("create job: %w", err)
	}
	result.JobID = job.ID

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			s.logger.Error("workflow dispatch failed", "job_id", job.ID, "workflow", wf.ID, "error", err)
			s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("dispatch failed: %v", err))
		}
	}
	return result, nil
}

// CutEDL renders the latest cut of a media item as an EDL over its first track.
func (s *Service) CutEDL(ctx context.Context, mediaID string) (string, error) {
	m, err := s.repo.GetMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}
	cut, err := s.repo.LatestCut(ctx, m.ID)
	if err != nil {
		return "", err
	}
	var path string
	if len(m.Tracks) > 0 {
		path = m.Tracks[0].Path
	}
	return export.GenerateEDL(export.ClipsFor(m.Title, path, cut.Kept), m.Title, export.DefaultFrameRate), nil
}
