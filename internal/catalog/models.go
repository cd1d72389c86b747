package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-editor/internal/segments"
)

var ErrNotFound = errors.New("not found")

type Media struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	DurationMs int64     `json:"duration_ms"`
	Tracks     []Track   `json:"tracks"`
	CreatedAt  time.Time `json:"created_at"`
}

// Track is one source file of a media item. Segments, when present, are the
// parts of the recording already kept by an earlier cut of that source.
type Track struct {
	ID       string           `json:"id"`
	MediaID  string           `json:"media_id"`
	Flavor   string           `json:"flavor"`
	Path     string           `json:"-"`
	Segments []segments.Range `json:"segments,omitempty"`
}

// IsPreview reports whether the track is a low resolution preview rendition.
func (t Track) IsPreview() bool {
	return strings.HasSuffix(t.Flavor, "/preview")
}

const (
	WorkflowKindEDL    = "edl"
	WorkflowKindRender = "render"
)

type Workflow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Cut is a saved edit. Kept holds the ranges of the media that survive it.
type Cut struct {
	ID         string           `json:"id"`
	MediaID    string           `json:"media_id"`
	WorkflowID string           `json:"workflow_id,omitempty"`
	Tracks     []string         `json:"tracks"`
	Kept       []segments.Range `json:"kept"`
	CreatedAt  time.Time        `json:"created_at"`
}

const (
	JobStatusPending   = "pending"
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	MediaID    string    `json:"media_id,omitempty"`
	CutID      string    `json:"cut_id,omitempty"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	Progress   int       `json:"progress"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewID() string {
	return uuid.NewString()
}
