package editor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/heimdex/heimdex-editor/internal/segments"
)

// ErrInvalidSave is wrapped by SaveRequest.Validate failures.
var ErrInvalidSave = errors.New("invalid save request")

// Workflow is a post-processing workflow a cut can be handed to.
type Workflow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track is one media track of the recording.
type Track struct {
	ID     string `json:"id"`
	Flavor string `json:"flavor"`
	URL    string `json:"url"`
}

// Preview is a preview image or low-resolution track for the editor.
type Preview struct {
	URL string `json:"url"`
}

// LoadResponse is returned by GET editor.json. Segments are the kept parts of
// the last saved cut; empty means the whole recording.
type LoadResponse struct {
	Duration  int64            `json:"duration"`
	Segments  []segments.Range `json:"segments"`
	Workflows []Workflow       `json:"workflows"`
	Tracks    []Track          `json:"tracks"`
	Previews  []Preview        `json:"previews"`
}

// List normalises the payload into an editable segment list.
func (r LoadResponse) List() (segments.List, error) {
	return segments.FromRanges(r.Duration, r.Segments)
}

// TrackIDs returns the ids of all tracks.
func (r LoadResponse) TrackIDs() []string {
	ids := make([]string, 0, len(r.Tracks))
	for _, t := range r.Tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

// SaveSegment is a segment as sent to the server. View state is never part of it.
type SaveSegment struct {
	Start   int64 `json:"start"`
	End     int64 `json:"end"`
	Deleted bool  `json:"deleted"`
}

type Concat struct {
	Segments []SaveSegment `json:"segments"`
	Tracks   []string      `json:"tracks"`
}

// SaveRequest is the body of POST editor.json.
type SaveRequest struct {
	Concat   Concat `json:"concat"`
	Workflow string `json:"workflow,omitempty"`
}

// SaveResult is the server's answer to a save.
type SaveResult struct {
	CutID string `json:"cut_id"`
	JobID string `json:"job_id,omitempty"`
}

// BuildSave turns l into a save payload carrying only its deleted segments.
func BuildSave(l segments.List, tracks []string, workflow string) SaveRequest {
	req := SaveRequest{
		Concat: Concat{
			Segments: []SaveSegment{},
			Tracks:   append([]string{}, tracks...),
		},
		Workflow: workflow,
	}
	for _, seg := range l.Deleted() {
		req.Concat.Segments = append(req.Concat.Segments, SaveSegment{
			Start:   seg.Start,
			End:     seg.End,
			Deleted: true,
		})
	}
	return req
}

// DeletedRanges returns the deleted segments of the request, sorted.
func (r SaveRequest) DeletedRanges() []segments.Range {
	out := make([]segments.Range, 0, len(r.Concat.Segments))
	for _, seg := range r.Concat.Segments {
		if !seg.Deleted {
			continue
		}
		out = append(out, segments.Range{Start: seg.Start, End: seg.End})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// KeptRanges returns the complement of the deleted segments in [0, duration].
func (r SaveRequest) KeptRanges(duration int64) []segments.Range {
	return segments.Complement(duration, r.DeletedRanges())
}

// Validate checks the request against a recording of duration ms.
func (r SaveRequest) Validate(duration int64) error {
	for i, seg := range r.Concat.Segments {
		if seg.Start < 0 || seg.End > duration || seg.End <= seg.Start {
			return fmt.Errorf("%w: segment %d [%d, %d] outside [0, %d]", ErrInvalidSave, i, seg.Start, seg.End, duration)
		}
	}
	if len(r.KeptRanges(duration)) == 0 {
		return fmt.Errorf("%w: every part of the recording is deleted", ErrInvalidSave)
	}
	return nil
}
