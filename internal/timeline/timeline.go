// Package timeline computes the zoomable ruler the segment list is drawn
// against: the visible window, zoom presets, segment widths and the rules for
// keeping the playhead in view.
package timeline

import (
	"fmt"

	"github.com/heimdex/heimdex-editor/internal/segments"
)

// MinZoomWindow is the visible span in ms when fully zoomed in.
const MinZoomWindow = 10000

// followTolerance absorbs rounding between the playhead and the window edge
// after the window has been dragged.
const followTolerance = 0.5

// ZoomOption is one entry of the zoom preset list. Time 0 shows everything.
type ZoomOption struct {
	Name string `json:"name"`
	Time int64  `json:"time"`
}

var zoomPresets = []ZoomOption{
	{Name: "All", Time: 0},
	{Name: "10 m", Time: 600000},
	{Name: "5 m", Time: 300000},
	{Name: "1 m", Time: 60000},
	{Name: "30 s", Time: 30000},
}

// ZoomOptions returns the presets that fit a recording of duration ms.
func ZoomOptions(duration int64) []ZoomOption {
	out := make([]ZoomOption, 0, len(zoomPresets))
	for _, opt := range zoomPresets {
		if opt.Time > duration-1000 {
			continue
		}
		out = append(out, opt)
	}
	return out
}

// ZoomValue returns the visible span for a zoom level between 0 (whole
// recording) and 100 (MinZoomWindow).
func ZoomValue(duration, level float64) float64 {
	return (MinZoomWindow-duration)/100*level + duration
}

// FieldOffset returns the left edge of a window of zoomValue ms whose scroll
// position is position.
func FieldOffset(duration, zoomValue, position float64) float64 {
	if duration <= 0 {
		return 0
	}
	return (duration - zoomValue) * position / duration
}

// SegmentWidth is the width of seg in percent of the full track.
func SegmentWidth(seg segments.Segment, duration int64) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(seg.End-seg.Start) / float64(duration) * 100
}

// DisplayZoomLevel renders a span as "≈ N s", "≈ N m" or "≈ N h", rounding
// minutes and hours up from the half.
func DisplayZoomLevel(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60

	switch {
	case h > 0:
		if m >= 30 {
			h++
		}
		return fmt.Sprintf("≈ %d h", h)
	case m > 0:
		if s >= 30 {
			m++
		}
		return fmt.Sprintf("≈ %d m", m)
	default:
		return fmt.Sprintf("≈ %d s", s)
	}
}

// Timeline is the zoom state of one editing session. All values are ms.
type Timeline struct {
	Duration  float64 `json:"duration"`
	ZoomLevel float64 `json:"zoom_level"`
	ZoomValue float64 `json:"zoom_value"`
	From      float64 `json:"from"`
	To        float64 `json:"to"`

	cursorTouched bool
}

// New returns a fully zoomed out timeline.
func New(duration int64) *Timeline {
	t := &Timeline{}
	t.SetDuration(duration)
	return t
}

// SetDuration resets the window for a new duration, keeping the zoom level.
func (t *Timeline) SetDuration(duration int64) {
	t.Duration = float64(duration)
	if t.TooShortToZoom() {
		t.ZoomLevel = 0
	}
	t.ZoomValue = ZoomValue(t.Duration, t.ZoomLevel)
	t.From = FieldOffset(t.Duration, t.ZoomValue, 0)
	t.To = t.From + t.ZoomValue
}

// TooShortToZoom reports whether the recording fits the smallest window.
func (t *Timeline) TooShortToZoom() bool {
	return t.Duration <= MinZoomWindow
}

// SetZoomLevel changes the zoom level and re-centres the window.
func (t *Timeline) SetZoomLevel(level float64) {
	if t.TooShortToZoom() {
		level = 0
	}
	t.ZoomLevel = min(max(level, 0), 100)
	t.ZoomValue = ZoomValue(t.Duration, t.ZoomLevel)
	t.rezoom()
}

// SelectZoomOption applies a preset.
func (t *Timeline) SelectZoomOption(opt ZoomOption) {
	level := 0.0
	if opt.Time != 0 && !t.TooShortToZoom() {
		level = (float64(opt.Time) - t.Duration) / (100 - t.Duration/100)
	}
	t.SetZoomLevel(level)
}

// rezoom centres a window of ZoomValue on the current one. Whatever would
// spill past either end of the recording is added to the other side.
func (t *Timeline) rezoom() {
	half := t.ZoomValue / 2

	var centre float64
	switch {
	case t.From == 0:
		centre = 0
	case t.To == t.Duration:
		centre = t.Duration
	default:
		centre = (t.From + t.To) / 2
	}

	overRight := centre + half - t.Duration
	overLeft := half - centre
	switch {
	case overRight > 0:
		t.To = t.Duration
		t.From = max(0, centre-half-overRight)
	case overLeft > 0:
		t.From = 0
		t.To = min(t.Duration, centre+half+overLeft)
	default:
		t.From = centre - half
		t.To = centre + half
	}
}

// MoveWindow drags the visible window so that it starts at from.
func (t *Timeline) MoveWindow(from float64) {
	from = min(max(from, 0), t.Duration-t.ZoomValue)
	t.From = max(from, 0)
	t.To = t.From + t.ZoomValue
}

// InWindow reports whether pos is visible.
func (t *Timeline) InWindow(pos float64) bool {
	return pos >= t.From && pos <= t.To
}

func (t *Timeline) overflowsRight(pos float64) bool {
	return pos > t.To && pos < t.Duration
}

func (t *Timeline) overflowsLeft(pos float64) bool {
	return pos-t.From < -followTolerance
}

// PlayStarted records whether playback started inside the window.
func (t *Timeline) PlayStarted(pos float64) {
	t.cursorTouched = t.InWindow(pos)
}

// PlayStopped clears the playback follow state.
func (t *Timeline) PlayStopped() {
	t.cursorTouched = false
}

// Following reports whether playback has put the playhead inside the window,
// so Follow pages right as it runs on.
func (t Timeline) Following() bool {
	return t.cursorTouched
}

// Follow pages the window after the playhead moved from previous to pos.
// While playing the window only pages right, and only once the playhead has
// been inside it. Otherwise a seek from inside the window pages either way.
func (t *Timeline) Follow(pos, previous float64, playing bool) {
	if playing {
		if t.InWindow(pos) {
			t.cursorTouched = true
		}
		if t.cursorTouched && t.overflowsRight(pos) {
			t.pageRight()
		}
		return
	}

	wasVisible := t.InWindow(previous)
	switch {
	case t.overflowsRight(pos) && wasVisible:
		t.pageRight()
	case t.overflowsLeft(pos) && wasVisible:
		t.From = max(0, t.From-t.ZoomValue)
		t.To = t.From + t.ZoomValue
	}
}

func (t *Timeline) pageRight() {
	if t.Duration-t.To < t.ZoomValue {
		t.From = t.Duration - t.ZoomValue
	} else {
		t.From = t.To
	}
	t.To = t.From + t.ZoomValue
}

// TrackPosition returns pos in percent of the visible window.
func (t *Timeline) TrackPosition(pos float64) float64 {
	if t.ZoomValue <= 0 {
		return 0
	}
	return (pos - t.From) / t.ZoomValue * 100
}

// WrapperClasses returns the border classes for the segments under the left
// and right window edges.
func (t *Timeline) WrapperClasses(l segments.List) (left, right string) {
	for _, seg := range l.Segments {
		s, e := float64(seg.Start), float64(seg.End)
		if s <= t.From && e >= t.From {
			left = "left-" + segmentClass(seg)
		}
		if s <= t.To && e >= t.To {
			right = "right-" + segmentClass(seg)
		}
	}
	return left, right
}

func segmentClass(seg segments.Segment) string {
	switch {
	case seg.Deleted && seg.Selected:
		return "deleted-selected"
	case seg.Deleted:
		return "deleted"
	case seg.Selected:
		return "selected"
	default:
		return "normal"
	}
}
