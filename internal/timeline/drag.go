package timeline

import (
	"errors"

	"github.com/heimdex/heimdex-editor/internal/segments"
)

var (
	ErrDragActive  = errors.New("drag already in progress")
	ErrNotDragging = errors.New("no drag in progress")
)

// DragState is the pointer state of the timeline.
type DragState int

const (
	Idle DragState = iota
	DraggingBoundary
	DraggingPlayhead
	DraggingWindow
)

func (s DragState) String() string {
	switch s {
	case DraggingBoundary:
		return "dragging_boundary"
	case DraggingPlayhead:
		return "dragging_playhead"
	case DraggingWindow:
		return "dragging_window"
	default:
		return "idle"
	}
}

// Release is what a finished drag asks the editor to do. Exactly one of Op,
// Seek or Window is meaningful, chosen by State.
type Release struct {
	State  DragState
	Op     segments.Op
	Seek   int64
	Window int64
}

// Drag tracks one pointer drag: Idle, then one of the dragging states, then
// Idle again on End or Cancel. Positions are clamped to [0, duration].
type Drag struct {
	duration  int64
	state     DragState
	index     int
	edge      segments.Edge
	candidate int64
}

func NewDrag(duration int64) *Drag {
	return &Drag{duration: duration}
}

func (d *Drag) SetDuration(duration int64) {
	d.duration = duration
}

func (d *Drag) State() DragState {
	return d.state
}

// Boundary returns the segment index and edge being dragged.
func (d *Drag) Boundary() (int, segments.Edge, bool) {
	return d.index, d.edge, d.state == DraggingBoundary
}

// Candidate is the current pointer position.
func (d *Drag) Candidate() int64 {
	return d.candidate
}

func (d *Drag) BeginBoundary(index int, edge segments.Edge, at int64) error {
	if err := d.begin(DraggingBoundary, at); err != nil {
		return err
	}
	d.index = index
	d.edge = edge
	return nil
}

func (d *Drag) BeginPlayhead(at int64) error {
	return d.begin(DraggingPlayhead, at)
}

func (d *Drag) BeginWindow(from int64) error {
	return d.begin(DraggingWindow, from)
}

func (d *Drag) begin(state DragState, at int64) error {
	if d.state != Idle {
		return ErrDragActive
	}
	d.state = state
	d.candidate = d.clamp(at)
	return nil
}

// Move updates the candidate position. It is ignored while idle.
func (d *Drag) Move(at int64) {
	if d.state == Idle {
		return
	}
	d.candidate = d.clamp(at)
}

// End finishes the drag and returns the action to apply.
func (d *Drag) End() (Release, error) {
	if d.state == Idle {
		return Release{}, ErrNotDragging
	}

	r := Release{State: d.state}
	switch d.state {
	case DraggingBoundary:
		r.Op = segments.DragBoundary{Index: d.index, Edge: d.edge, At: d.candidate}
	case DraggingPlayhead:
		r.Seek = d.candidate
	case DraggingWindow:
		r.Window = d.candidate
	}
	d.reset()
	return r, nil
}

// Cancel abandons the drag without an action.
func (d *Drag) Cancel() {
	d.reset()
}

func (d *Drag) reset() {
	d.state = Idle
	d.index = 0
	d.edge = segments.EdgeStart
	d.candidate = 0
}

func (d *Drag) clamp(at int64) int64 {
	if at < 0 {
		return 0
	}
	if at > d.duration {
		return d.duration
	}
	return at
}
