package segments

import (
	"errors"
	"fmt"
)

// ErrRejected is matched by every error returned from Apply.
var ErrRejected = errors.New("edit rejected")

// RejectedError describes an edit that was refused. The list it was applied
// to is returned unchanged alongside it. Err, when set, is the underlying
// cause such as ErrInvalidList or ErrInvalidTime.
type RejectedError struct {
	Op     string
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

func reject(op Op, format string, args ...any) error {
	return &RejectedError{Op: op.Name(), Reason: fmt.Sprintf(format, args...)}
}

// Op is a single edit of a segment list.
type Op interface {
	Name() string
	apply(l *List) error
}

// Apply runs op against a copy of l. The result always satisfies
// List.Validate: an op that cannot be applied, or that would break the
// partition, leaves l untouched and returns a *RejectedError.
func Apply(l List, op Op) (List, error) {
	if op == nil {
		return l, &RejectedError{Op: "nil", Reason: "no operation"}
	}

	anchor := int64(0)
	if i := l.SelectedIndex(); i >= 0 {
		anchor = l.Segments[i].Start
	}

	next := l.Clone()
	if err := op.apply(&next); err != nil {
		return l, err
	}
	next.ensureSelection(anchor)
	if err := next.Validate(); err != nil {
		return l, &RejectedError{Op: op.Name(), Reason: err.Error(), Err: err}
	}
	return next, nil
}

// Edge names one end of a segment.
type Edge int

const (
	EdgeStart Edge = iota
	EdgeEnd
)

func (e Edge) String() string {
	if e == EdgeEnd {
		return "end"
	}
	return "start"
}

// Split cuts the segment containing At in two.
type Split struct {
	At int64 `json:"at"`
}

func (Split) Name() string { return "split" }

func (o Split) apply(l *List) error {
	i := l.IndexAt(o.At)
	if i < 0 {
		return reject(o, "position %d outside [0, %d]", o.At, l.Duration)
	}
	seg := l.Segments[i]
	if o.At <= seg.Start || o.At >= seg.End {
		return reject(o, "position %d is a segment boundary", o.At)
	}

	second := seg
	second.Start = o.At
	second.Replay = false

	l.Segments[i].End = o.At
	// the playhead sits at the start of the new segment
	l.Segments[i].Selected = false
	l.insert(i+1, second)
	l.sort()
	return nil
}

// ToggleDeleted flips the deleted flag of a segment.
type ToggleDeleted struct {
	Index int `json:"index"`
}

func (ToggleDeleted) Name() string { return "toggle" }

func (o ToggleDeleted) apply(l *List) error {
	if err := checkIndex(o, l, o.Index); err != nil {
		return err
	}
	if !l.IsRemovalAllowed(o.Index) {
		return reject(o, "segment %d is the last kept segment", o.Index)
	}
	l.Segments[o.Index].Deleted = !l.Segments[o.Index].Deleted
	return nil
}

// Merge removes a segment, handing its interval to the previous neighbour or,
// for the first segment, to the next one.
type Merge struct {
	Index int `json:"index"`
}

func (Merge) Name() string { return "merge" }

func (o Merge) apply(l *List) error {
	if err := checkIndex(o, l, o.Index); err != nil {
		return err
	}
	if !l.IsRemovalAllowed(o.Index) {
		return reject(o, "segment %d is the last kept segment", o.Index)
	}
	if len(l.Segments) == 1 {
		return reject(o, "segment %d has no neighbour", o.Index)
	}
	l.merge(o.Index)
	return nil
}

// SetStart moves the start of a segment to a typed position.
type SetStart struct {
	Index int   `json:"index"`
	At    int64 `json:"at"`
}

func (SetStart) Name() string { return "set_start" }

func (o SetStart) apply(l *List) error {
	if err := checkIndex(o, l, o.Index); err != nil {
		return err
	}
	if o.At < 0 || o.At > l.Duration {
		return reject(o, "position %d outside [0, %d]", o.At, l.Duration)
	}
	if seg := l.Segments[o.Index]; o.At >= seg.End {
		return reject(o, "start %d not before end %d", o.At, seg.End)
	}
	l.moveStart(o.Index, o.At)
	return nil
}

// SetEnd moves the end of a segment to a typed position.
type SetEnd struct {
	Index int   `json:"index"`
	At    int64 `json:"at"`
}

func (SetEnd) Name() string { return "set_end" }

func (o SetEnd) apply(l *List) error {
	if err := checkIndex(o, l, o.Index); err != nil {
		return err
	}
	if o.At < 0 || o.At > l.Duration {
		return reject(o, "position %d outside [0, %d]", o.At, l.Duration)
	}
	if seg := l.Segments[o.Index]; o.At <= seg.Start {
		return reject(o, "end %d not after start %d", o.At, seg.Start)
	}
	l.moveEnd(o.Index, o.At)
	return nil
}

// DragBoundary is the release of a dragged segment handle.
type DragBoundary struct {
	Index int   `json:"index"`
	Edge  Edge  `json:"edge"`
	At    int64 `json:"at"`
}

func (DragBoundary) Name() string { return "drag" }

func (o DragBoundary) apply(l *List) error {
	if err := checkIndex(o, l, o.Index); err != nil {
		return err
	}
	at := clamp(o.At, 0, l.Duration)
	seg := l.Segments[o.Index]
	i := o.Index

	switch o.Edge {
	case EdgeStart:
		switch {
		case at < seg.End:
			i = l.moveStart(i, at)
		case at == seg.End:
			i = l.moveStart(i, at-1)
		default:
			// handle pulled past the segment's own end: the segment flips over
			old := seg.End
			if i > 0 {
				l.Segments[i-1].End = old
			} else {
				l.insert(0, Segment{Start: 0, End: old, Deleted: true})
				i++
			}
			l.Segments[i].Start = old
			i = l.moveEnd(i, at)
		}
	case EdgeEnd:
		switch {
		case at > seg.Start:
			i = l.moveEnd(i, at)
		case at == seg.Start:
			i = l.moveEnd(i, at+1)
		default:
			old := seg.Start
			if i < len(l.Segments)-1 {
				l.Segments[i+1].Start = old
			} else {
				l.insert(i+1, Segment{Start: old, End: l.Duration, Deleted: true})
			}
			l.Segments[i].End = old
			i = l.moveStart(i, at)
		}
	default:
		return reject(o, "unknown edge %d", o.Edge)
	}

	if i >= 0 && i < len(l.Segments) && l.Segments[i].Len() <= MinDragLength &&
		len(l.Segments) > 1 && l.IsRemovalAllowed(i) {
		l.merge(i)
	}
	l.sort()
	return nil
}

// Select marks the segment containing At as the selected one.
type Select struct {
	At int64 `json:"at"`
}

func (Select) Name() string { return "select" }

func (o Select) apply(l *List) error {
	i := l.IndexAt(clamp(o.At, 0, l.Duration))
	if i < 0 {
		return reject(o, "empty list")
	}
	for j := range l.Segments {
		l.Segments[j].Selected = j == i
	}
	return nil
}

// Replay marks a segment as being replayed. Only one segment carries the mark.
type Replay struct {
	Index int `json:"index"`
}

func (Replay) Name() string { return "replay" }

func (o Replay) apply(l *List) error {
	if err := checkIndex(o, l, o.Index); err != nil {
		return err
	}
	for j := range l.Segments {
		l.Segments[j].Replay = j == o.Index
	}
	return nil
}

// ClearReplay removes the replay mark.
type ClearReplay struct{}

func (ClearReplay) Name() string { return "clear_replay" }

func (ClearReplay) apply(l *List) error {
	for j := range l.Segments {
		l.Segments[j].Replay = false
	}
	return nil
}

func checkIndex(op Op, l *List, i int) error {
	if i < 0 || i >= len(l.Segments) {
		return reject(op, "index %d out of range [0, %d)", i, len(l.Segments))
	}
	return nil
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// merge hands segment i to its previous neighbour, or to the next one when i
// is first. Callers check IsRemovalAllowed.
func (l *List) merge(i int) {
	seg := l.Segments[i]
	if i > 0 {
		l.Segments[i-1].End = seg.End
	} else {
		l.Segments[i+1].Start = seg.Start
	}
	l.remove(i)
}

// moveStart moves the start of segment i to at and returns the segment's new
// index. Moving the first segment off 0 opens a deleted segment in front.
func (l *List) moveStart(i int, at int64) int {
	if i == 0 {
		if at > 0 {
			l.Segments[0].Start = at
			l.insert(0, Segment{Start: 0, End: at, Deleted: true})
			return 1
		}
		return 0
	}
	return l.moveBoundary(i, at)
}

// moveEnd moves the end of segment i to at and returns the segment's new
// index. Moving the last segment off the duration opens a deleted segment
// behind it.
func (l *List) moveEnd(i int, at int64) int {
	if i == len(l.Segments)-1 {
		if at < l.Duration {
			l.Segments[i].End = at
			l.insert(i+1, Segment{Start: at, End: l.Duration, Deleted: true})
		}
		return i
	}
	return l.moveBoundary(i+1, at) - 1
}

// moveBoundary moves the boundary in front of segment k to at. A neighbour
// that the boundary reaches or crosses is absorbed when it may be removed;
// otherwise the boundary stops 1 ms inside it. Neighbours are resolved nearest
// first. It returns the index of the segment right of the boundary.
func (l *List) moveBoundary(k int, at int64) int {
	for k > 0 && at <= l.Segments[k-1].Start {
		if !l.IsRemovalAllowed(k - 1) {
			at = l.Segments[k-1].Start + 1
			break
		}
		l.remove(k - 1)
		k--
	}
	for k < len(l.Segments) && at >= l.Segments[k].End {
		if !l.IsRemovalAllowed(k) {
			at = l.Segments[k].End - 1
			break
		}
		l.remove(k)
	}

	if k > 0 {
		l.Segments[k-1].End = at
	}
	if k < len(l.Segments) {
		l.Segments[k].Start = at
	}
	return k
}
