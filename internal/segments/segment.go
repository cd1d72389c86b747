// Package segments holds the segment list of a recording being trimmed and the
// reducer that edits it. A List always partitions [0, Duration] into sorted,
// contiguous segments with at least one segment kept.
package segments

import (
	"errors"
	"fmt"
	"sort"
)

// MinDragLength is the length in milliseconds at or below which a segment is
// merged away after a drag.
const MinDragLength = 100

// ErrInvalidList is wrapped by every invariant violation reported by Validate.
var ErrInvalidList = errors.New("invalid segment list")

// Segment is one interval of the recording. Selected and Replay are view state
// and are stripped from anything sent to the server.
type Segment struct {
	Start    int64 `json:"start"`
	End      int64 `json:"end"`
	Deleted  bool  `json:"deleted"`
	Selected bool  `json:"selected,omitempty"`
	Replay   bool  `json:"replay,omitempty"`
}

// Len returns the length of the segment in milliseconds.
func (s Segment) Len() int64 {
	return s.End - s.Start
}

// Contains reports whether ms falls inside [Start, End).
func (s Segment) Contains(ms int64) bool {
	return ms >= s.Start && ms < s.End
}

// Range is a bare interval used by load, save and export.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the length of the range in milliseconds.
func (r Range) Len() int64 {
	return r.End - r.Start
}

// List is the segment list of one recording.
type List struct {
	Duration int64     `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Clone returns a deep copy of the list.
func (l List) Clone() List {
	out := List{Duration: l.Duration, Segments: make([]Segment, len(l.Segments))}
	copy(out.Segments, l.Segments)
	return out
}

// Len returns the number of segments.
func (l List) Len() int {
	return len(l.Segments)
}

// Validate checks the partition invariants.
func (l List) Validate() error {
	if l.Duration <= 0 {
		return fmt.Errorf("%w: duration %d", ErrInvalidList, l.Duration)
	}
	if len(l.Segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidList)
	}
	if l.Segments[0].Start != 0 {
		return fmt.Errorf("%w: first segment starts at %d", ErrInvalidList, l.Segments[0].Start)
	}
	if last := l.Segments[len(l.Segments)-1]; last.End != l.Duration {
		return fmt.Errorf("%w: last segment ends at %d, duration is %d", ErrInvalidList, last.End, l.Duration)
	}

	selected := 0
	for i, seg := range l.Segments {
		if seg.End <= seg.Start {
			return fmt.Errorf("%w: segment %d is empty [%d, %d)", ErrInvalidList, i, seg.Start, seg.End)
		}
		if i > 0 && l.Segments[i-1].End != seg.Start {
			return fmt.Errorf("%w: gap or overlap between segment %d and %d", ErrInvalidList, i-1, i)
		}
		if seg.Selected {
			selected++
		}
	}
	if selected > 1 {
		return fmt.Errorf("%w: %d segments selected", ErrInvalidList, selected)
	}
	if l.KeptCount() == 0 {
		return fmt.Errorf("%w: every segment is deleted", ErrInvalidList)
	}
	return nil
}

// KeptCount returns the number of segments that are not deleted.
func (l List) KeptCount() int {
	n := 0
	for _, seg := range l.Segments {
		if !seg.Deleted {
			n++
		}
	}
	return n
}

// IsRemovalAllowed reports whether segment i may be deleted or merged away
// without leaving the list with no kept segment.
func (l List) IsRemovalAllowed(i int) bool {
	if i < 0 || i >= len(l.Segments) {
		return false
	}
	return l.Segments[i].Deleted || l.KeptCount() > 1
}

// IndexAt returns the index of the segment containing ms. A position at the
// very end of the recording belongs to the last segment. It returns -1 when ms
// lies outside the timeline.
func (l List) IndexAt(ms int64) int {
	if len(l.Segments) == 0 || ms < 0 || ms > l.Duration {
		return -1
	}
	i := sort.Search(len(l.Segments), func(i int) bool {
		return l.Segments[i].End > ms
	})
	if i == len(l.Segments) {
		return len(l.Segments) - 1
	}
	return i
}

// SelectedIndex returns the index of the selected segment or -1.
func (l List) SelectedIndex() int {
	for i, seg := range l.Segments {
		if seg.Selected {
			return i
		}
	}
	return -1
}

// ReplayIndex returns the index of the segment marked for replay or -1.
func (l List) ReplayIndex() int {
	for i, seg := range l.Segments {
		if seg.Replay {
			return i
		}
	}
	return -1
}

// Kept returns the kept parts of the recording, joining adjacent kept segments.
func (l List) Kept() []Range {
	var out []Range
	for _, seg := range l.Segments {
		if seg.Deleted {
			continue
		}
		if n := len(out); n > 0 && out[n-1].End == seg.Start {
			out[n-1].End = seg.End
			continue
		}
		out = append(out, Range{Start: seg.Start, End: seg.End})
	}
	return out
}

// Deleted returns the deleted segments with their view state cleared.
func (l List) Deleted() []Segment {
	var out []Segment
	for _, seg := range l.Segments {
		if !seg.Deleted {
			continue
		}
		out = append(out, Segment{Start: seg.Start, End: seg.End, Deleted: true})
	}
	return out
}

func (l *List) sort() {
	sort.SliceStable(l.Segments, func(i, j int) bool {
		return l.Segments[i].Start < l.Segments[j].Start
	})
}

func (l *List) insert(i int, seg Segment) {
	l.Segments = append(l.Segments, Segment{})
	copy(l.Segments[i+1:], l.Segments[i:])
	l.Segments[i] = seg
}

func (l *List) remove(i int) {
	l.Segments = append(l.Segments[:i], l.Segments[i+1:]...)
}

// ensureSelection keeps exactly one segment selected, preferring the one that
// contains anchor.
func (l *List) ensureSelection(anchor int64) {
	selected := -1
	for i := range l.Segments {
		if !l.Segments[i].Selected {
			continue
		}
		if selected >= 0 {
			l.Segments[i].Selected = false
			continue
		}
		selected = i
	}
	if selected >= 0 {
		return
	}
	if i := l.IndexAt(anchor); i >= 0 {
		l.Segments[i].Selected = true
	}
}
