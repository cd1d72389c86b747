package segments

import (
	"fmt"
	"sort"
)

// FromRanges builds a list from the kept ranges stored for a recording.
// No ranges yields one kept segment over the whole duration. Ranges are
// clamped to the duration and overlaps trimmed; every gap before, between
// and after them becomes a deleted segment. The first segment is selected.
func FromRanges(duration int64, ranges []Range) (List, error) {
	if duration <= 0 {
		return List{}, fmt.Errorf("%w: duration %d", ErrInvalidList, duration)
	}

	sorted := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		r.Start = clamp(r.Start, 0, duration)
		r.End = clamp(r.End, 0, duration)
		if r.End > r.Start {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	l := List{Duration: duration}
	var cursor int64
	for _, r := range sorted {
		if r.End <= cursor {
			continue
		}
		if r.Start > cursor {
			l.Segments = append(l.Segments, Segment{Start: cursor, End: r.Start, Deleted: true})
		} else {
			r.Start = cursor
		}
		l.Segments = append(l.Segments, Segment{Start: r.Start, End: r.End})
		cursor = r.End
	}
	if cursor < duration {
		l.Segments = append(l.Segments, Segment{Start: cursor, End: duration, Deleted: true})
	}
	if l.KeptCount() == 0 {
		l.Segments = []Segment{{Start: 0, End: duration}}
	}

	l.Segments[0].Selected = true
	return l, nil
}

// FromDeleted rebuilds a list from the deleted ranges of a save payload. It is
// the inverse of List.Deleted.
func FromDeleted(duration int64, deleted []Range) (List, error) {
	return FromRanges(duration, Complement(duration, deleted))
}

// Complement returns the parts of [0, duration] not covered by ranges.
func Complement(duration int64, ranges []Range) []Range {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	var out []Range
	var cursor int64
	for _, r := range sorted {
		start := clamp(r.Start, 0, duration)
		end := clamp(r.End, 0, duration)
		if start > cursor {
			out = append(out, Range{Start: cursor, End: start})
		}
		if end > cursor {
			cursor = end
		}
	}
	if cursor < duration {
		out = append(out, Range{Start: cursor, End: duration})
	}
	return out
}

// Intersect returns the parts covered by both a and b. Both inputs must be
// sorted and free of overlaps.
func Intersect(a, b []Range) []Range {
	var out []Range
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := max(a[i].Start, b[j].Start)
		end := min(a[i].End, b[j].End)
		if end > start {
			out = append(out, Range{Start: start, End: end})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}
