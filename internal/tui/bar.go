package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/heimdex/heimdex-editor/internal/segments"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

type cellKind int

const (
	cellEmpty cellKind = iota
	cellKept
	cellKeptSelected
	cellDeleted
	cellDeletedSelected
)

// barCells samples the visible window of tl into width cells, one segment
// lookup per cell centre.
func barCells(l segments.List, tl timeline.Timeline, width int) []cellKind {
	cells := make([]cellKind, width)
	if width <= 0 || tl.ZoomValue <= 0 {
		return cells
	}
	step := tl.ZoomValue / float64(width)
	for c := range cells {
		ms := int64(tl.From + (float64(c)+0.5)*step)
		i := l.IndexAt(ms)
		if i < 0 {
			continue
		}
		seg := l.Segments[i]
		switch {
		case seg.Deleted && seg.Selected:
			cells[c] = cellDeletedSelected
		case seg.Deleted:
			cells[c] = cellDeleted
		case seg.Selected:
			cells[c] = cellKeptSelected
		default:
			cells[c] = cellKept
		}
	}
	return cells
}

// playheadColumn returns the cell under pos, or -1 when pos is outside the
// visible window.
func playheadColumn(tl timeline.Timeline, pos int64, width int) int {
	if width <= 0 || !tl.InWindow(float64(pos)) {
		return -1
	}
	c := int(tl.TrackPosition(float64(pos)) / 100 * float64(width))
	return min(max(c, 0), width-1)
}

func renderBar(l segments.List, tl timeline.Timeline, width int) string {
	var b strings.Builder
	b.WriteString(DimTextStyle.Render("["))
	for _, c := range barCells(l, tl, width) {
		b.WriteString(cellStyle(c).Render(cellRune(c)))
	}
	b.WriteString(DimTextStyle.Render("]"))
	return b.String()
}

func renderPlayhead(tl timeline.Timeline, pos int64, width int) string {
	col := playheadColumn(tl, pos, width)
	if col < 0 {
		return ""
	}
	return " " + strings.Repeat(" ", col) + PlayheadStyle.Render("▼")
}

// rulerLabels puts the window bounds under the two ends of the bar.
func rulerLabels(tl timeline.Timeline, width int) string {
	from := segments.FormatTime(int64(tl.From), false)
	to := segments.FormatTime(int64(tl.To), false)
	gap := width + 2 - len(from) - len(to)
	if gap < 1 {
		gap = 1
	}
	return from + strings.Repeat(" ", gap) + to
}

func cellRune(c cellKind) string {
	switch c {
	case cellKept, cellKeptSelected:
		return "━"
	case cellDeleted, cellDeletedSelected:
		return "┄"
	default:
		return " "
	}
}

func cellStyle(c cellKind) lipgloss.Style {
	switch c {
	case cellKept:
		return keptStyle
	case cellKeptSelected:
		return keptSelectedStyle
	case cellDeleted:
		return deletedStyle
	case cellDeletedSelected:
		return deletedSelectedStyle
	default:
		return DimTextStyle
	}
}
