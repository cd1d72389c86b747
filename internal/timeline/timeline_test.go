package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-editor/internal/segments"
)

func TestZoomValue(t *testing.T) {
	assert.Equal(t, 100000.0, ZoomValue(100000, 0))
	assert.Equal(t, 10000.0, ZoomValue(100000, 100))
	assert.Equal(t, 55000.0, ZoomValue(100000, 50))
}

func TestFieldOffset(t *testing.T) {
	assert.Equal(t, 0.0, FieldOffset(100000, 10000, 0))
	assert.Equal(t, 45000.0, FieldOffset(100000, 10000, 50000))
	assert.Equal(t, 0.0, FieldOffset(0, 10000, 50000))
}

func TestSegmentWidth(t *testing.T) {
	seg := segments.Segment{Start: 0, End: 15000}
	assert.InDelta(t, 15.0, SegmentWidth(seg, 100000), 1e-9)
	assert.Equal(t, 0.0, SegmentWidth(seg, 0))
}

func TestDisplayZoomLevel(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "≈ 0 s"},
		{1234, "≈ 1 s"},
		{12345, "≈ 12 s"},
		{130000, "≈ 2 m"},
		{1700000, "≈ 28 m"},
		{1900000, "≈ 32 m"},
		{5400000, "≈ 2 h"},
		{100000000, "≈ 28 h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayZoomLevel(tt.ms), "DisplayZoomLevel(%d)", tt.ms)
	}
}

func TestZoomOptions(t *testing.T) {
	names := func(opts []ZoomOption) []string {
		var out []string
		for _, o := range opts {
			out = append(out, o.Name)
		}
		return out
	}

	assert.Equal(t, []string{"All", "10 m", "5 m", "1 m", "30 s"}, names(ZoomOptions(3600000)))
	assert.Equal(t, []string{"All", "1 m", "30 s"}, names(ZoomOptions(120000)))
	assert.Equal(t, []string{"All", "30 s"}, names(ZoomOptions(31000)))
	assert.Equal(t, []string{"All"}, names(ZoomOptions(30999)))
}

func TestSelectZoomOption(t *testing.T) {
	tl := New(600000)
	tl.SelectZoomOption(ZoomOption{Name: "1 m", Time: 60000})
	assert.InDelta(t, 60000, tl.ZoomValue, 1e-6)
	assert.Equal(t, 0.0, tl.From)
	assert.InDelta(t, 60000, tl.To, 1e-6)

	tl.SelectZoomOption(ZoomOption{Name: "All"})
	assert.Equal(t, 0.0, tl.ZoomLevel)
	assert.Equal(t, 600000.0, tl.To)
}

func TestTooShortToZoom(t *testing.T) {
	tl := New(8000)
	tl.SetZoomLevel(80)
	assert.Equal(t, 0.0, tl.ZoomLevel)
	assert.Equal(t, 8000.0, tl.ZoomValue)
}

func TestRezoomRedistributesOverhead(t *testing.T) {
	tl := New(100000)
	tl.SetZoomLevel(100)
	assert.Equal(t, 0.0, tl.From)
	assert.Equal(t, 10000.0, tl.To)

	tl.MoveWindow(90000)
	assert.Equal(t, 90000.0, tl.From)
	assert.Equal(t, 100000.0, tl.To)

	// window at the end stays anchored right
	tl.SetZoomLevel(50)
	assert.Equal(t, 100000.0, tl.To)
	assert.Equal(t, 45000.0, tl.From)

	tl.MoveWindow(20000)
	tl.SetZoomLevel(100)
	assert.Equal(t, 42500.0, tl.From)
	assert.Equal(t, 52500.0, tl.To)
}

func TestFollowWhilePlaying(t *testing.T) {
	tl := New(100000)
	tl.SetZoomLevel(100)
	tl.PlayStarted(5000)

	tl.Follow(9000, 8000, true)
	assert.Equal(t, 0.0, tl.From)

	tl.Follow(10500, 9000, true)
	assert.Equal(t, 10000.0, tl.From)
	assert.Equal(t, 20000.0, tl.To)

	tl.MoveWindow(85000)
	tl.Follow(95500, 95000, true)
	assert.Equal(t, 90000.0, tl.From)
}

func TestFollowNotBeforeCursorTouchedWindow(t *testing.T) {
	tl := New(100000)
	tl.SetZoomLevel(100)
	tl.MoveWindow(50000)
	tl.PlayStarted(1000)

	tl.Follow(70000, 69000, true)
	assert.Equal(t, 50000.0, tl.From)

	tl.PlayStopped()
	tl.Follow(55000, 54000, true)
	tl.Follow(60500, 59900, true)
	assert.Equal(t, 60000.0, tl.From)
}

func TestFollowAfterSeek(t *testing.T) {
	tl := New(100000)
	tl.SetZoomLevel(100)
	tl.MoveWindow(30000)

	tl.Follow(45000, 35000, false)
	assert.Equal(t, 40000.0, tl.From)

	tl.Follow(39999.7, 45000, false)
	assert.Equal(t, 40000.0, tl.From, "within tolerance")

	tl.Follow(35000, 45000, false)
	assert.Equal(t, 30000.0, tl.From)

	// seeks from outside the window leave it alone
	tl.Follow(90000, 5000, false)
	assert.Equal(t, 30000.0, tl.From)
}

func TestWrapperClasses(t *testing.T) {
	l := segments.List{Duration: 100000, Segments: []segments.Segment{
		{Start: 0, End: 20000, Deleted: true, Selected: true},
		{Start: 20000, End: 100000},
	}}
	tl := New(100000)
	tl.SetZoomLevel(100)
	tl.MoveWindow(15000)

	left, right := tl.WrapperClasses(l)
	assert.Equal(t, "left-deleted-selected", left)
	assert.Equal(t, "right-normal", right)
}

func TestDragBoundaryLifecycle(t *testing.T) {
	d := NewDrag(10000)
	assert.Equal(t, Idle, d.State())

	require.NoError(t, d.BeginBoundary(2, segments.EdgeStart, 4000))
	assert.ErrorIs(t, d.BeginPlayhead(0), ErrDragActive)

	d.Move(-50)
	assert.Equal(t, int64(0), d.Candidate())
	d.Move(4500)

	r, err := d.End()
	require.NoError(t, err)
	assert.Equal(t, DraggingBoundary, r.State)
	assert.Equal(t, segments.DragBoundary{Index: 2, Edge: segments.EdgeStart, At: 4500}, r.Op)
	assert.Equal(t, Idle, d.State())

	_, err = d.End()
	assert.ErrorIs(t, err, ErrNotDragging)
}

func TestDragPlayheadAndCancel(t *testing.T) {
	d := NewDrag(10000)

	require.NoError(t, d.BeginPlayhead(100))
	d.Move(20000)
	r, err := d.End()
	require.NoError(t, err)
	assert.Equal(t, int64(10000), r.Seek)

	require.NoError(t, d.BeginWindow(300))
	d.Cancel()
	assert.Equal(t, Idle, d.State())

	d.Move(500)
	assert.Equal(t, int64(0), d.Candidate())
}
