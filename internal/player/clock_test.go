package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	t time.Time
}

func (f *fakeNow) now() time.Time { return f.t }

func (f *fakeNow) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestClock(duration float64) (*Clock, *fakeNow) {
	fn := &fakeNow{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewClock(ClockConfig{Duration: duration, FrameRate: 25, Now: fn.now}), fn
}

func TestClockPlaysWithWallTime(t *testing.T) {
	c, fn := newTestClock(10)
	assert.Equal(t, Paused, c.Status())

	require.NoError(t, c.Play())
	fn.advance(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, c.CurrentTime(), 1e-9)

	c.Pause()
	fn.advance(time.Second)
	assert.InDelta(t, 1.5, c.CurrentTime(), 1e-9)
	assert.Equal(t, Paused, c.Status())
}

func TestClockEnds(t *testing.T) {
	c, fn := newTestClock(2)
	require.NoError(t, c.Play())
	fn.advance(3 * time.Second)

	assert.Equal(t, Ended, c.Status())
	assert.Equal(t, 2.0, c.CurrentTime())

	// playing again restarts from the beginning
	require.NoError(t, c.Play())
	assert.Equal(t, 0.0, c.CurrentTime())
}

func TestClockSeekClamps(t *testing.T) {
	c, _ := newTestClock(10)
	c.SetCurrentTime(42)
	assert.Equal(t, 10.0, c.CurrentTime())
	c.SetCurrentTime(-1)
	assert.Equal(t, 0.0, c.CurrentTime())
}

func TestClockFrameStep(t *testing.T) {
	c, _ := newTestClock(10)
	c.SetCurrentTime(1)
	c.NextFrame()
	assert.InDelta(t, 1.04, c.CurrentTime(), 1e-9)
	c.PreviousFrame()
	c.PreviousFrame()
	assert.InDelta(t, 0.96, c.CurrentTime(), 1e-9)
}

func TestClockNotReady(t *testing.T) {
	c, _ := newTestClock(0)
	assert.Equal(t, Loading, c.Status())
	assert.ErrorIs(t, c.Play(), ErrNotReady)

	c.SetDuration(5)
	assert.Equal(t, Paused, c.Status())
	assert.NoError(t, c.Play())

	c.Fail(ErrorDecode)
	assert.True(t, c.Status().IsError())
	assert.ErrorIs(t, c.Play(), ErrNotReady)
}

func TestClockEndEmitsPauseOnce(t *testing.T) {
	c, fn := newTestClock(2)
	pauses := 0
	c.AddListener(EventPause, func() { pauses++ })

	require.NoError(t, c.Play())
	fn.advance(3 * time.Second)

	assert.Equal(t, 2.0, c.CurrentTime())
	assert.Equal(t, 1, pauses)

	assert.Equal(t, Ended, c.Status())
	c.Pause()
	assert.Equal(t, 1, pauses)
}

func TestClockPlayAfterUnobservedEnd(t *testing.T) {
	c, fn := newTestClock(2)
	var got []Event
	for _, ev := range []Event{EventPlay, EventPause} {
		c.AddListener(ev, func() { got = append(got, ev) })
	}

	require.NoError(t, c.Play())
	fn.advance(5 * time.Second)
	require.NoError(t, c.Play())

	assert.Equal(t, []Event{EventPlay, EventPause, EventPlay}, got)
	assert.Equal(t, Playing, c.Status())
}

func TestClockListeners(t *testing.T) {
	c, _ := newTestClock(10)

	var got []Event
	for _, ev := range []Event{EventPlay, EventPause, EventTimeUpdate, EventVolumeChange} {
		ev := ev
		c.AddListener(ev, func() { got = append(got, ev) })
	}
	remove := c.AddListener(EventPlay, func() { t.Error("removed listener called") })
	remove()

	require.NoError(t, c.Play())
	c.Pause()
	c.SetCurrentTime(3)
	c.SetVolume(2)
	assert.Equal(t, 1.0, c.Volume())

	assert.Equal(t, []Event{EventPlay, EventPause, EventTimeUpdate, EventVolumeChange}, got)
}
