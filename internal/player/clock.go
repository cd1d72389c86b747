package player

import (
	"sync"
	"time"
)

// DefaultFrameRate is used when a ClockConfig leaves FrameRate unset.
const DefaultFrameRate = 25

// ClockConfig configures a Clock.
type ClockConfig struct {
	Duration  float64 // seconds; 0 leaves the clock loading
	FrameRate float64
	Now       func() time.Time
}

// Clock is an Adapter without media: playback position advances with wall
// time. It backs server-side sessions and the terminal editor.
type Clock struct {
	mu        sync.Mutex
	now       func() time.Time
	duration  float64
	frameRate float64
	status    Status
	position  float64
	anchor    time.Time
	muted     bool
	volume    float64

	listeners map[Event]map[int]func()
	nextID    int
}

var _ Adapter = (*Clock)(nil)

func NewClock(cfg ClockConfig) *Clock {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	c := &Clock{
		now:       cfg.Now,
		frameRate: cfg.FrameRate,
		volume:    1,
		status:    Loading,
		listeners: make(map[Event]map[int]func()),
	}
	if cfg.Duration > 0 {
		c.duration = cfg.Duration
		c.status = Paused
	}
	return c
}

// SetDuration loads a new duration and reports it as playable.
func (c *Clock) SetDuration(seconds float64) {
	c.mu.Lock()
	c.duration = seconds
	c.position = min(c.position, seconds)
	if seconds > 0 && (c.status == Loading || c.status == Initializing) {
		c.status = Paused
	}
	c.mu.Unlock()

	c.emit(EventDurationChange)
	if seconds > 0 {
		c.emit(EventCanPlay)
	}
}

// Fail puts the clock into an error state and stops playback.
func (c *Clock) Fail(status Status) {
	c.mu.Lock()
	wasPlaying := c.status == Playing
	c.position = c.positionLocked()
	c.status = status
	c.mu.Unlock()

	if wasPlaying {
		c.emit(EventPause)
	}
}

func (c *Clock) Play() error {
	c.mu.Lock()
	ended := c.settleLocked()
	var err error
	started := false
	switch {
	case c.duration <= 0 || c.status.IsError():
		err = ErrNotReady
	case c.status == Playing:
	default:
		if c.status == Ended {
			c.position = 0
		}
		c.status = Playing
		c.anchor = c.now()
		started = true
	}
	c.mu.Unlock()

	if ended {
		c.emit(EventPause)
	}
	if started {
		c.emit(EventPlay)
	}
	return err
}

func (c *Clock) Pause() {
	c.mu.Lock()
	if c.settleLocked() {
		c.mu.Unlock()
		c.emit(EventPause)
		return
	}
	if c.status != Playing {
		c.mu.Unlock()
		return
	}
	c.position = c.positionLocked()
	c.status = Paused
	c.mu.Unlock()

	c.emit(EventPause)
}

func (c *Clock) CurrentTime() float64 {
	c.mu.Lock()
	ended := c.settleLocked()
	pos := c.positionLocked()
	c.mu.Unlock()

	if ended {
		c.emit(EventPause)
	}
	return pos
}

func (c *Clock) SetCurrentTime(seconds float64) {
	c.mu.Lock()
	ended := c.settleLocked()
	c.position = min(max(seconds, 0), c.duration)
	if c.status == Playing {
		c.anchor = c.now()
	}
	if c.status == Ended && c.position < c.duration {
		c.status = Paused
	}
	c.mu.Unlock()

	if ended {
		c.emit(EventPause)
	}
	c.emit(EventTimeUpdate)
}

func (c *Clock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

func (c *Clock) Status() Status {
	c.mu.Lock()
	ended := c.settleLocked()
	status := c.status
	c.mu.Unlock()

	if ended {
		c.emit(EventPause)
	}
	return status
}

func (c *Clock) NextFrame() {
	c.step(1)
}

func (c *Clock) PreviousFrame() {
	c.step(-1)
}

func (c *Clock) step(frames float64) {
	c.Pause()
	c.SetCurrentTime(c.CurrentTime() + frames/c.frameRate)
}

func (c *Clock) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Clock) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	c.emit(EventVolumeChange)
}

func (c *Clock) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

func (c *Clock) SetVolume(volume float64) {
	c.mu.Lock()
	c.volume = min(max(volume, 0), 1)
	c.mu.Unlock()
	c.emit(EventVolumeChange)
}

func (c *Clock) AddListener(ev Event, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	if c.listeners[ev] == nil {
		c.listeners[ev] = make(map[int]func())
	}
	c.listeners[ev][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[ev], id)
	}
}

func (c *Clock) emit(ev Event) {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners[ev]))
	for _, fn := range c.listeners[ev] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (c *Clock) positionLocked() float64 {
	if c.status != Playing {
		return c.position
	}
	return min(c.position+c.now().Sub(c.anchor).Seconds(), c.duration)
}

// settleLocked moves a clock that has played past the end into Ended and
// reports whether it did. Callers emit EventPause for that transition once
// the lock is released.
func (c *Clock) settleLocked() bool {
	if c.status != Playing {
		return false
	}
	if pos := c.position + c.now().Sub(c.anchor).Seconds(); pos < c.duration {
		return false
	}
	c.position = c.duration
	c.status = Ended
	return true
}
