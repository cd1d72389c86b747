// Package editor runs an editing session: it owns the segment list and the
// playhead, turns user gestures into reducer ops and publishes TimeUpdated and
// SegmentsChanged events to whoever renders the session.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/heimdex/heimdex-editor/internal/player"
	"github.com/heimdex/heimdex-editor/internal/segments"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// TickInterval is how often Run samples the player.
const TickInterval = 40 * time.Millisecond

var (
	ErrSaveInFlight  = errors.New("save already in progress")
	ErrUnknownOption = errors.New("unknown zoom option")
)

// Saver persists a save payload for a media item.
type Saver interface {
	Save(ctx context.Context, mediaID string, req SaveRequest) (SaveResult, error)
}

// Config describes a session to open.
type Config struct {
	ID      string
	MediaID string
	Load    LoadResponse
	Player  player.Adapter
	Preview bool
	Logger  *slog.Logger
	Now     func() time.Time
}

// Session is one editing session over one recording.
type Session struct {
	id      string
	mediaID string
	load    LoadResponse
	player  player.Adapter
	bus     *Bus
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	list       segments.List
	timeline   *timeline.Timeline
	drag       *timeline.Drag
	preview    bool
	previous   float64
	replaying  *segments.Segment
	saving     bool
	lastActive time.Time

	unlisten []func()
}

// NewSession builds a session from a load payload.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Player == nil {
		return nil, fmt.Errorf("session %s: no player", cfg.ID)
	}
	list, err := cfg.Load.List()
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cfg.ID, err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Session{
		id:         cfg.ID,
		mediaID:    cfg.MediaID,
		load:       cfg.Load,
		player:     cfg.Player,
		bus:        NewBus(),
		logger:     cfg.Logger,
		now:        cfg.Now,
		list:       list,
		timeline:   timeline.New(list.Duration),
		drag:       timeline.NewDrag(list.Duration),
		preview:    cfg.Preview,
		previous:   -1,
		lastActive: cfg.Now(),
	}

	s.unlisten = append(s.unlisten,
		cfg.Player.AddListener(player.EventPlay, s.onPlay),
		cfg.Player.AddListener(player.EventPause, s.onPause),
	)
	return s, nil
}

func (s *Session) ID() string      { return s.id }
func (s *Session) MediaID() string { return s.mediaID }
func (s *Session) Bus() *Bus       { return s.bus }

// Player returns the adapter the session samples.
func (s *Session) Player() player.Adapter { return s.player }

// Load returns the payload the session was opened with.
func (s *Session) Load() LoadResponse { return s.load }

// Segments returns a copy of the current list.
func (s *Session) Segments() segments.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Clone()
}

// Timeline returns a copy of the zoom state.
func (s *Session) Timeline() timeline.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.timeline
}

// Position returns the playhead in ms as of the last tick.
func (s *Session) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(max(s.previous, 0))
}

// PreviewMode reports whether deleted segments are skipped during playback.
func (s *Session) PreviewMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// LastActive is the last time a user action reached the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

// Apply runs op through the reducer and publishes the outcome.
func (s *Session) Apply(op segments.Op) (segments.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(op)
}

func (s *Session) applyLocked(op segments.Op) (segments.List, error) {
	s.touchLocked()
	next, err := segments.Apply(s.list, op)
	if err != nil {
		s.logger.Debug("edit rejected", "session_id", s.id, "op", op.Name(), "error", err)
		s.bus.Publish(Event{Kind: EditRejected, Reason: err.Error()})
		return next.Clone(), err
	}
	s.list = next
	s.publishSegmentsLocked()
	return next.Clone(), nil
}

func (s *Session) publishSegmentsLocked() {
	l := s.list.Clone()
	s.bus.Publish(Event{Kind: SegmentsChanged, Segments: &l})
}

// SplitAtPlayhead splits the segment under the player's current time.
func (s *Session) SplitAtPlayhead() (segments.List, error) {
	at := int64(math.Floor(s.player.CurrentTime() * 1000))
	return s.Apply(segments.Split{At: at})
}

// ToggleAt flips the deleted flag of segment i.
func (s *Session) ToggleAt(i int) (segments.List, error) {
	return s.Apply(segments.ToggleDeleted{Index: i})
}

// MergeAt merges segment i into its neighbour.
func (s *Session) MergeAt(i int) (segments.List, error) {
	return s.Apply(segments.Merge{Index: i})
}

// SetStartText moves the start of segment i to a typed HH:MM:SS.mmm value.
func (s *Session) SetStartText(i int, text string) (segments.List, error) {
	at, err := segments.ParseTime(text)
	if err != nil {
		return s.rejectInput("set_start", err)
	}
	return s.Apply(segments.SetStart{Index: i, At: at})
}

// SetEndText moves the end of segment i to a typed HH:MM:SS.mmm value.
func (s *Session) SetEndText(i int, text string) (segments.List, error) {
	at, err := segments.ParseTime(text)
	if err != nil {
		return s.rejectInput("set_end", err)
	}
	return s.Apply(segments.SetEnd{Index: i, At: at})
}

func (s *Session) rejectInput(op string, cause error) (segments.List, error) {
	err := &segments.RejectedError{Op: op, Reason: cause.Error(), Err: cause}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus.Publish(Event{Kind: EditRejected, Reason: err.Error()})
	return s.list.Clone(), err
}

// BeginBoundaryDrag grabs the start or end handle of segment i.
func (s *Session) BeginBoundaryDrag(i int, edge segments.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= s.list.Len() {
		return &segments.RejectedError{Op: "drag", Reason: fmt.Sprintf("index %d out of range", i)}
	}
	seg := s.list.Segments[i]
	at := seg.Start
	if edge == segments.EdgeEnd {
		at = seg.End
	}
	s.touchLocked()
	return s.drag.BeginBoundary(i, edge, at)
}

// BeginScrub grabs the playhead.
func (s *Session) BeginScrub(at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.drag.BeginPlayhead(at)
}

// BeginWindowDrag grabs the zoom window.
func (s *Session) BeginWindowDrag() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.drag.BeginWindow(int64(s.timeline.From))
}

// MoveDrag moves whatever is being dragged to at.
func (s *Session) MoveDrag(at int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Move(at)
}

// DragState returns the pointer state.
func (s *Session) DragState() timeline.DragState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.State()
}

// EndDrag releases the drag and applies its result in one step.
func (s *Session) EndDrag() (segments.List, error) {
	s.mu.Lock()
	r, err := s.drag.End()
	if err != nil {
		s.mu.Unlock()
		return s.Segments(), err
	}

	switch r.State {
	case timeline.DraggingBoundary:
		list, err := s.applyLocked(r.Op)
		s.mu.Unlock()
		return list, err
	case timeline.DraggingWindow:
		s.timeline.MoveWindow(float64(r.Window))
		list := s.list.Clone()
		s.mu.Unlock()
		return list, nil
	default:
		list := s.list.Clone()
		s.mu.Unlock()
		s.player.SetCurrentTime(float64(r.Seek) / 1000)
		return list, nil
	}
}

// CancelDrag drops the current drag.
func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Cancel()
}

// Seek moves the playhead to ms.
func (s *Session) Seek(ms int64) {
	s.mu.Lock()
	s.touchLocked()
	s.mu.Unlock()
	s.player.SetCurrentTime(float64(ms) / 1000)
}

// Play starts playback.
func (s *Session) Play() error {
	s.mu.Lock()
	s.touchLocked()
	s.mu.Unlock()
	return s.player.Play()
}

// Pause stops playback.
func (s *Session) Pause() {
	s.mu.Lock()
	s.touchLocked()
	s.mu.Unlock()
	s.player.Pause()
}

// NextFrame steps one frame forward.
func (s *Session) NextFrame() {
	s.player.NextFrame()
}

// PreviousFrame steps one frame back.
func (s *Session) PreviousFrame() {
	s.player.PreviousFrame()
}

// SkipToSegment moves the playhead to the start of segment i.
func (s *Session) SkipToSegment(i int) error {
	s.mu.Lock()
	if i < 0 || i >= s.list.Len() {
		s.mu.Unlock()
		return &segments.RejectedError{Op: "skip", Reason: fmt.Sprintf("index %d out of range", i)}
	}
	start := s.list.Segments[i].Start
	if _, err := s.applyLocked(segments.Select{At: start}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.player.SetCurrentTime(float64(start) / 1000)
	return nil
}

// ReplaySegment plays segment i from its start and stops at its end.
func (s *Session) ReplaySegment(i int) error {
	s.mu.Lock()
	if _, err := s.applyLocked(segments.Replay{Index: i}); err != nil {
		s.mu.Unlock()
		return err
	}
	start := s.list.Segments[i].Start
	s.mu.Unlock()

	s.player.SetCurrentTime(float64(start) / 1000)
	return s.player.Play()
}

// TogglePreviewMode flips preview mode and returns the new value.
func (s *Session) TogglePreviewMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.preview = !s.preview
	return s.preview
}

// SetZoomLevel changes the zoom level (0 to 100).
func (s *Session) SetZoomLevel(level float64) timeline.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.timeline.SetZoomLevel(level)
	return *s.timeline
}

// SelectZoomOption applies the zoom preset with the given name.
func (s *Session) SelectZoomOption(name string) (timeline.Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	for _, opt := range timeline.ZoomOptions(s.list.Duration) {
		if opt.Name == name {
			s.timeline.SelectZoomOption(opt)
			return *s.timeline, nil
		}
	}
	return *s.timeline, fmt.Errorf("%w: %q", ErrUnknownOption, name)
}

// Tick samples the player once: it clamps an overrun, keeps the window on
// the playhead, selects the current segment, stops a finished replay and, in
// preview mode, jumps over deleted segments while playing.
func (s *Session) Tick() {
	pos := s.player.CurrentTime() * 1000
	playing := s.player.Status() == player.Playing

	var after []func()
	defer func() {
		for _, fn := range after {
			fn()
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	duration := float64(s.list.Duration)
	if pos > duration {
		pos = duration
		after = append(after, func() {
			s.player.SetCurrentTime(duration / 1000)
			s.player.Pause()
		})
	}
	if pos == s.previous {
		return
	}

	s.timeline.Follow(pos, s.previous, playing)
	s.previous = pos
	ms := int64(pos)

	before := s.list.SelectedIndex()
	if next, err := segments.Apply(s.list, segments.Select{At: ms}); err == nil {
		s.list = next
		if next.SelectedIndex() != before {
			s.publishSegmentsLocked()
		}
	}
	s.bus.Publish(Event{Kind: TimeUpdated, Time: ms})

	i := s.list.IndexAt(ms)
	if i < 0 {
		return
	}
	seg := s.list.Segments[i]

	if s.replaying != nil && !seg.Replay {
		start := s.replaying.Start
		s.replaying = nil
		if next, err := segments.Apply(s.list, segments.ClearReplay{}); err == nil {
			s.list = next
		}
		after = append(after, func() {
			s.player.Pause()
			s.player.SetCurrentTime(float64(start) / 1000)
		})
		return
	}
	if seg.Replay {
		s.replaying = &seg
	}

	if s.preview && seg.Deleted && playing {
		end := seg.End
		after = append(after, func() {
			s.player.SetCurrentTime(float64(end) / 1000)
		})
	}
}

// Run ticks until ctx is done.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Save hands the current list to saver. Only one save runs at a time.
func (s *Session) Save(ctx context.Context, saver Saver, workflow string) (SaveResult, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return SaveResult{}, ErrSaveInFlight
	}
	s.saving = true
	s.touchLocked()
	req := BuildSave(s.list, s.load.TrackIDs(), workflow)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	res, err := saver.Save(ctx, s.mediaID, req)
	if err != nil {
		s.logger.Error("save failed", "session_id", s.id, "media_id", s.mediaID, "error", err)
		return SaveResult{}, fmt.Errorf("save session %s: %w", s.id, err)
	}
	s.logger.Info("session saved", "session_id", s.id, "media_id", s.mediaID, "cut_id", res.CutID, "job_id", res.JobID)
	s.bus.Publish(Event{Kind: Saved, Result: &res})
	return res, nil
}

// Close detaches the session from its player and closes subscribers.
func (s *Session) Close() {
	s.mu.Lock()
	unlisten := s.unlisten
	s.unlisten = nil
	s.mu.Unlock()

	for _, fn := range unlisten {
		fn()
	}
	s.bus.Publish(Event{Kind: Closed})
	s.bus.Close()
}

func (s *Session) onPlay() {
	pos := s.player.CurrentTime() * 1000
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline.PlayStarted(pos)
}

func (s *Session) onPause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline.PlayStopped()
}
