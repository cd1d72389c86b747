package editor

import (
	"sync"

	"github.com/heimdex/heimdex-editor/internal/segments"
)

// EventKind names what happened in a session.
type EventKind string

const (
	TimeUpdated     EventKind = "time_updated"
	SegmentsChanged EventKind = "segments_changed"
	EditRejected    EventKind = "edit_rejected"
	Saved           EventKind = "saved"
	Closed          EventKind = "closed"
)

// Event is published by a Session. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind      `json:"event"`
	Time     int64          `json:"time,omitempty"`
	Segments *segments.List `json:"segments,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Result   *SaveResult    `json:"result,omitempty"`
}

// Bus fans session events out to subscribers. A subscriber that falls behind
// loses events rather than blocking the session.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a func that unsubscribes and
// closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers ev to every subscriber with room in its buffer.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
