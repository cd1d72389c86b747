// Package player defines the playback boundary the editor talks to. The
// editor never touches a media element directly; it reads time and status
// through an Adapter and reacts to its events.
package player

import "errors"

// ErrNotReady is returned by Play when there is nothing playable.
var ErrNotReady = errors.New("player not ready")

// Status is the playback state reported by an Adapter.
type Status int

const (
	Initializing Status = iota
	Loading
	Seeking
	Paused
	Playing
	Ended
	ErrorNoMedia
	ErrorNetwork
	ErrorDecode
	ErrorUnsupported
)

func (s Status) String() string {
	switch s {
	case Initializing:
		return "INITIALIZING"
	case Loading:
		return "LOADING"
	case Seeking:
		return "SEEKING"
	case Paused:
		return "PAUSED"
	case Playing:
		return "PLAYING"
	case Ended:
		return "ENDED"
	case ErrorNoMedia:
		return "ERROR_NO_MEDIA"
	case ErrorNetwork:
		return "ERROR_NETWORK"
	case ErrorDecode:
		return "ERROR_DECODE"
	case ErrorUnsupported:
		return "ERROR_UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// IsError reports whether s is one of the error states.
func (s Status) IsError() bool {
	return s >= ErrorNoMedia
}

// Event is a notification an Adapter emits.
type Event int

const (
	EventPlay Event = iota
	EventPause
	EventTimeUpdate
	EventDurationChange
	EventCanPlay
	EventVolumeChange
)

func (e Event) String() string {
	switch e {
	case EventPlay:
		return "PLAY"
	case EventPause:
		return "PAUSE"
	case EventTimeUpdate:
		return "TIMEUPDATE"
	case EventDurationChange:
		return "DURATION_CHANGE"
	case EventCanPlay:
		return "CAN_PLAY"
	case EventVolumeChange:
		return "VOLUMECHANGE"
	default:
		return "UNKNOWN"
	}
}

// Adapter is a uniform view over a playback element. Times are in seconds.
type Adapter interface {
	Play() error
	Pause()
	CurrentTime() float64
	SetCurrentTime(seconds float64)
	Duration() float64
	Status() Status

	// NextFrame and PreviousFrame pause and step by one frame.
	NextFrame()
	PreviousFrame()

	Muted() bool
	SetMuted(muted bool)
	Volume() float64
	SetVolume(volume float64)

	// AddListener registers fn for ev. The returned func unregisters it.
	AddListener(ev Event, fn func()) (remove func())
}
