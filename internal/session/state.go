package session

import (
	"errors"
	"sync/atomic"
)

var (
	ErrSessionActive     = errors.New("a session is already active")
	ErrSourceUnavailable = errors.New("transcription source unavailable")
)

// State is the lifecycle position of the controller.
type State int

const (
	Idle State = iota
	Recording
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StopToken is the cooperative stop signal shared between the controller and
// a session's producer. The producer checks it after every line it reads.
type StopToken struct {
	requested atomic.Bool
}

func (t *StopToken) Request() { t.requested.Store(true) }

func (t *StopToken) Requested() bool { return t.requested.Load() }
