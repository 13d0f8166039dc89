package protocol

import "time"

// Sentence is a finalized piece of dictated text broadcast on the bus.
type Sentence struct {
	SessionID string    `json:"session_id"`
	Sequence  int       `json:"sequence"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionEvent reports capture session lifecycle changes.
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	Device    string    `json:"device"`
	State     string    `json:"state"`
	Emitted   int       `json:"emitted,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SinkFailure records text that did not reach every sink.
type SinkFailure struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectSentence       = "yapper.transcript.sentence"
	SubjectSessionStarted = "yapper.session.started"
	SubjectSessionStopped = "yapper.session.stopped"
)
