// Package control exposes the session controller to local clients as
// newline-delimited JSON over a Unix socket.
package control

import "time"

const (
	CmdStart      = "start"
	CmdStop       = "stop"
	CmdStatus     = "status"
	CmdDevices    = "devices"
	CmdTranscript = "transcript"
	CmdSessions   = "sessions"
)

// Command is sent from a client to the daemon.
type Command struct {
	Cmd       string `json:"cmd"`
	Device    string `json:"device,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK        bool          `json:"ok"`
	SessionID string        `json:"sessionId,omitempty"`
	State     string        `json:"state,omitempty"`
	Device    string        `json:"device,omitempty"`
	StartedAt *time.Time    `json:"startedAt,omitempty"`
	Emitted   *int          `json:"emitted,omitempty"`
	Pending   *int          `json:"pending,omitempty"`
	Devices   []string      `json:"devices,omitempty"`
	Lines     []string      `json:"lines,omitempty"`
	Sessions  []SessionInfo `json:"sessions,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// SessionInfo summarizes a recorded session.
type SessionInfo struct {
	SessionID string     `json:"sessionId"`
	Device    string     `json:"device,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Emitted   int        `json:"emitted"`
}

func intPtr(v int) *int { return &v }
