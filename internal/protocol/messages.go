// Package protocol defines the bus message shapes shared between the
// assistant runtime and downstream analytics consumers.
package protocol

import "time"

// TurnEvent is broadcast once per completed assistant turn.
type TurnEvent struct {
	SessionID    string    `json:"session_id"`
	TraceID      string    `json:"trace_id,omitempty"`
	Intent       string    `json:"intent"`
	UIAction     string    `json:"ui_action"`
	Query        string    `json:"query,omitempty"`
	ResponseText string    `json:"response_text,omitempty"`
	CacheHit     bool      `json:"cache_hit"`
	Degraded     bool      `json:"degraded,omitempty"`
	LatencyMS    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// SessionEvent marks session lifecycle transitions.
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"` // created, renewed, ended
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectTurnCompleted  = "assistant.turn.completed"
	SubjectSessionCreated = "assistant.session.created"
	SubjectSessionEnded   = "assistant.session.ended"
)
