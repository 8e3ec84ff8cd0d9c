package realtime

import (
	"time"

	"securebank/cmd/internal/auth/session"
)

// Event types pushed to clients. Lifecycle events reuse session.EventKind values.
const (
	TypeReady = "session.ready"
	TypePong  = "pong"
	TypeError = "error"

	TypeSuperseded = string(session.EventSuperseded)
	TypeRevoked    = string(session.EventRevoked)
)

// Event is one frame on the session event stream.
type Event struct {
	Type    string    `json:"type"`
	TS      time.Time `json:"ts"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
}

// inbound is the only frame clients send.
type inbound struct {
	Type string `json:"type"`
}

func newEvent(typ string, ts time.Time) Event {
	return Event{Type: typ, TS: ts.UTC()}
}
