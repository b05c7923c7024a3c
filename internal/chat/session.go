package chat

import "chat-engine/internal/models"

// SessionState tracks where a connection is in its lifecycle.
type SessionState int

const (
	SessionAnonymous SessionState = iota
	SessionIdentified
	SessionDisconnected
)

func (s SessionState) String() string {
	switch s {
	case SessionAnonymous:
		return "anonymous"
	case SessionIdentified:
		return "identified"
	case SessionDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the engine-side state of one connection. It moves from
// anonymous through identified to disconnected, and disconnected is terminal.
// All fields are guarded by the engine mutex.
type Session struct {
	conn  Conn
	state SessionState
	user  *models.User
}
