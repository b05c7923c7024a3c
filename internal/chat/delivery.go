package chat

import (
	"chat-engine/internal/models"
	"chat-engine/internal/observability"
)

// Conn is the transport-side handle the engine pushes frames to. Push must
// not block: transports buffer outbound frames and report false when one is
// dropped because the connection is closed or its buffer is full.
type Conn interface {
	ID() string
	Push(event string, data any) bool
}

// Delivery owns the user-to-connection bindings and fans events out to them.
// Pushes are fire-and-forget: a failed push is counted and otherwise
// degrades to a no-op. Not safe for concurrent use; the engine serializes
// access.
type Delivery struct {
	byUser map[string]Conn
}

// NewDelivery builds an empty binding table.
func NewDelivery() *Delivery {
	return &Delivery{byUser: make(map[string]Conn)}
}

// Bind associates the user with a connection, returning the connection it
// replaced when the user was already bound elsewhere. Newest binding wins.
func (d *Delivery) Bind(userID string, conn Conn) Conn {
	old := d.byUser[userID]
	d.byUser[userID] = conn
	if old != nil && old.ID() == conn.ID() {
		return nil
	}
	return old
}

// Unbind clears the user's binding, but only when it still points at the
// given connection. A stale connection disconnecting after a reconnect must
// not unbind its successor.
func (d *Delivery) Unbind(userID, connID string) bool {
	conn, ok := d.byUser[userID]
	if !ok || conn.ID() != connID {
		return false
	}
	delete(d.byUser, userID)
	return true
}

// Bound reports whether the user has a connection on this instance.
func (d *Delivery) Bound(userID string) bool {
	_, ok := d.byUser[userID]
	return ok
}

// ToUser pushes one event to the user's bound connection, if any.
func (d *Delivery) ToUser(userID, event string, data any) bool {
	conn, ok := d.byUser[userID]
	if !ok {
		return false
	}
	if !conn.Push(event, data) {
		observability.IncDeliveryFailure()
		return false
	}
	return true
}

// ToGroup pushes a per-viewer rendering of the message to every bound group
// member except the excluded user, returning the ids actually reached.
func (d *Delivery) ToGroup(group *models.Group, msg *models.Message, exclude string) []string {
	var deliveredTo []string
	for _, memberID := range group.Members {
		if memberID == exclude {
			continue
		}
		if d.ToUser(memberID, models.PushMessageReceived, models.MessageReceivedEvent{Message: msg.ViewFor(memberID)}) {
			deliveredTo = append(deliveredTo, memberID)
			observability.IncDelivery(string(msg.Kind))
		}
	}
	return deliveredTo
}

// ToRecipient pushes a private message to its recipient's connection.
func (d *Delivery) ToRecipient(msg *models.Message) bool {
	if !d.ToUser(msg.Recipient, models.PushMessageReceived, models.MessageReceivedEvent{Message: msg.ViewFor(msg.Recipient)}) {
		return false
	}
	observability.IncDelivery(string(msg.Kind))
	return true
}

// Broadcast pushes an event to every bound connection, optionally excluding
// one user.
func (d *Delivery) Broadcast(event string, data any, exclude string) {
	for userID, conn := range d.byUser {
		if userID == exclude {
			continue
		}
		if conn.Push(event, data) {
			observability.IncDelivery("broadcast")
		} else {
			observability.IncDeliveryFailure()
		}
	}
}
