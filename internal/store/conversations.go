package store

import (
	"errors"
	"time"

	"chat-engine/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrForbidden       = errors.New("forbidden")
)

// Conversations holds every append-only message log, keyed by group id for
// group chats and by DirectKey for private ones. Not safe for concurrent
// use; callers serialize access.
type Conversations struct {
	logs map[string][]*models.Message
}

// NewConversations builds an empty message store.
func NewConversations() *Conversations {
	return &Conversations{logs: make(map[string][]*models.Message)}
}

// DirectKey builds the canonical log key for a private conversation. The
// two user ids are sorted so both directions map to the same log.
func DirectKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Append adds a message to the end of the log, creating the log on first
// use. When the clock has not advanced past the previous entry the timestamp
// is nudged forward, so log order and timestamp order always agree.
func (c *Conversations) Append(key string, msg *models.Message) {
	log := c.logs[key]
	if n := len(log); n > 0 && !msg.Timestamp.After(log[n-1].Timestamp) {
		msg.Timestamp = log[n-1].Timestamp.Add(time.Millisecond)
	}
	c.logs[key] = append(log, msg)
}

// Get returns a single message from the log by id.
func (c *Conversations) Get(key, messageID string) (*models.Message, bool) {
	for _, msg := range c.logs[key] {
		if msg.ID == messageID {
			return msg, true
		}
	}
	return nil, false
}

// Read returns the most recent limit messages in chronological order. A
// limit <= 0 returns the whole log.
func (c *Conversations) Read(key string, limit int) []*models.Message {
	return tail(c.logs[key], limit)
}

// ReadBefore returns up to limit messages strictly older than the given
// time, in chronological order. This is the pagination primitive for
// history scroll-back.
func (c *Conversations) ReadBefore(key string, before time.Time, limit int) []*models.Message {
	return tail(olderThan(c.logs[key], before), limit)
}

// ReadFor is Read with the viewer's deleted messages filtered out before the
// limit is applied.
func (c *Conversations) ReadFor(key, viewerID string, limit int) []*models.Message {
	return tail(visibleTo(c.logs[key], viewerID), limit)
}

// ReadBeforeFor is ReadBefore with the viewer's deleted messages filtered
// out before the limit is applied.
func (c *Conversations) ReadBeforeFor(key, viewerID string, before time.Time, limit int) []*models.Message {
	return tail(visibleTo(olderThan(c.logs[key], before), viewerID), limit)
}

// MarkRead flips the read flag on every unread message in the log that the
// reader did not send, and returns the messages it flipped.
func (c *Conversations) MarkRead(key, readerID string) []*models.Message {
	var flipped []*models.Message
	for _, msg := range c.logs[key] {
		if msg.Read || msg.SenderID == readerID {
			continue
		}
		msg.Read = true
		flipped = append(flipped, msg)
	}
	return flipped
}

// SoftDelete hides a message. With forEveryone the sender's content is
// replaced by a placeholder for all participants; otherwise the message is
// hidden from the requester only. Only the sender may delete for everyone.
func (c *Conversations) SoftDelete(key, messageID, requesterID string, forEveryone bool) (*models.Message, error) {
	msg, ok := c.Get(key, messageID)
	if !ok {
		return nil, ErrMessageNotFound
	}
	if forEveryone {
		if msg.SenderID != requesterID {
			return nil, ErrForbidden
		}
		msg.Content = models.DeletedPlaceholder
		msg.Attachments = nil
		msg.DeletedForEveryone = true
		msg.DeletedBy = requesterID
		return msg, nil
	}
	for _, id := range msg.DeletedFor {
		if id == requesterID {
			return msg, nil
		}
	}
	msg.DeletedFor = append(msg.DeletedFor, requesterID)
	return msg, nil
}

// DeleteLog drops an entire conversation log and reports whether it existed.
func (c *Conversations) DeleteLog(key string) bool {
	_, ok := c.logs[key]
	delete(c.logs, key)
	return ok
}

func olderThan(log []*models.Message, before time.Time) []*models.Message {
	// Logs are chronological, so everything before the cut index qualifies.
	cut := len(log)
	for i, msg := range log {
		if !msg.Timestamp.Before(before) {
			cut = i
			break
		}
	}
	return log[:cut]
}

func tail(log []*models.Message, limit int) []*models.Message {
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]*models.Message, len(log))
	copy(out, log)
	return out
}

func visibleTo(log []*models.Message, viewerID string) []*models.Message {
	visible := make([]*models.Message, 0, len(log))
	for _, msg := range log {
		if msg.HiddenFor(viewerID) {
			continue
		}
		visible = append(visible, msg)
	}
	return visible
}
