package models

import "time"

// MessageKind classifies who a message addresses.
type MessageKind string

const (
	KindGroup   MessageKind = "group"
	KindPrivate MessageKind = "private"
	KindSystem  MessageKind = "system"
)

// SystemSender is the sender id used for engine-generated messages.
const SystemSender = "system"

// DeletedPlaceholder replaces the content of a message deleted for everyone.
// The original content is not recoverable once substituted.
const DeletedPlaceholder = "This message was deleted"

// ReplyRef is a denormalized snapshot of a quoted message, frozen at send time.
type ReplyRef struct {
	MessageID  string `json:"messageId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	Content    string `json:"content"`
}

// Message is one entry in a conversation log. Entries are appended once and
// afterwards mutated in place only to flip delivered, read, or deletion markers.
type Message struct {
	ID          string      `json:"id"`
	Kind        MessageKind `json:"kind"`
	SenderID    string      `json:"senderId"`
	SenderName  string      `json:"senderName,omitempty"`
	Recipient   string      `json:"recipient"`
	Content     string      `json:"content"`
	Attachments []string    `json:"attachments,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Delivered   bool        `json:"delivered"`
	Read        bool        `json:"read"`
	ReplyTo     *ReplyRef   `json:"replyTo,omitempty"`

	// Deletion markers. DeletedFor hides the entry from the listed users
	// only; DeletedForEveryone substitutes DeletedPlaceholder for all.
	DeletedFor         []string `json:"deletedFor,omitempty"`
	DeletedForEveryone bool     `json:"deletedForEveryone,omitempty"`
	DeletedBy          string   `json:"deletedBy,omitempty"`
}

// HiddenFor reports whether the message was deleted-for-me by the given user.
func (m *Message) HiddenFor(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a copy that is safe to serialize after the engine releases
// its lock.
func (m *Message) Clone() Message {
	c := *m
	c.Attachments = append([]string(nil), m.Attachments...)
	c.DeletedFor = append([]string(nil), m.DeletedFor...)
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		c.ReplyTo = &ref
	}
	return c
}

// MessageView is the per-viewer serialization of a message: the raw
// DeletedFor set collapses into a deletedForMe flag computed for the viewer.
type MessageView struct {
	Message
	DeletedForMe bool `json:"deletedForMe,omitempty"`
}

// ViewFor renders the message for one viewer.
func (m *Message) ViewFor(viewerID string) MessageView {
	view := MessageView{Message: m.Clone(), DeletedForMe: m.HiddenFor(viewerID)}
	view.DeletedFor = nil
	return view
}
