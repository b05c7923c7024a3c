package models

import "encoding/json"

// Client event names routed by the websocket transport.
const (
	EventUserJoin       = "user:join"
	EventUserReconnect  = "user:reconnect"
	EventUserLeave      = "user:leave"
	EventGroupCreate    = "group:create"
	EventGroupJoin      = "group:join"
	EventGroupLeave     = "group:leave"
	EventGroupDelete    = "group:delete"
	EventMessageGroup   = "message:group"
	EventMessagePrivate = "message:private"
	EventMessagesGet    = "messages:get"
	EventMessagesMore   = "messages:more"
	EventMessageRead    = "message:read"
	EventMessageDelete  = "message:delete"
	EventChatDelete     = "chat:delete"
	EventTypingStart    = "typing:start"
	EventTypingStop     = "typing:stop"
)

// Push event names emitted toward clients.
const (
	PushUserJoined       = "user:joined"
	PushUserLeft         = "user:left"
	PushGroupUpdated     = "group:updated"
	PushGroupDeleted     = "group:deleted"
	PushMessageReceived  = "message:received"
	PushMessageDelivered = "message:delivered"
	PushMessageRead      = "message:read"
	PushMessageDeleted   = "message:deleted"
	PushUserTyping       = "user:typing"
)

// ClientEvent is an inbound websocket frame. ID correlates the ack.
type ClientEvent struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is an outbound push frame.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Ack is the correlated response to one client event.
type Ack struct {
	ID    string `json:"id,omitempty"`
	Event string `json:"event"`
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// UserJoinedEvent announces a user coming online.
type UserJoinedEvent struct {
	User UserSummary `json:"user"`
}

// UserLeftEvent announces a user going offline.
type UserLeftEvent struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// GroupUpdatedEvent carries the new shape of a group after a membership change.
type GroupUpdatedEvent struct {
	Group   Group         `json:"group"`
	Members []UserSummary `json:"members"`
}

// GroupDeletedEvent notifies former members that a group is gone.
type GroupDeletedEvent struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

// MessageReceivedEvent carries a newly delivered message, rendered for the
// receiving viewer.
type MessageReceivedEvent struct {
	Message MessageView `json:"message"`
}

// MessageDeliveredEvent tells a sender their private message reached its recipient.
type MessageDeliveredEvent struct {
	MessageID string `json:"messageId"`
	To        string `json:"to"`
}

// MessageReadEvent tells original senders their messages were read.
type MessageReadEvent struct {
	GroupID    string   `json:"groupId,omitempty"`
	UserID     string   `json:"userId,omitempty"`
	ReaderID   string   `json:"readerId"`
	MessageIDs []string `json:"messageIds"`
}

// MessageDeletedEvent announces a delete-for-everyone.
type MessageDeletedEvent struct {
	GroupID   string `json:"groupId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	MessageID string `json:"messageId"`
	DeletedBy string `json:"deletedBy"`
}

// TypingEvent signals composing state to a conversation's audience.
type TypingEvent struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	GroupID string `json:"groupId,omitempty"`
	Private bool   `json:"private"`
	Typing  bool   `json:"isTyping"`
}
