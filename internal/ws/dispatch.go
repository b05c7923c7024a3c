package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"chat-engine/internal/chat"
	"chat-engine/internal/models"
	"chat-engine/internal/observability"
)

// Inbound event payloads. Conversation-addressed events embed chat.Target so
// the caller names either a group or the other participant.

type joinRequest struct {
	Name string `json:"name"`
}

type reconnectRequest struct {
	UserID string `json:"userId"`
}

type groupCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type groupRequest struct {
	GroupID string `json:"groupId"`
}

type groupMessageRequest struct {
	GroupID     string   `json:"groupId"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
	ReplyTo     string   `json:"replyTo"`
}

type privateMessageRequest struct {
	To          string   `json:"to"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
	ReplyTo     string   `json:"replyTo"`
}

type historyRequest struct {
	chat.Target
	Before time.Time `json:"before"`
	Limit  int       `json:"limit"`
}

type deleteMessageRequest struct {
	chat.Target
	MessageID   string `json:"messageId"`
	ForEveryone bool   `json:"forEveryone"`
}

var (
	errMalformedEvent = errors.New("malformed event")
	errUnknownEvent   = errors.New("unknown event")
)

// dispatch parses one client frame, routes it to the engine, and acks the
// outcome back on the same connection. A malformed frame produces a negative
// ack and no other effect.
func (h *Handler) dispatch(ctx context.Context, client *Client, sess *chat.Session, raw []byte) {
	var evt models.ClientEvent
	if err := json.Unmarshal(raw, &evt); err != nil || evt.Event == "" {
		client.sendAck(models.Ack{Event: "error", Error: errMalformedEvent.Error()})
		return
	}
	observability.IncWSEvent("chat", evt.Event)

	_, span := otel.Tracer("chat-engine/ws").Start(ctx, "ws."+evt.Event)
	data, err := h.route(sess, evt)
	span.End()

	ack := models.Ack{ID: evt.ID, Event: evt.Event, OK: err == nil, Data: data}
	if err != nil {
		ack.Error = err.Error()
		ack.Data = nil
	}
	client.sendAck(ack)
}

func (h *Handler) route(sess *chat.Session, evt models.ClientEvent) (any, error) {
	switch evt.Event {
	case models.EventUserJoin:
		var req joinRequest
		if err := unmarshalData(evt.Data, &req); err != nil {
			return nil, errMalformedEvent
		}
		user, err := h.engine.Register(sess, req.Name)
		if err != nil {
			return nil, err
		}
		return gin.H{"user": user}, nil

	case models.EventUserReconnect:
		var req reconnectRequest
		if err := unmarshalData(evt.Data, &req); err != nil {
			return nil, errMalformedEvent
		}
		user, err := h.engine.Reconnect(sess, req.UserID)
		if err != nil {
			return nil, err
		}
		return gin.H{"user": user}, nil

	case models.EventUserLeave:
		h.engine.Disconnect(sess)
		return gin.H{}, nil

	case models.EventGroupCreate:
		var req groupCreateRequest
		if err := unmarshalData(evt.Data, &req); err != nil {
			return nil, errMalformedEvent
		}
		group, err := h.engine.CreateGroup(sess, req.Name, req.Description)
		if err != nil {
			return nil, err
		}
		return gin.H{"group": group}, nil

	case models.EventGroupJoin:
		var req groupRequest
		if err := unmarshalData(evt.Data, &req); err != nil {
			return nil, errMalformedEvent
		}
		group, err := h.engine.JoinGroup(sess, req.GroupID)
		if err != nil {
			return nil, err
		}
		return gin.H{"group": group}, nil

	case models.EventGroupLeave:
		var req groupRequest
		if err := unmarshalData(evt.Data, &req); err != nil {
			return nil, errMalformedEvent
		}
		if err := h.engine.LeaveGroup(sess, req.GroupID); err != nil {
			return nil, err
		}
		return gin.H{}, nil

	case models.EventGroupDelete:
		var req groupRequest
		if err := unmarshalData(evt.Data, &req); err != nil {
			return nil, errMalformedEvent
		}
		if err := h.engine.DeleteGroup(sess, req.GroupID); err != nil {
			return nil, err
		}
		return gin.H{}, nil

	case models.EventMessageGroup:
		var req groupMessageRequest
		if err := unmarshalData(evt.Data, &req); err != nil {
			return nil, errMalformedEvent
		}
		return h.engine.SendGroupMessage(sess, req.GroupID, req.Content, req.Attachments, req.ReplyTo)

	case models.EventMessagePrivate:
		var req privateMessageRequest
		if err := unmarshalData(evt.Data, &req); err != nil {
			return nil, errMalformedEvent
		}
		return h.engine.SendPrivateMessage(sess, req.To, req.Content, req.Attachments, req.ReplyTo)

	case models.EventMessagesGet:
		var req historyRequest
		if err := unmarshalData(evt.Data, &req); err != nil {
			return nil, errMalformedEvent
		}
		msgs, err := h.engine.Messages(sess, req.Target, req.Limit)
		if err != nil {
			return nil, err
		}
		return gin.H{"messages": msgs}, nil

	case models.EventMessagesMore:
		var req historyRequest
		if err := unmarshalData(evt.Data, &req); err != nil || req.Before.IsZero() {
			return nil, errMalformedEvent
		}
		msgs, err := h.engine.MessagesBefore(sess, req.Target, req.Before, req.Limit)
		if err != nil {
			return nil, err
		}
		return gin.H{"messages": msgs}, nil

	case models.EventMessageRead:
		var target chat.Target
		if err := unmarshalData(evt.Data, &target); err != nil {
			return nil, errMalformedEvent
		}
		count, err := h.engine.MarkRead(sess, target)
		if err != nil {
			return nil, err
		}
		return gin.H{"count": count}, nil

	case models.EventMessageDelete:
		var req deleteMessageRequest
		if err := unmarshalData(evt.Data, &req); err != nil {
			return nil, errMalformedEvent
		}
		msg, err := h.engine.DeleteMessage(sess, req.Target, req.MessageID, req.ForEveryone)
		if err != nil {
			return nil, err
		}
		return gin.H{"message": msg}, nil

	case models.EventChatDelete:
		var target chat.Target
		if err := unmarshalData(evt.Data, &target); err != nil {
			return nil, errMalformedEvent
		}
		if err := h.engine.DeleteChat(sess, target); err != nil {
			return nil, err
		}
		return gin.H{}, nil

	case models.EventTypingStart:
		var target chat.Target
		if err := unmarshalData(evt.Data, &target); err != nil {
			return nil, errMalformedEvent
		}
		if err := h.engine.TypingStart(sess, target); err != nil {
			return nil, err
		}
		return gin.H{}, nil

	case models.EventTypingStop:
		var target chat.Target
		if err := unmarshalData(evt.Data, &target); err != nil {
			return nil, errMalformedEvent
		}
		if err := h.engine.TypingStop(sess, target); err != nil {
			return nil, err
		}
		return gin.H{}, nil

	default:
		return nil, errUnknownEvent
	}
}

func unmarshalData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
