package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"chat-engine/internal/chat"
	"chat-engine/internal/observability"
)

// Handler upgrades websocket connections and speaks the chat wire protocol.
type Handler struct {
	engine *chat.Service
}

// NewHandler constructs a Handler.
func NewHandler(engine *chat.Service) *Handler {
	return &Handler{engine: engine}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and hands it to the engine as an anonymous
// session. Identity is established later by a user:join or user:reconnect
// event on the socket itself.
func (h *Handler) Handle(c *gin.Context) {
	_, span := otel.Tracer("chat-engine/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		IP:          clientIP(c.Request),
		RequestID:   c.GetString("request_id"),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, info)
	sess := h.engine.Connect(client)

	observability.IncWSActive("chat")
	observability.IncWSEvent("chat", "ws_connect")

	// The request context dies when this handler returns, but the socket
	// lives on. Carry only the span context forward.
	connCtx := trace.ContextWithSpanContext(context.Background(), span.SpanContext())
	_ = observability.PublishEvent(connCtx, "ws_events.chat", h.lifecycleEnvelope("ws_connect", info, "", 0, ""),
		observability.BuildHeaders(info.RequestID, info.TraceID))

	go client.writePump()
	go h.readLoop(connCtx, client, sess)
}

// readLoop consumes client frames until the socket breaks, dispatching each
// one to the engine. It owns connection teardown.
func (h *Handler) readLoop(ctx context.Context, client *Client, sess *chat.Session) {
	conn := client.conn
	info := client.info
	var closeReason string
	defer func() {
		client.close()
		conn.Close()
		var userID string
		if user := h.engine.Disconnect(sess); user != nil {
			userID = user.ID
		}
		observability.DecWSActive("chat")
		observability.IncWSEvent("chat", "ws_disconnect")
		_ = observability.PublishEvent(ctx, "ws_events.chat",
			h.lifecycleEnvelope("ws_disconnect", info, userID, time.Since(info.ConnectedAt), closeReason),
			observability.BuildHeaders(info.RequestID, info.TraceID))
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("chat", "ws_error")
				_ = observability.PublishEvent(ctx, "ws_events.chat",
					h.lifecycleEnvelope("ws_error", info, "", time.Since(info.ConnectedAt), closeReason),
					observability.BuildHeaders(info.RequestID, info.TraceID))
			}
			return
		}
		h.dispatch(ctx, client, sess, raw)
	}
}

func (h *Handler) lifecycleEnvelope(event string, info ConnInfo, userID string, duration time.Duration, reason string) observability.EventEnvelope {
	return observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Instance:  h.engine.Instance(),
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "chat",
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration.Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id": userID,
				"ip":      info.IP,
			},
		},
	}
}
