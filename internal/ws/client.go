package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-engine/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is one websocket connection. It implements the engine's Conn: the
// engine hands it frames through Push and the write pump drains them, so
// the engine never blocks on a slow socket.
type Client struct {
	info ConnInfo
	conn *websocket.Conn

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{
		info:   info,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// ID returns the transport connection id.
func (c *Client) ID() string {
	return c.info.ConnID
}

// Push enqueues a push frame without blocking. A full buffer or closed
// connection drops the frame and reports false; the engine does not retry.
func (c *Client) Push(event string, data any) bool {
	payload, err := json.Marshal(models.ServerEvent{Event: event, Data: data})
	if err != nil {
		return false
	}
	return c.enqueue(payload)
}

func (c *Client) sendAck(ack models.Ack) bool {
	payload, err := json.Marshal(ack)
	if err != nil {
		return false
	}
	return c.enqueue(payload)
}

func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// writePump drains the send buffer onto the socket and keeps the connection
// alive with pings. It owns all writes; it exits when the connection breaks
// or the client is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
