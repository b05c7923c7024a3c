package ws

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-engine/internal/chat"
)

// frame decodes both acks (ok present) and pushes (no ok).
type frame struct {
	ID    string          `json:"id"`
	Event string          `json:"event"`
	OK    *bool           `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func newTestServer(t *testing.T) (*chat.Service, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := chat.NewService(chat.Config{Instance: "test"}, nil)
	router := gin.New()
	router.GET("/ws", NewHandler(engine).Handle)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return engine, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, id, event string, data any) {
	t.Helper()
	payload := map[string]any{"id": id, "event": event}
	if data != nil {
		payload["data"] = data
	}
	require.NoError(t, conn.WriteJSON(payload))
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readAck skips pushes until the correlated ack arrives.
func readAck(t *testing.T, conn *websocket.Conn, id string) frame {
	t.Helper()
	for i := 0; i < 16; i++ {
		f := readFrame(t, conn)
		if f.OK != nil && f.ID == id {
			return f
		}
	}
	t.Fatalf("no ack for id %q", id)
	return frame{}
}

// readPush skips acks until the named push arrives.
func readPush(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	for i := 0; i < 16; i++ {
		f := readFrame(t, conn)
		if f.OK == nil && f.Event == event {
			return f
		}
	}
	t.Fatalf("no %q push", event)
	return frame{}
}

func joinUser(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	send(t, conn, "join-"+name, "user:join", map[string]any{"name": name})
	ack := readAck(t, conn, "join-"+name)
	require.True(t, *ack.OK, "join failed: %s", ack.Error)
	var data struct {
		User struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(ack.Data, &data))
	require.Equal(t, name, data.User.Name)
	return data.User.ID
}

func TestPrivateMessageRoundTrip(t *testing.T) {
	_, srv := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	aliceID := joinUser(t, alice, "alice")
	bobID := joinUser(t, bob, "bob")

	joined := readPush(t, alice, "user:joined")
	var joinedData struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(joined.Data, &joinedData))
	assert.Equal(t, bobID, joinedData.User.ID)

	send(t, alice, "m1", "message:private", map[string]any{"to": bobID, "content": "hi bob"})

	received := readPush(t, bob, "message:received")
	var recvData struct {
		Message struct {
			SenderID string `json:"senderId"`
			Content  string `json:"content"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(received.Data, &recvData))
	assert.Equal(t, aliceID, recvData.Message.SenderID)
	assert.Equal(t, "hi bob", recvData.Message.Content)

	// The sender hears about the successful push before the ack lands.
	delivered := readPush(t, alice, "message:delivered")
	var delData struct {
		To string `json:"to"`
	}
	require.NoError(t, json.Unmarshal(delivered.Data, &delData))
	assert.Equal(t, bobID, delData.To)

	ack := readAck(t, alice, "m1")
	require.True(t, *ack.OK)
	var res struct {
		Delivered       bool `json:"delivered"`
		RecipientOnline bool `json:"recipientOnline"`
		Message         struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(ack.Data, &res))
	assert.True(t, res.Delivered)
	assert.True(t, res.RecipientOnline)
	assert.Equal(t, "hi bob", res.Message.Content)
}

func TestGroupFlowOverSocket(t *testing.T) {
	_, srv := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	aliceID := joinUser(t, alice, "alice")
	joinUser(t, bob, "bob")

	send(t, alice, "g1", "group:create", map[string]any{"name": "gophers", "description": "go talk"})
	ack := readAck(t, alice, "g1")
	require.True(t, *ack.OK)
	var created struct {
		Group struct {
			ID      string   `json:"id"`
			Name    string   `json:"name"`
			Members []string `json:"members"`
		} `json:"group"`
	}
	require.NoError(t, json.Unmarshal(ack.Data, &created))
	groupID := created.Group.ID
	require.NotEmpty(t, groupID)
	assert.Equal(t, []string{aliceID}, created.Group.Members)

	send(t, bob, "g2", "group:join", map[string]any{"groupId": groupID})
	joinAck := readAck(t, bob, "g2")
	require.True(t, *joinAck.OK)

	notice := readPush(t, alice, "message:received")
	var noticeData struct {
		Message struct {
			Kind    string `json:"kind"`
			Content string `json:"content"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(notice.Data, &noticeData))
	assert.Equal(t, "system", noticeData.Message.Kind)
	assert.Equal(t, "bob joined the group", noticeData.Message.Content)

	updated := readPush(t, alice, "group:updated")
	var updatedData struct {
		Group struct {
			ID string `json:"id"`
		} `json:"group"`
		Members []struct {
			Name string `json:"name"`
		} `json:"members"`
	}
	require.NoError(t, json.Unmarshal(updated.Data, &updatedData))
	assert.Equal(t, groupID, updatedData.Group.ID)
	assert.Len(t, updatedData.Members, 2)

	send(t, bob, "m1", "message:group", map[string]any{"groupId": groupID, "content": "hello"})
	msg := readPush(t, alice, "message:received")
	var msgData struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &msgData))
	assert.Equal(t, "hello", msgData.Message.Content)

	sendAck := readAck(t, bob, "m1")
	require.True(t, *sendAck.OK)
	var sendRes struct {
		DeliveredTo []string `json:"deliveredTo"`
	}
	require.NoError(t, json.Unmarshal(sendAck.Data, &sendRes))
	assert.Equal(t, []string{aliceID}, sendRes.DeliveredTo)
}

func TestHistoryPaginationOverSocket(t *testing.T) {
	_, srv := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	joinUser(t, alice, "alice")
	bobID := joinUser(t, bob, "bob")

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("m%d", i)
		send(t, alice, id, "message:private", map[string]any{"to": bobID, "content": fmt.Sprintf("msg %d", i)})
		ack := readAck(t, alice, id)
		require.True(t, *ack.OK)
	}

	send(t, alice, "h1", "messages:get", map[string]any{"userId": bobID, "limit": 1})
	ack := readAck(t, alice, "h1")
	require.True(t, *ack.OK)
	var hist struct {
		Messages []struct {
			Content   string    `json:"content"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(ack.Data, &hist))
	require.Len(t, hist.Messages, 1)
	assert.Equal(t, "msg 2", hist.Messages[0].Content)

	send(t, alice, "h2", "messages:more", map[string]any{"userId": bobID, "before": hist.Messages[0].Timestamp, "limit": 10})
	ack = readAck(t, alice, "h2")
	require.True(t, *ack.OK)
	require.NoError(t, json.Unmarshal(ack.Data, &hist))
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, "msg 0", hist.Messages[0].Content)
	assert.Equal(t, "msg 1", hist.Messages[1].Content)
}

func TestTypingSignalsOverSocket(t *testing.T) {
	_, srv := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	aliceID := joinUser(t, alice, "alice")
	bobID := joinUser(t, bob, "bob")

	send(t, alice, "t1", "typing:start", map[string]any{"userId": bobID})
	typing := readPush(t, bob, "user:typing")
	var data struct {
		UserID  string `json:"userId"`
		Private bool   `json:"private"`
		Typing  bool   `json:"isTyping"`
	}
	require.NoError(t, json.Unmarshal(typing.Data, &data))
	assert.Equal(t, aliceID, data.UserID)
	assert.True(t, data.Private)
	assert.True(t, data.Typing)

	send(t, alice, "t2", "typing:stop", map[string]any{"userId": bobID})
	typing = readPush(t, bob, "user:typing")
	require.NoError(t, json.Unmarshal(typing.Data, &data))
	assert.False(t, data.Typing)
}

func TestAckErrors(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, "1", "group:create", map[string]any{"name": "g"})
	ack := readAck(t, conn, "1")
	require.False(t, *ack.OK)
	assert.Equal(t, "not authenticated", ack.Error)

	send(t, conn, "2", "bogus:event", nil)
	ack = readAck(t, conn, "2")
	require.False(t, *ack.OK)
	assert.Equal(t, "unknown event", ack.Error)

	// messages:more without a cursor never reaches the engine.
	send(t, conn, "3", "messages:more", map[string]any{"userId": "x"})
	ack = readAck(t, conn, "3")
	require.False(t, *ack.OK)
	assert.Equal(t, "malformed event", ack.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f := readFrame(t, conn)
	require.NotNil(t, f.OK)
	assert.False(t, *f.OK)
	assert.Equal(t, "malformed event", f.Error)
}

func TestDuplicateNameRefused(t *testing.T) {
	_, srv := newTestServer(t)
	alice := dial(t, srv)
	joinUser(t, alice, "alice")

	imposter := dial(t, srv)
	send(t, imposter, "1", "user:join", map[string]any{"name": "alice"})
	ack := readAck(t, imposter, "1")
	require.False(t, *ack.OK)
	assert.Equal(t, "name already taken", ack.Error)
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	engine, srv := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	joinUser(t, alice, "alice")
	bobID := joinUser(t, bob, "bob")

	require.NoError(t, bob.Close())

	left := readPush(t, alice, "user:left")
	var data struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(left.Data, &data))
	assert.Equal(t, bobID, data.UserID)
	assert.Equal(t, "bob", data.Name)

	require.Eventually(t, func() bool {
		return len(engine.OnlineUsers()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUserLeaveEndsSession(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv)
	joinUser(t, conn, "alice")

	send(t, conn, "1", "user:leave", nil)
	ack := readAck(t, conn, "1")
	require.True(t, *ack.OK)

	// The session is terminal; the socket survives but carries no identity.
	send(t, conn, "2", "group:create", map[string]any{"name": "g"})
	ack = readAck(t, conn, "2")
	require.False(t, *ack.OK)
	assert.Equal(t, "not authenticated", ack.Error)
}
