package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-engine/internal/chat"
)

// QueryHandler serves the read-only query surface over the engine's pull
// accessors. Responses are raw canonical records: they carry no viewer
// identity, so deletion markers appear as stored.
type QueryHandler struct {
	engine *chat.Service
}

// NewQueryHandler builds a QueryHandler.
func NewQueryHandler(engine *chat.Service) *QueryHandler {
	return &QueryHandler{engine: engine}
}

// Health reports liveness and the instance label.
func (h *QueryHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "instance": h.engine.Instance()})
}

// ListUsers returns every user this instance has seen, online or not.
func (h *QueryHandler) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.engine.Users()})
}

// ListOnlineUsers returns the users currently online.
func (h *QueryHandler) ListOnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.engine.OnlineUsers()})
}

// ListGroups returns the live groups.
func (h *QueryHandler) ListGroups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": h.engine.Groups()})
}

// GetGroup returns one group by id.
func (h *QueryHandler) GetGroup(c *gin.Context) {
	group, ok := h.engine.Group(c.Param("group_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// GetGroupMembers returns the member users of a group.
func (h *QueryHandler) GetGroupMembers(c *gin.Context) {
	members, ok := h.engine.GroupMembers(c.Param("group_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// GetGroupMessages returns a group's conversation log in order, optionally
// bounded to the most recent N entries.
func (h *QueryHandler) GetGroupMessages(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	msgs, found := h.engine.GroupMessages(c.Param("group_id"), limit)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetPrivateMessages returns the direct log between two users. The canonical
// pairwise key makes parameter order irrelevant.
func (h *QueryHandler) GetPrivateMessages(c *gin.Context) {
	user1 := c.Query("user1")
	user2 := c.Query("user2")
	if user1 == "" || user2 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user1 and user2 are required"})
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": h.engine.PrivateMessages(user1, user2, limit)})
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	return limit, true
}
