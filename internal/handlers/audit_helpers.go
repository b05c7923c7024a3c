package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// userIDFromContext picks up a self-reported user id. There is no
// authentication layer; the value only annotates audit records.
func userIDFromContext(c *gin.Context) *string {
	if header := c.GetHeader("X-User-ID"); header != "" {
		return &header
	}
	return nil
}
