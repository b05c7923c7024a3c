package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-engine/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints. They are off unless
// explicitly enabled in configuration.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	// Emits one audit record end to end so the broker path can be checked
	// without driving chat traffic. Optional ?text= overrides the payload.
	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		text := c.DefaultQuery("text", "audit self-test")
		requestID := requestIDFromContext(c)
		emitter.Emit(c.Request.Context(), "info", text, requestID, userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestID})
	})
}
