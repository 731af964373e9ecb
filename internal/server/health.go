package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// handleHealth reports liveness plus a few cheap gauges
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(startTime).Seconds()),
		"active_tasks":   len(s.tasks.ListActive()),
		"workflows":      len(s.engine.Names()),
		"subscribers":    s.hub.SubscriberCount(),
	})
}
