package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"linkrelief/database"
	ws "linkrelief/websocket"
)

// IncidentPublisher fans accepted incidents out to downstream consumers.
// Nil publisher means the message queue is disabled.
type IncidentPublisher interface {
	PublishIncident(incident interface{}) error
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	db        *database.Service
	hub       *ws.Hub
	publisher IncidentPublisher
	maxUpload int64
	startedAt time.Time
}

// NewHandlers creates a new handlers instance. maxUpload caps the size
// of incident photo uploads in bytes.
func NewHandlers(db *database.Service, hub *ws.Hub, publisher IncidentPublisher, maxUpload int64) *Handlers {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handlers{
		db:        db,
		hub:       hub,
		publisher: publisher,
		maxUpload: maxUpload,
		startedAt: time.Now(),
	}
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": message, "data": data})
}

func respondCreated(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, gin.H{"status": "success", "message": message, "data": data})
}

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": "error", "message": message})
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *gin.Context) {
	clients, lastID := h.hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"uptime":           time.Since(h.startedAt).String(),
		"connectedClients": clients,
		"lastBroadcastId":  lastID,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}
