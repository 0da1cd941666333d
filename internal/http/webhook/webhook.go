// Package webhook exposes the orchestrator over HTTP for adapters that
// already speak the normalized message contract. Platform-native event
// translation lives in the adapters themselves.
package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenledger/gardenbot/internal/bot"
	"github.com/greenledger/gardenbot/internal/message"
)

// Handler serves the normalized message endpoint.
type Handler struct {
	orchestrator *bot.Orchestrator
}

// NewHandler constructs a Handler.
func NewHandler(orchestrator *bot.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// Register mounts the webhook routes on the engine.
func (h *Handler) Register(engine *gin.Engine) {
	engine.GET("/healthz", h.Health)
	engine.POST("/v1/messages", h.HandleMessage)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleMessage accepts one normalized inbound message and returns the
// orchestrator's response.
func (h *Handler) HandleMessage(c *gin.Context) {
	var inbound message.Inbound
	if errBind := c.ShouldBindJSON(&inbound); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message payload"})
		return
	}
	if inbound.Platform == "" || inbound.Sender.PlatformID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing platform or sender"})
		return
	}

	response := h.orchestrator.Handle(c.Request.Context(), inbound)
	c.JSON(http.StatusOK, gin.H{"response": response})
}
