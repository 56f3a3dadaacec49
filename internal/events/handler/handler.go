package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"mailer-server/internal/events"
	"mailer-server/internal/observability"

	"github.com/gin-gonic/gin"
)

const secretHeader = "X-Event-Secret"

// Handler handles event webhook HTTP requests
type Handler struct {
	service *events.Service
	secret  string
	logger  *observability.Logger
}

// New creates a new Handler
func New(service *events.Service, secret string, logger *observability.Logger) *Handler {
	return &Handler{
		service: service,
		secret:  secret,
		logger:  logger,
	}
}

// HandleEventWebhook handles POST /api/events/webhook
func (h *Handler) HandleEventWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	provided := c.GetHeader(secretHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid secret"})
		return
	}

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Error(ctx, "failed to parse event payload", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}

	if _, err := h.service.Emit(ctx, payload); err != nil {
		if errors.Is(err, events.ErrMissingType) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
			return
		}
		h.logger.Error(ctx, "failed to emit event", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"detail": "Created"})
}
