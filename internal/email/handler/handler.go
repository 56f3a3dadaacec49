package handler

import (
	"context"
	"errors"
	"net/http"

	"mailer-server/internal/apierrors"
	"mailer-server/internal/email/processor"
	"mailer-server/internal/email/reconciler"
	"mailer-server/internal/observability"
	"mailer-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MessageReader defines the read operations the handler serves directly
type MessageReader interface {
	GetEmailMessageByID(ctx context.Context, messageID uuid.UUID) (store.EmailMessage, error)
	GetEmailMessageWebhooksByEmailMessage(ctx context.Context, messageID uuid.UUID) ([]store.EmailMessageWebhook, error)
}

// Handler handles email HTTP requests
type Handler struct {
	processor  *processor.EmailProcessor
	reconciler *reconciler.Reconciler
	store      MessageReader
	logger     *observability.Logger
}

// New creates a new Handler
func New(processor *processor.EmailProcessor, reconciler *reconciler.Reconciler, store MessageReader, logger *observability.Logger) *Handler {
	return &Handler{
		processor:  processor,
		reconciler: reconciler,
		store:      store,
		logger:     logger,
	}
}

// HandleProviderWebhook handles POST /api/email/webhook. The endpoint is
// unauthenticated; authenticity is the provider's concern.
func (h *Handler) HandleProviderWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	rawBody, err := c.GetRawData()
	if err != nil {
		h.logger.Error(ctx, "failed to read webhook body", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}

	_, err = h.reconciler.Ingest(ctx, rawBody, c.Request.Header)
	if err != nil {
		if errors.Is(err, reconciler.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
			return
		}
		apierrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"detail": "Created"})
}

// HandleGetMessage handles GET /api/messages/:message_id
func (h *Handler) HandleGetMessage(c *gin.Context) {
	ctx := c.Request.Context()

	messageID, err := uuid.Parse(c.Param("message_id"))
	if err != nil {
		h.logger.Error(ctx, "failed to parse message_id", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message_id"})
		return
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "email_message_id", Value: messageID})

	message, err := h.store.GetEmailMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apierrors.NotFound(c, "message not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, message)
}

// HandleGetMessageWebhooks handles GET /api/messages/:message_id/webhooks
func (h *Handler) HandleGetMessageWebhooks(c *gin.Context) {
	ctx := c.Request.Context()

	messageID, err := uuid.Parse(c.Param("message_id"))
	if err != nil {
		h.logger.Error(ctx, "failed to parse message_id", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message_id"})
		return
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "email_message_id", Value: messageID})

	if _, err := h.store.GetEmailMessageByID(ctx, messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apierrors.NotFound(c, "message not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}

	webhooks, err := h.store.GetEmailMessageWebhooksByEmailMessage(ctx, messageID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, webhooks)
}

// ResendResponse represents the response for an operator resend
type ResendResponse struct {
	Message store.EmailMessage `json:"message"`
	Queued  bool               `json:"queued"`
}

// HandleResendMessage handles POST /api/messages/:message_id/resend. The
// clone is queued with a cooldown allowance of 2 so the original send does
// not suppress it.
func (h *Handler) HandleResendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	messageID, err := uuid.Parse(c.Param("message_id"))
	if err != nil {
		h.logger.Error(ctx, "failed to parse message_id", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message_id"})
		return
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "email_message_id", Value: messageID})

	clone, err := h.processor.Duplicate(ctx, messageID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			apierrors.NotFound(c, "message not found")
		case errors.Is(err, processor.ErrIllegalState):
			apierrors.Conflict(c, "ILLEGAL_STATE", "message cannot be duplicated in its current state")
		default:
			apierrors.InternalError(c, err)
		}
		return
	}

	queued, err := h.processor.Queue(ctx, clone.ID, processor.QueueParams{Allowed: 2})
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}

	clone, err = h.store.GetEmailMessageByID(ctx, clone.ID)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ResendResponse{
		Message: clone,
		Queued:  queued,
	})
}
