package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mailer-server/internal/email/reconciler"
	"mailer-server/internal/jobs"
	"mailer-server/internal/observability"

	"github.com/hibiken/asynq"
)

// WebhookWorker executes webhook processing jobs
type WebhookWorker struct {
	reconciler *reconciler.Reconciler
	logger     *observability.Logger
}

// NewWebhookWorker creates a new webhook worker
func NewWebhookWorker(reconciler *reconciler.Reconciler, logger *observability.Logger) *WebhookWorker {
	return &WebhookWorker{
		reconciler: reconciler,
		logger:     logger,
	}
}

// ProcessWebhookTask processes a webhook processing task
func (w *WebhookWorker) ProcessWebhookTask(ctx context.Context, task *asynq.Task) error {
	var payload jobs.WebhookProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.logger.Error(ctx, "failed to unmarshal webhook process payload", err)
		return fmt.Errorf("failed to unmarshal webhook process payload: %w", err)
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "webhook_id", Value: payload.WebhookID.String()},
	)

	if err := w.reconciler.Process(ctx, payload.WebhookID); err != nil {
		// Redelivered jobs find the webhook already picked up.
		if errors.Is(err, reconciler.ErrWebhookNotNew) {
			return nil
		}
		w.logger.Error(ctx, "webhook processing job failed", err)
		return err
	}
	return nil
}
