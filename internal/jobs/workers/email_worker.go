package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mailer-server/internal/email/processor"
	"mailer-server/internal/jobs"
	"mailer-server/internal/observability"

	"github.com/hibiken/asynq"
)

// EmailWorker executes send jobs under the configured deadline
type EmailWorker struct {
	processor   *processor.EmailProcessor
	sendTimeout time.Duration
	logger      *observability.Logger
}

// NewEmailWorker creates a new email worker
func NewEmailWorker(processor *processor.EmailProcessor, sendTimeout time.Duration, logger *observability.Logger) *EmailWorker {
	return &EmailWorker{
		processor:   processor,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// ProcessEmailSendTask processes an email send task
func (w *EmailWorker) ProcessEmailSendTask(ctx context.Context, task *asynq.Task) error {
	var payload jobs.EmailSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.logger.Error(ctx, "failed to unmarshal email send payload", err)
		return fmt.Errorf("failed to unmarshal email send payload: %w", err)
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_message_id", Value: payload.EmailMessageID.String()},
	)

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	if err := w.processor.Send(sendCtx, payload.EmailMessageID); err != nil {
		// A redelivered job finds the message already past READY.
		if errors.Is(err, processor.ErrIllegalState) {
			w.logger.Warn(ctx, "send job found message in unexpected status; dropping")
			return nil
		}
		w.logger.Error(ctx, "email send job failed", err)
		return err
	}
	return nil
}
