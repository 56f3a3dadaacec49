package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Job type constants. Send jobs are never retried automatically: a lost
// provider response must not duplicate a user-visible email. Webhook
// processing jobs are no-ops on redelivery, so they carry no retries either.
const (
	TypeEmailSend      = "email:send"
	TypeWebhookProcess = "email:webhook:process"
)

// Queue names
const (
	QueueHigh   = "high"
	QueueMedium = "medium"
	QueueLow    = "low"
)

// EmailSendPayload carries the message id for a send job
type EmailSendPayload struct {
	EmailMessageID uuid.UUID `json:"email_message_id"`
}

// NewEmailSendTask creates a new email send task
func NewEmailSendTask(payload EmailSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailSend, data, asynq.Queue(QueueHigh), asynq.MaxRetry(0)), nil
}

// WebhookProcessPayload carries the webhook id for a processing job
type WebhookProcessPayload struct {
	WebhookID uuid.UUID `json:"webhook_id"`
}

// NewWebhookProcessTask creates a new webhook processing task
func NewWebhookProcessTask(payload WebhookProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWebhookProcess, data, asynq.Queue(QueueMedium), asynq.MaxRetry(0)), nil
}
