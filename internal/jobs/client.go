package jobs

import (
	"context"
	"fmt"

	"mailer-server/internal/observability"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Client handles enqueueing background jobs
type Client struct {
	client *asynq.Client
	logger *observability.Logger
}

// NewClient creates a new job client
func NewClient(redisAddr, redisPassword string, logger *observability.Logger) *Client {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword})
	return &Client{
		client: client,
		logger: logger,
	}
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}

// DispatchSendEmail enqueues a send job for a message
func (c *Client) DispatchSendEmail(ctx context.Context, messageID uuid.UUID) error {
	task, err := NewEmailSendTask(EmailSendPayload{EmailMessageID: messageID})
	if err != nil {
		c.logger.Error(ctx, "failed to create email send task", err)
		return fmt.Errorf("failed to create email send task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error(ctx, "failed to enqueue email send task", err)
		return fmt.Errorf("failed to enqueue email send task: %w", err)
	}

	c.logger.Info(ctx, fmt.Sprintf("enqueued email send task: %s (queue: %s)", info.ID, info.Queue))
	return nil
}

// DispatchProcessWebhook enqueues a processing job for an ingested webhook
func (c *Client) DispatchProcessWebhook(ctx context.Context, webhookID uuid.UUID) error {
	task, err := NewWebhookProcessTask(WebhookProcessPayload{WebhookID: webhookID})
	if err != nil {
		c.logger.Error(ctx, "failed to create webhook process task", err)
		return fmt.Errorf("failed to create webhook process task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error(ctx, "failed to enqueue webhook process task", err)
		return fmt.Errorf("failed to enqueue webhook process task: %w", err)
	}

	c.logger.Info(ctx, fmt.Sprintf("enqueued webhook process task: %s (queue: %s)", info.ID, info.Queue))
	return nil
}
