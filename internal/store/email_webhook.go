package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const emailWebhookColumns = `id, body, headers, type, email_message_id, status, note, received_at, created_at`

// CreateEmailMessageWebhookParams represents parameters for persisting a raw provider callback
type CreateEmailMessageWebhookParams struct {
	Body    JSONB
	Headers StringMap
}

const sqlCreateEmailMessageWebhook = `
INSERT INTO email_message_webhooks (body, headers, status)
VALUES ($1, $2, 'NEW')
RETURNING ` + emailWebhookColumns

// CreateEmailMessageWebhook persists a provider callback verbatim in status NEW
func (s *Store) CreateEmailMessageWebhook(ctx context.Context, params CreateEmailMessageWebhookParams) (EmailMessageWebhook, error) {
	var webhook EmailMessageWebhook
	err := s.db.GetContext(ctx, &webhook, sqlCreateEmailMessageWebhook, params.Body, params.Headers)
	if err != nil {
		s.logger.Error(ctx, "failed to create email message webhook", err)
		return EmailMessageWebhook{}, fmt.Errorf("failed to create email message webhook: %w", err)
	}
	return webhook, nil
}

const sqlGetEmailMessageWebhookByID = `
SELECT ` + emailWebhookColumns + `
FROM email_message_webhooks
WHERE id = $1
`

// GetEmailMessageWebhookByID retrieves a webhook by ID
func (s *Store) GetEmailMessageWebhookByID(ctx context.Context, webhookID uuid.UUID) (EmailMessageWebhook, error) {
	var webhook EmailMessageWebhook
	err := s.db.GetContext(ctx, &webhook, sqlGetEmailMessageWebhookByID, webhookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessageWebhook{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get email message webhook", err)
		return EmailMessageWebhook{}, fmt.Errorf("failed to get email message webhook: %w", err)
	}
	return webhook, nil
}

const sqlMarkEmailMessageWebhookPending = `
UPDATE email_message_webhooks
SET status = 'PENDING'
WHERE id = $1 AND status = 'NEW'
RETURNING ` + emailWebhookColumns

// MarkEmailMessageWebhookPending transitions a webhook from NEW to PENDING.
// Returns ErrStatusConflict when the webhook has already been picked up, which
// makes redelivered processing jobs harmless.
func (s *Store) MarkEmailMessageWebhookPending(ctx context.Context, webhookID uuid.UUID) (EmailMessageWebhook, error) {
	var webhook EmailMessageWebhook
	err := s.db.GetContext(ctx, &webhook, sqlMarkEmailMessageWebhookPending, webhookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			checkErr := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM email_message_webhooks WHERE id = $1)`, webhookID)
			if checkErr != nil {
				s.logger.Error(ctx, "failed to check email message webhook existence", checkErr)
				return EmailMessageWebhook{}, fmt.Errorf("failed to check email message webhook existence: %w", checkErr)
			}
			if !exists {
				return EmailMessageWebhook{}, ErrNotFound
			}
			return EmailMessageWebhook{}, ErrStatusConflict
		}
		s.logger.Error(ctx, "failed to mark email message webhook pending", err)
		return EmailMessageWebhook{}, fmt.Errorf("failed to mark email message webhook pending: %w", err)
	}
	return webhook, nil
}

const sqlSetEmailMessageWebhookCorrelation = `
UPDATE email_message_webhooks
SET type = $2,
    email_message_id = $3
WHERE id = $1
RETURNING ` + emailWebhookColumns

// SetEmailMessageWebhookCorrelation records the derived type and the message
// the webhook refers to. The raw body is never touched.
func (s *Store) SetEmailMessageWebhookCorrelation(ctx context.Context, webhookID uuid.UUID, webhookType *string, emailMessageID *uuid.UUID) (EmailMessageWebhook, error) {
	var webhook EmailMessageWebhook
	err := s.db.GetContext(ctx, &webhook, sqlSetEmailMessageWebhookCorrelation, webhookID, webhookType, emailMessageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessageWebhook{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to set email message webhook correlation", err)
		return EmailMessageWebhook{}, fmt.Errorf("failed to set email message webhook correlation: %w", err)
	}
	return webhook, nil
}

const sqlMarkEmailMessageWebhookProcessed = `
UPDATE email_message_webhooks
SET status = 'PROCESSED'
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + emailWebhookColumns

// MarkEmailMessageWebhookProcessed transitions a webhook from PENDING to PROCESSED
func (s *Store) MarkEmailMessageWebhookProcessed(ctx context.Context, webhookID uuid.UUID) (EmailMessageWebhook, error) {
	var webhook EmailMessageWebhook
	err := s.db.GetContext(ctx, &webhook, sqlMarkEmailMessageWebhookProcessed, webhookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessageWebhook{}, ErrStatusConflict
		}
		s.logger.Error(ctx, "failed to mark email message webhook processed", err)
		return EmailMessageWebhook{}, fmt.Errorf("failed to mark email message webhook processed: %w", err)
	}
	return webhook, nil
}

const sqlMarkEmailMessageWebhookError = `
UPDATE email_message_webhooks
SET status = 'ERROR',
    note = $2
WHERE id = $1
RETURNING ` + emailWebhookColumns

// MarkEmailMessageWebhookError moves a webhook to ERROR with a textual note
// for operator inspection.
func (s *Store) MarkEmailMessageWebhookError(ctx context.Context, webhookID uuid.UUID, note string) (EmailMessageWebhook, error) {
	var webhook EmailMessageWebhook
	err := s.db.GetContext(ctx, &webhook, sqlMarkEmailMessageWebhookError, webhookID, note)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessageWebhook{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to mark email message webhook error", err)
		return EmailMessageWebhook{}, fmt.Errorf("failed to mark email message webhook error: %w", err)
	}
	return webhook, nil
}

const sqlGetEmailMessageWebhooksByEmailMessage = `
SELECT ` + emailWebhookColumns + `
FROM email_message_webhooks
WHERE email_message_id = $1
ORDER BY received_at ASC
`

// GetEmailMessageWebhooksByEmailMessage retrieves all webhooks correlated to a message
func (s *Store) GetEmailMessageWebhooksByEmailMessage(ctx context.Context, messageID uuid.UUID) ([]EmailMessageWebhook, error) {
	var webhooks []EmailMessageWebhook
	err := s.db.SelectContext(ctx, &webhooks, sqlGetEmailMessageWebhooksByEmailMessage, messageID)
	if err != nil {
		s.logger.Error(ctx, "failed to get email message webhooks by message", err)
		return nil, fmt.Errorf("failed to get email message webhooks by message: %w", err)
	}
	return webhooks, nil
}
