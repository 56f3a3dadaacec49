package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const emailMessageColumns = `id, provider_message_id, sender_name, sender_email, to_name, to_email, reply_to_name, reply_to_email, subject, template_prefix, template_context, message_stream, created_by_id, org_id, status, error_message, sent_at, created_at, updated_at`

// CreateEmailMessageParams represents parameters for creating an email message
type CreateEmailMessageParams struct {
	SenderName      string
	SenderEmail     string
	ToName          string
	ToEmail         string
	ReplyToName     string
	ReplyToEmail    string
	Subject         string
	TemplatePrefix  string
	TemplateContext JSONB
	MessageStream   string
	CreatedByID     *uuid.UUID
	OrgID           *uuid.UUID
}

const sqlCreateEmailMessage = `
INSERT INTO email_messages (sender_name, sender_email, to_name, to_email, reply_to_name, reply_to_email, subject, template_prefix, template_context, message_stream, created_by_id, org_id, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'NEW')
RETURNING ` + emailMessageColumns

// CreateEmailMessage persists a new email message in status NEW
func (s *Store) CreateEmailMessage(ctx context.Context, params CreateEmailMessageParams) (EmailMessage, error) {
	var message EmailMessage
	err := s.db.GetContext(ctx, &message, sqlCreateEmailMessage,
		params.SenderName,
		params.SenderEmail,
		params.ToName,
		params.ToEmail,
		params.ReplyToName,
		params.ReplyToEmail,
		params.Subject,
		params.TemplatePrefix,
		params.TemplateContext,
		params.MessageStream,
		params.CreatedByID,
		params.OrgID)
	if err != nil {
		s.logger.Error(ctx, "failed to create email message", err)
		return EmailMessage{}, fmt.Errorf("failed to create email message: %w", err)
	}
	return message, nil
}

const sqlGetEmailMessageByID = `
SELECT ` + emailMessageColumns + `
FROM email_messages
WHERE id = $1
`

// GetEmailMessageByID retrieves an email message by ID
func (s *Store) GetEmailMessageByID(ctx context.Context, messageID uuid.UUID) (EmailMessage, error) {
	var message EmailMessage
	err := s.db.GetContext(ctx, &message, sqlGetEmailMessageByID, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessage{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get email message", err)
		return EmailMessage{}, fmt.Errorf("failed to get email message: %w", err)
	}
	return message, nil
}

const sqlGetEmailMessageByProviderMessageID = `
SELECT ` + emailMessageColumns + `
FROM email_messages
WHERE provider_message_id = $1
`

// GetEmailMessageByProviderMessageID retrieves the unique email message that
// was assigned the given provider message id on send.
func (s *Store) GetEmailMessageByProviderMessageID(ctx context.Context, providerMessageID string) (EmailMessage, error) {
	var message EmailMessage
	err := s.db.GetContext(ctx, &message, sqlGetEmailMessageByProviderMessageID, providerMessageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessage{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get email message by provider message id", err)
		return EmailMessage{}, fmt.Errorf("failed to get email message by provider message id: %w", err)
	}
	return message, nil
}

// MarkEmailMessageReadyParams carries the prepared field values written
// together with the NEW -> READY transition.
type MarkEmailMessageReadyParams struct {
	SenderName      string
	SenderEmail     string
	ToName          string
	ToEmail         string
	ReplyToName     string
	ReplyToEmail    string
	Subject         string
	TemplateContext JSONB
	MessageStream   string
}

const sqlMarkEmailMessageReady = `
UPDATE email_messages
SET sender_name = $2,
    sender_email = $3,
    to_name = $4,
    to_email = $5,
    reply_to_name = $6,
    reply_to_email = $7,
    subject = $8,
    template_context = $9,
    message_stream = $10,
    status = 'READY',
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND status = 'NEW'
RETURNING ` + emailMessageColumns

// MarkEmailMessageReady transitions a message from NEW to READY, writing the
// prepared field values in the same statement. Returns ErrStatusConflict if
// the message is not in NEW.
func (s *Store) MarkEmailMessageReady(ctx context.Context, messageID uuid.UUID, params MarkEmailMessageReadyParams) (EmailMessage, error) {
	var message EmailMessage
	err := s.db.GetContext(ctx, &message, sqlMarkEmailMessageReady,
		messageID,
		params.SenderName,
		params.SenderEmail,
		params.ToName,
		params.ToEmail,
		params.ReplyToName,
		params.ReplyToEmail,
		params.Subject,
		params.TemplateContext,
		params.MessageStream)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessage{}, s.statusConflictOrNotFound(ctx, messageID)
		}
		s.logger.Error(ctx, "failed to mark email message ready", err)
		return EmailMessage{}, fmt.Errorf("failed to mark email message ready: %w", err)
	}
	return message, nil
}

const sqlMarkEmailMessagePending = `
UPDATE email_messages
SET status = 'PENDING',
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND status = 'READY'
RETURNING ` + emailMessageColumns

// MarkEmailMessagePending transitions a message from READY to PENDING
func (s *Store) MarkEmailMessagePending(ctx context.Context, messageID uuid.UUID) (EmailMessage, error) {
	var message EmailMessage
	err := s.db.GetContext(ctx, &message, sqlMarkEmailMessagePending, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessage{}, s.statusConflictOrNotFound(ctx, messageID)
		}
		s.logger.Error(ctx, "failed to mark email message pending", err)
		return EmailMessage{}, fmt.Errorf("failed to mark email message pending: %w", err)
	}
	return message, nil
}

const sqlMarkEmailMessageSent = `
UPDATE email_messages
SET status = 'SENT',
    provider_message_id = $2,
    sent_at = CURRENT_TIMESTAMP,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + emailMessageColumns

// MarkEmailMessageSent transitions a message from PENDING to SENT, recording
// the provider message id (when one was returned) and the send time.
func (s *Store) MarkEmailMessageSent(ctx context.Context, messageID uuid.UUID, providerMessageID *string) (EmailMessage, error) {
	var message EmailMessage
	err := s.db.GetContext(ctx, &message, sqlMarkEmailMessageSent, messageID, providerMessageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessage{}, s.statusConflictOrNotFound(ctx, messageID)
		}
		s.logger.Error(ctx, "failed to mark email message sent", err)
		return EmailMessage{}, fmt.Errorf("failed to mark email message sent: %w", err)
	}
	return message, nil
}

const sqlMarkEmailMessageCanceled = `
UPDATE email_messages
SET status = 'CANCELED',
    error_message = $2,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND status = 'READY'
RETURNING ` + emailMessageColumns

// MarkEmailMessageCanceled transitions a message from READY to CANCELED
func (s *Store) MarkEmailMessageCanceled(ctx context.Context, messageID uuid.UUID, errorMessage string) (EmailMessage, error) {
	var message EmailMessage
	err := s.db.GetContext(ctx, &message, sqlMarkEmailMessageCanceled, messageID, errorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessage{}, s.statusConflictOrNotFound(ctx, messageID)
		}
		s.logger.Error(ctx, "failed to mark email message canceled", err)
		return EmailMessage{}, fmt.Errorf("failed to mark email message canceled: %w", err)
	}
	return message, nil
}

const sqlMarkEmailMessageError = `
UPDATE email_messages
SET status = 'ERROR',
    error_message = $3,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND status = $2
RETURNING ` + emailMessageColumns

// MarkEmailMessageError transitions a message from the given status to ERROR,
// recording the failure text.
func (s *Store) MarkEmailMessageError(ctx context.Context, messageID uuid.UUID, fromStatus, errorMessage string) (EmailMessage, error) {
	var message EmailMessage
	err := s.db.GetContext(ctx, &message, sqlMarkEmailMessageError, messageID, fromStatus, errorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessage{}, s.statusConflictOrNotFound(ctx, messageID)
		}
		s.logger.Error(ctx, "failed to mark email message error", err)
		return EmailMessage{}, fmt.Errorf("failed to mark email message error: %w", err)
	}
	return message, nil
}

const sqlAdvanceEmailMessageDeliveryStatus = `
UPDATE email_messages
SET status = $2,
    updated_at = CURRENT_TIMESTAMP
WHERE id = $1 AND status IN ('SENT', 'DELIVERED', 'OPENED', 'BOUNCED', 'SPAM')
RETURNING ` + emailMessageColumns

// AdvanceEmailMessageDeliveryStatus moves a sent message to a post-delivery
// status reported by a provider webhook. Messages that never reached SENT are
// left untouched and the call returns ErrStatusConflict.
func (s *Store) AdvanceEmailMessageDeliveryStatus(ctx context.Context, messageID uuid.UUID, status string) (EmailMessage, error) {
	var message EmailMessage
	err := s.db.GetContext(ctx, &message, sqlAdvanceEmailMessageDeliveryStatus, messageID, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailMessage{}, s.statusConflictOrNotFound(ctx, messageID)
		}
		s.logger.Error(ctx, "failed to advance email message delivery status", err)
		return EmailMessage{}, fmt.Errorf("failed to advance email message delivery status: %w", err)
	}
	return message, nil
}

// CountRecentSentEmailMessagesParams filters the cooldown window count. Each
// filter applies only when its flag is set; a filtered created-by of nil
// matches messages without a creator. With no filters set every recent send
// counts.
type CountRecentSentEmailMessagesParams struct {
	Since                time.Time
	FilterCreatedBy      bool
	CreatedByID          *uuid.UUID
	FilterTemplatePrefix bool
	TemplatePrefix       string
	FilterToEmail        bool
	ToEmail              string
}

const sqlCountRecentSentEmailMessages = `
SELECT COUNT(*)
FROM email_messages
WHERE sent_at IS NOT NULL
  AND sent_at >= $1
  AND (NOT $2 OR created_by_id IS NOT DISTINCT FROM $3)
  AND (NOT $4 OR template_prefix = $5)
  AND (NOT $6 OR to_email = $7)
`

// CountRecentSentEmailMessages counts messages sent since the given instant
// that match every applied scope filter.
func (s *Store) CountRecentSentEmailMessages(ctx context.Context, params CountRecentSentEmailMessagesParams) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, sqlCountRecentSentEmailMessages,
		params.Since,
		params.FilterCreatedBy,
		params.CreatedByID,
		params.FilterTemplatePrefix,
		params.TemplatePrefix,
		params.FilterToEmail,
		params.ToEmail)
	if err != nil {
		s.logger.Error(ctx, "failed to count recent sent email messages", err)
		return 0, fmt.Errorf("failed to count recent sent email messages: %w", err)
	}
	return count, nil
}

// statusConflictOrNotFound distinguishes a missing row from a row that exists
// in the wrong status after a compare-and-set update matched nothing.
func (s *Store) statusConflictOrNotFound(ctx context.Context, messageID uuid.UUID) error {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM email_messages WHERE id = $1)`, messageID)
	if err != nil {
		s.logger.Error(ctx, "failed to check email message existence", err)
		return fmt.Errorf("failed to check email message existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}
