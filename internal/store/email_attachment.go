package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const emailAttachmentColumns = `id, email_message_id, filename, mime_type, blob_key, created_at`

// CreateEmailMessageAttachmentParams represents parameters for creating an attachment row
type CreateEmailMessageAttachmentParams struct {
	EmailMessageID uuid.UUID
	Filename       string
	MimeType       string
	BlobKey        string
}

const sqlCreateEmailMessageAttachment = `
INSERT INTO email_message_attachments (email_message_id, filename, mime_type, blob_key)
VALUES ($1, $2, $3, $4)
RETURNING ` + emailAttachmentColumns

// CreateEmailMessageAttachment inserts an attachment row for a message
func (s *Store) CreateEmailMessageAttachment(ctx context.Context, params CreateEmailMessageAttachmentParams) (EmailMessageAttachment, error) {
	var attachment EmailMessageAttachment
	err := s.db.GetContext(ctx, &attachment, sqlCreateEmailMessageAttachment,
		params.EmailMessageID,
		params.Filename,
		params.MimeType,
		params.BlobKey)
	if err != nil {
		s.logger.Error(ctx, "failed to create email message attachment", err)
		return EmailMessageAttachment{}, fmt.Errorf("failed to create email message attachment: %w", err)
	}
	return attachment, nil
}

const sqlGetEmailMessageAttachments = `
SELECT ` + emailAttachmentColumns + `
FROM email_message_attachments
WHERE email_message_id = $1
ORDER BY created_at ASC
`

// GetEmailMessageAttachments retrieves all attachments owned by a message
func (s *Store) GetEmailMessageAttachments(ctx context.Context, messageID uuid.UUID) ([]EmailMessageAttachment, error) {
	var attachments []EmailMessageAttachment
	err := s.db.SelectContext(ctx, &attachments, sqlGetEmailMessageAttachments, messageID)
	if err != nil {
		s.logger.Error(ctx, "failed to get email message attachments", err)
		return nil, fmt.Errorf("failed to get email message attachments: %w", err)
	}
	return attachments, nil
}
