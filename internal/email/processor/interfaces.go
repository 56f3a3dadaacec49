package processor

import (
	"context"

	"mailer-server/internal/clients/mail"
	"mailer-server/internal/store"

	"github.com/google/uuid"
)

// EmailStore defines the database operations required by EmailProcessor
type EmailStore interface {
	CreateEmailMessage(ctx context.Context, params store.CreateEmailMessageParams) (store.EmailMessage, error)
	GetEmailMessageByID(ctx context.Context, messageID uuid.UUID) (store.EmailMessage, error)
	MarkEmailMessageReady(ctx context.Context, messageID uuid.UUID, params store.MarkEmailMessageReadyParams) (store.EmailMessage, error)
	MarkEmailMessagePending(ctx context.Context, messageID uuid.UUID) (store.EmailMessage, error)
	MarkEmailMessageSent(ctx context.Context, messageID uuid.UUID, providerMessageID *string) (store.EmailMessage, error)
	MarkEmailMessageCanceled(ctx context.Context, messageID uuid.UUID, errorMessage string) (store.EmailMessage, error)
	MarkEmailMessageError(ctx context.Context, messageID uuid.UUID, fromStatus, errorMessage string) (store.EmailMessage, error)
	CountRecentSentEmailMessages(ctx context.Context, params store.CountRecentSentEmailMessagesParams) (int, error)
	CreateEmailMessageAttachment(ctx context.Context, params store.CreateEmailMessageAttachmentParams) (store.EmailMessageAttachment, error)
	GetEmailMessageAttachments(ctx context.Context, messageID uuid.UUID) ([]store.EmailMessageAttachment, error)
}

// BlobStore holds attachment payloads under immutable keys
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Copy(ctx context.Context, key string) (string, error)
}

// Provider submits a prepared message to the external delivery provider
type Provider interface {
	Deliver(ctx context.Context, msg mail.Message) (string, error)
}

// Dispatcher enqueues asynchronous work with at-least-once semantics
type Dispatcher interface {
	DispatchSendEmail(ctx context.Context, messageID uuid.UUID) error
}

// SettingsReader resolves runtime flags consulted by the pipeline
type SettingsReader interface {
	GetGlobalBool(ctx context.Context, slug string) (bool, error)
}
