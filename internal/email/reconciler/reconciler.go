package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mailer-server/internal/observability"
	"mailer-server/internal/store"

	"github.com/google/uuid"
)

var (
	// ErrInvalidPayload is returned when a posted body is not a JSON object
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrWebhookNotNew is returned when a processing job finds the webhook
	// already picked up. Redelivered jobs treat it as a no-op.
	ErrWebhookNotNew = errors.New("webhook is not in status NEW")
)

// Provider body fields consulted during processing
const (
	bodyKeyRecordType = "RecordType"
	bodyKeyMessageID  = "MessageID"
)

// webhookStatusByType maps provider record types to post-delivery message statuses
var webhookStatusByType = map[string]string{
	store.EmailWebhookTypeDelivery:      store.EmailMessageStatusDelivered,
	store.EmailWebhookTypeOpen:          store.EmailMessageStatusOpened,
	store.EmailWebhookTypeBounce:        store.EmailMessageStatusBounced,
	store.EmailWebhookTypeSpamComplaint: store.EmailMessageStatusSpam,
}

// webhookTimestampKeyByType maps provider record types to the body field
// carrying that type's event timestamp. Bounce and SpamComplaint each carry
// their own BouncedAt.
var webhookTimestampKeyByType = map[string]string{
	store.EmailWebhookTypeDelivery:      "DeliveredAt",
	store.EmailWebhookTypeOpen:          "ReceivedAt",
	store.EmailWebhookTypeBounce:        "BouncedAt",
	store.EmailWebhookTypeSpamComplaint: "BouncedAt",
}

// WebhookStore defines the database operations required by Reconciler
type WebhookStore interface {
	CreateEmailMessageWebhook(ctx context.Context, params store.CreateEmailMessageWebhookParams) (store.EmailMessageWebhook, error)
	MarkEmailMessageWebhookPending(ctx context.Context, webhookID uuid.UUID) (store.EmailMessageWebhook, error)
	SetEmailMessageWebhookCorrelation(ctx context.Context, webhookID uuid.UUID, webhookType *string, emailMessageID *uuid.UUID) (store.EmailMessageWebhook, error)
	MarkEmailMessageWebhookProcessed(ctx context.Context, webhookID uuid.UUID) (store.EmailMessageWebhook, error)
	MarkEmailMessageWebhookError(ctx context.Context, webhookID uuid.UUID, note string) (store.EmailMessageWebhook, error)
	GetEmailMessageWebhooksByEmailMessage(ctx context.Context, messageID uuid.UUID) ([]store.EmailMessageWebhook, error)
	GetEmailMessageByProviderMessageID(ctx context.Context, providerMessageID string) (store.EmailMessage, error)
	AdvanceEmailMessageDeliveryStatus(ctx context.Context, messageID uuid.UUID, status string) (store.EmailMessage, error)
}

// Dispatcher enqueues webhook processing jobs
type Dispatcher interface {
	DispatchProcessWebhook(ctx context.Context, webhookID uuid.UUID) error
}

// Reconciler persists provider callbacks and applies their delivery statuses
// back onto the originating messages.
type Reconciler struct {
	store      WebhookStore
	dispatcher Dispatcher
	logger     *observability.Logger
}

// New creates a new Reconciler
func New(store WebhookStore, dispatcher Dispatcher, logger *observability.Logger) *Reconciler {
	return &Reconciler{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Ingest validates a posted callback, persists it verbatim with its
// string-typed headers, and enqueues a processing job. Bodies that are not
// JSON objects are rejected with ErrInvalidPayload and nothing is persisted.
func (r *Reconciler) Ingest(ctx context.Context, rawBody []byte, headers map[string][]string) (store.EmailMessageWebhook, error) {
	body := store.JSONB{}
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return store.EmailMessageWebhook{}, fmt.Errorf("body is not a JSON object: %w", ErrInvalidPayload)
	}

	headerMap := store.StringMap{}
	for key, values := range headers {
		if len(values) > 0 {
			headerMap[key] = values[0]
		}
	}

	webhook, err := r.store.CreateEmailMessageWebhook(ctx, store.CreateEmailMessageWebhookParams{
		Body:    body,
		Headers: headerMap,
	})
	if err != nil {
		return store.EmailMessageWebhook{}, err
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "webhook_id", Value: webhook.ID.String()},
	)
	if err := r.dispatcher.DispatchProcessWebhook(ctx, webhook.ID); err != nil {
		r.logger.Error(ctx, "failed to dispatch webhook processing job", err)
		return store.EmailMessageWebhook{}, err
	}

	r.logger.Info(ctx, "provider webhook ingested")
	return webhook, nil
}

// Process derives the webhook's type, correlates it to a message by provider
// message id, and advances the message's delivery status when this webhook
// carries the highest type-specific timestamp among its peers. Processing
// failures are stored on the webhook and do not fail the job.
func (r *Reconciler) Process(ctx context.Context, webhookID uuid.UUID) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "webhook_id", Value: webhookID.String()},
	)

	webhook, err := r.store.MarkEmailMessageWebhookPending(ctx, webhookID)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			r.logger.Info(ctx, "webhook already picked up; skipping")
			return ErrWebhookNotNew
		}
		return err
	}

	if err := r.process(ctx, webhook); err != nil {
		r.logger.Error(ctx, "webhook processing failed", err)
		note := fmt.Sprintf("processing failed: %v", err)
		if _, markErr := r.store.MarkEmailMessageWebhookError(ctx, webhookID, note); markErr != nil {
			r.logger.Error(ctx, "failed to record webhook processing failure", markErr)
			return markErr
		}
		return nil
	}

	if _, err := r.store.MarkEmailMessageWebhookProcessed(ctx, webhookID); err != nil {
		return err
	}
	r.logger.Info(ctx, "provider webhook processed")
	return nil
}

func (r *Reconciler) process(ctx context.Context, webhook store.EmailMessageWebhook) error {
	var webhookType *string
	if recordType, ok := webhook.Body[bodyKeyRecordType].(string); ok && recordType != "" {
		webhookType = &recordType
	}

	var messageID *uuid.UUID
	if providerMessageID, ok := webhook.Body[bodyKeyMessageID].(string); ok && providerMessageID != "" {
		message, err := r.store.GetEmailMessageByProviderMessageID(ctx, providerMessageID)
		if err == nil {
			messageID = &message.ID
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	webhook, err := r.store.SetEmailMessageWebhookCorrelation(ctx, webhook.ID, webhookType, messageID)
	if err != nil {
		return err
	}

	if webhookType == nil || messageID == nil {
		return nil
	}
	status, recognized := webhookStatusByType[*webhookType]
	if !recognized {
		return nil
	}

	timestamp, ok := webhookTimestamp(webhook)
	if !ok {
		r.logger.Warn(ctx, "webhook carries no usable event timestamp; not advancing message")
		return nil
	}

	peers, err := r.store.GetEmailMessageWebhooksByEmailMessage(ctx, *messageID)
	if err != nil {
		return err
	}
	for _, peer := range peers {
		if peer.ID == webhook.ID {
			continue
		}
		peerTimestamp, ok := webhookTimestamp(peer)
		// A timestamp tie does not block: re-advancing to the same status is
		// a no-op, and a duplicate delivery of the same body must not stall.
		if ok && peerTimestamp.After(timestamp) {
			r.logger.Info(ctx, "newer webhook exists for message; not advancing")
			return nil
		}
	}

	if _, err := r.store.AdvanceEmailMessageDeliveryStatus(ctx, *messageID, status); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			r.logger.Info(ctx, "message never reached SENT; not advancing")
			return nil
		}
		return err
	}
	return nil
}

// webhookTimestamp reads the type-specific event timestamp from a webhook body
func webhookTimestamp(webhook store.EmailMessageWebhook) (time.Time, bool) {
	if webhook.Type == nil {
		return time.Time{}, false
	}
	key, ok := webhookTimestampKeyByType[*webhook.Type]
	if !ok {
		return time.Time{}, false
	}
	raw, ok := webhook.Body[key].(string)
	if !ok {
		return time.Time{}, false
	}
	timestamp, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return timestamp, true
}
