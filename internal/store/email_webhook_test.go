package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func createTestWebhook(t *testing.T, tdb *TestDB) EmailMessageWebhook {
	t.Helper()
	webhook, err := tdb.Store.CreateEmailMessageWebhook(context.Background(), CreateEmailMessageWebhookParams{
		Body:    JSONB{"RecordType": "Delivery", "MessageID": "prov-123"},
		Headers: StringMap{"User-Agent": "provider/1.0"},
	})
	if err != nil {
		t.Fatalf("failed to create email message webhook: %v", err)
	}
	return webhook
}

func TestStore_EmailMessageWebhookLifecycle(t *testing.T) {
	testDB := SetupTestDB(t)
	ctx := context.Background()

	t.Run("preserves the raw body and headers", func(t *testing.T) {
		testDB.Truncate(t)
		webhook := createTestWebhook(t, testDB)
		if webhook.Status != EmailWebhookStatusNew {
			t.Fatalf("Status = %v, want NEW", webhook.Status)
		}

		fetched, err := testDB.Store.GetEmailMessageWebhookByID(ctx, webhook.ID)
		if err != nil {
			t.Fatalf("GetEmailMessageWebhookByID() error = %v", err)
		}
		if fetched.Body["RecordType"] != "Delivery" {
			t.Errorf("Body[RecordType] = %v, want Delivery", fetched.Body["RecordType"])
		}
		if fetched.Headers["User-Agent"] != "provider/1.0" {
			t.Errorf("Headers[User-Agent] = %v, want provider/1.0", fetched.Headers["User-Agent"])
		}
	})

	t.Run("only the first pickup wins", func(t *testing.T) {
		testDB.Truncate(t)
		webhook := createTestWebhook(t, testDB)

		pending, err := testDB.Store.MarkEmailMessageWebhookPending(ctx, webhook.ID)
		if err != nil {
			t.Fatalf("MarkEmailMessageWebhookPending() error = %v", err)
		}
		if pending.Status != EmailWebhookStatusPending {
			t.Errorf("Status = %v, want PENDING", pending.Status)
		}

		_, err = testDB.Store.MarkEmailMessageWebhookPending(ctx, webhook.ID)
		if !errors.Is(err, ErrStatusConflict) {
			t.Errorf("MarkEmailMessageWebhookPending() error = %v, want ErrStatusConflict", err)
		}
	})

	t.Run("a missing webhook is not found", func(t *testing.T) {
		testDB.Truncate(t)

		_, err := testDB.Store.GetEmailMessageWebhookByID(ctx, uuid.New())
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetEmailMessageWebhookByID() error = %v, want ErrNotFound", err)
		}

		_, err = testDB.Store.MarkEmailMessageWebhookPending(ctx, uuid.New())
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("MarkEmailMessageWebhookPending() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("correlation links the webhook to its message", func(t *testing.T) {
		testDB.Truncate(t)
		message := createTestEmailMessage(t, testDB, "user@example.com")
		webhook := createTestWebhook(t, testDB)
		if _, err := testDB.Store.MarkEmailMessageWebhookPending(ctx, webhook.ID); err != nil {
			t.Fatalf("MarkEmailMessageWebhookPending() error = %v", err)
		}

		webhookType := EmailWebhookTypeDelivery
		correlated, err := testDB.Store.SetEmailMessageWebhookCorrelation(ctx, webhook.ID, &webhookType, &message.ID)
		if err != nil {
			t.Fatalf("SetEmailMessageWebhookCorrelation() error = %v", err)
		}
		if correlated.Type == nil || *correlated.Type != EmailWebhookTypeDelivery {
			t.Errorf("Type = %v, want Delivery", correlated.Type)
		}

		processed, err := testDB.Store.MarkEmailMessageWebhookProcessed(ctx, webhook.ID)
		if err != nil {
			t.Fatalf("MarkEmailMessageWebhookProcessed() error = %v", err)
		}
		if processed.Status != EmailWebhookStatusProcessed {
			t.Errorf("Status = %v, want PROCESSED", processed.Status)
		}

		webhooks, err := testDB.Store.GetEmailMessageWebhooksByEmailMessage(ctx, message.ID)
		if err != nil {
			t.Fatalf("GetEmailMessageWebhooksByEmailMessage() error = %v", err)
		}
		if len(webhooks) != 1 || webhooks[0].ID != webhook.ID {
			t.Errorf("webhooks = %v, want the correlated webhook", webhooks)
		}
	})

	t.Run("an error note is recorded", func(t *testing.T) {
		testDB.Truncate(t)
		webhook := createTestWebhook(t, testDB)

		failed, err := testDB.Store.MarkEmailMessageWebhookError(ctx, webhook.ID, "no type-specific timestamp")
		if err != nil {
			t.Fatalf("MarkEmailMessageWebhookError() error = %v", err)
		}
		if failed.Status != EmailWebhookStatusError {
			t.Errorf("Status = %v, want ERROR", failed.Status)
		}
		if failed.Note == nil || *failed.Note != "no type-specific timestamp" {
			t.Errorf("Note = %v, want the recorded note", failed.Note)
		}
	})
}
