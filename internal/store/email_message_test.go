package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func createTestEmailMessage(t *testing.T, tdb *TestDB, toEmail string) EmailMessage {
	t.Helper()
	message, err := tdb.Store.CreateEmailMessage(context.Background(), CreateEmailMessageParams{
		ToEmail:         toEmail,
		TemplatePrefix:  "welcome",
		TemplateContext: JSONB{"name": "Ana"},
	})
	if err != nil {
		t.Fatalf("failed to create email message: %v", err)
	}
	return message
}

// insertSentTestMessage seeds a SENT row directly so tests control sent_at.
func insertSentTestMessage(t *testing.T, tdb *TestDB, toEmail, templatePrefix string, createdByID *uuid.UUID, sentAt time.Time) uuid.UUID {
	t.Helper()
	messageID := uuid.New()
	tdb.ExecSQL(t, `
		INSERT INTO email_messages (id, to_email, template_prefix, created_by_id, status, sent_at)
		VALUES ($1, $2, $3, $4, 'SENT', $5)`,
		messageID, toEmail, templatePrefix, createdByID, sentAt)
	return messageID
}

func TestStore_EmailMessageTransitions(t *testing.T) {
	testDB := SetupTestDB(t)
	ctx := context.Background()

	t.Run("full pipeline reaches SENT", func(t *testing.T) {
		testDB.Truncate(t)
		message := createTestEmailMessage(t, testDB, "user@example.com")
		if message.Status != EmailMessageStatusNew {
			t.Fatalf("Status = %v, want NEW", message.Status)
		}

		ready, err := testDB.Store.MarkEmailMessageReady(ctx, message.ID, MarkEmailMessageReadyParams{
			SenderEmail:     "no-reply@example.com",
			ToEmail:         message.ToEmail,
			Subject:         "Welcome, Ana",
			TemplateContext: JSONB{"name": "Ana", "subject": "Welcome, Ana"},
			MessageStream:   "outbound",
		})
		if err != nil {
			t.Fatalf("MarkEmailMessageReady() error = %v", err)
		}
		if ready.Status != EmailMessageStatusReady {
			t.Errorf("Status = %v, want READY", ready.Status)
		}
		if ready.Subject != "Welcome, Ana" {
			t.Errorf("Subject = %v, want Welcome, Ana", ready.Subject)
		}

		pending, err := testDB.Store.MarkEmailMessagePending(ctx, message.ID)
		if err != nil {
			t.Fatalf("MarkEmailMessagePending() error = %v", err)
		}
		if pending.Status != EmailMessageStatusPending {
			t.Errorf("Status = %v, want PENDING", pending.Status)
		}

		providerMessageID := "prov-123"
		sent, err := testDB.Store.MarkEmailMessageSent(ctx, message.ID, &providerMessageID)
		if err != nil {
			t.Fatalf("MarkEmailMessageSent() error = %v", err)
		}
		if sent.Status != EmailMessageStatusSent {
			t.Errorf("Status = %v, want SENT", sent.Status)
		}
		if sent.SentAt == nil {
			t.Error("SentAt = nil, want a timestamp")
		}
		if sent.ProviderMessageID == nil || *sent.ProviderMessageID != providerMessageID {
			t.Errorf("ProviderMessageID = %v, want %v", sent.ProviderMessageID, providerMessageID)
		}

		byProvider, err := testDB.Store.GetEmailMessageByProviderMessageID(ctx, providerMessageID)
		if err != nil {
			t.Fatalf("GetEmailMessageByProviderMessageID() error = %v", err)
		}
		if byProvider.ID != message.ID {
			t.Errorf("ID = %v, want %v", byProvider.ID, message.ID)
		}
	})

	t.Run("a message in the wrong status is a conflict", func(t *testing.T) {
		testDB.Truncate(t)
		message := createTestEmailMessage(t, testDB, "user@example.com")

		_, err := testDB.Store.MarkEmailMessagePending(ctx, message.ID)
		if !errors.Is(err, ErrStatusConflict) {
			t.Errorf("MarkEmailMessagePending() error = %v, want ErrStatusConflict", err)
		}

		_, err = testDB.Store.MarkEmailMessageCanceled(ctx, message.ID, "Cooling down")
		if !errors.Is(err, ErrStatusConflict) {
			t.Errorf("MarkEmailMessageCanceled() error = %v, want ErrStatusConflict", err)
		}
	})

	t.Run("a missing message is not found", func(t *testing.T) {
		testDB.Truncate(t)

		_, err := testDB.Store.MarkEmailMessagePending(ctx, uuid.New())
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("MarkEmailMessagePending() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("an error transition records the failure text", func(t *testing.T) {
		testDB.Truncate(t)
		message := createTestEmailMessage(t, testDB, "user@example.com")
		if _, err := testDB.Store.MarkEmailMessageReady(ctx, message.ID, MarkEmailMessageReadyParams{ToEmail: message.ToEmail}); err != nil {
			t.Fatalf("MarkEmailMessageReady() error = %v", err)
		}
		if _, err := testDB.Store.MarkEmailMessagePending(ctx, message.ID); err != nil {
			t.Fatalf("MarkEmailMessagePending() error = %v", err)
		}

		failed, err := testDB.Store.MarkEmailMessageError(ctx, message.ID, EmailMessageStatusPending, "timeout")
		if err != nil {
			t.Fatalf("MarkEmailMessageError() error = %v", err)
		}
		if failed.Status != EmailMessageStatusError {
			t.Errorf("Status = %v, want ERROR", failed.Status)
		}
		if failed.ErrorMessage == nil || *failed.ErrorMessage != "timeout" {
			t.Errorf("ErrorMessage = %v, want timeout", failed.ErrorMessage)
		}
	})
}

func TestStore_AdvanceEmailMessageDeliveryStatus(t *testing.T) {
	testDB := SetupTestDB(t)
	ctx := context.Background()

	t.Run("advances a sent message", func(t *testing.T) {
		testDB.Truncate(t)
		messageID := insertSentTestMessage(t, testDB, "user@example.com", "welcome", nil, time.Now())

		message, err := testDB.Store.AdvanceEmailMessageDeliveryStatus(ctx, messageID, EmailMessageStatusDelivered)
		if err != nil {
			t.Fatalf("AdvanceEmailMessageDeliveryStatus() error = %v", err)
		}
		if message.Status != EmailMessageStatusDelivered {
			t.Errorf("Status = %v, want DELIVERED", message.Status)
		}
	})

	t.Run("never advances a message that did not reach SENT", func(t *testing.T) {
		testDB.Truncate(t)
		message := createTestEmailMessage(t, testDB, "user@example.com")

		_, err := testDB.Store.AdvanceEmailMessageDeliveryStatus(ctx, message.ID, EmailMessageStatusDelivered)
		if !errors.Is(err, ErrStatusConflict) {
			t.Errorf("AdvanceEmailMessageDeliveryStatus() error = %v, want ErrStatusConflict", err)
		}

		unchanged, err := testDB.Store.GetEmailMessageByID(ctx, message.ID)
		if err != nil {
			t.Fatalf("GetEmailMessageByID() error = %v", err)
		}
		if unchanged.Status != EmailMessageStatusNew {
			t.Errorf("Status = %v, want NEW", unchanged.Status)
		}
	})
}

func TestStore_CountRecentSentEmailMessages(t *testing.T) {
	testDB := SetupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	since := now.Add(-180 * time.Second)

	t.Run("no filters count every send in the window", func(t *testing.T) {
		testDB.Truncate(t)
		insertSentTestMessage(t, testDB, "a@example.com", "welcome", nil, now.Add(-10*time.Second))
		insertSentTestMessage(t, testDB, "b@example.com", "reset", nil, now.Add(-170*time.Second))
		insertSentTestMessage(t, testDB, "c@example.com", "welcome", nil, since.Add(-time.Second))

		count, err := testDB.Store.CountRecentSentEmailMessages(ctx, CountRecentSentEmailMessagesParams{Since: since})
		if err != nil {
			t.Fatalf("CountRecentSentEmailMessages() error = %v", err)
		}
		if count != 2 {
			t.Errorf("count = %v, want 2", count)
		}
	})

	t.Run("the window start is inclusive", func(t *testing.T) {
		testDB.Truncate(t)
		insertSentTestMessage(t, testDB, "a@example.com", "welcome", nil, since)

		count, err := testDB.Store.CountRecentSentEmailMessages(ctx, CountRecentSentEmailMessagesParams{Since: since})
		if err != nil {
			t.Fatalf("CountRecentSentEmailMessages() error = %v", err)
		}
		if count != 1 {
			t.Errorf("count = %v, want 1", count)
		}
	})

	t.Run("a nil creator filter matches creator-less sends", func(t *testing.T) {
		testDB.Truncate(t)
		creatorID := uuid.New()
		insertSentTestMessage(t, testDB, "a@example.com", "welcome", nil, now.Add(-10*time.Second))
		insertSentTestMessage(t, testDB, "a@example.com", "welcome", &creatorID, now.Add(-10*time.Second))

		count, err := testDB.Store.CountRecentSentEmailMessages(ctx, CountRecentSentEmailMessagesParams{
			Since:           since,
			FilterCreatedBy: true,
			CreatedByID:     nil,
		})
		if err != nil {
			t.Fatalf("CountRecentSentEmailMessages() error = %v", err)
		}
		if count != 1 {
			t.Errorf("count = %v, want 1", count)
		}
	})

	t.Run("template and recipient filters combine", func(t *testing.T) {
		testDB.Truncate(t)
		insertSentTestMessage(t, testDB, "a@example.com", "welcome", nil, now.Add(-10*time.Second))
		insertSentTestMessage(t, testDB, "a@example.com", "reset", nil, now.Add(-10*time.Second))
		insertSentTestMessage(t, testDB, "b@example.com", "welcome", nil, now.Add(-10*time.Second))

		count, err := testDB.Store.CountRecentSentEmailMessages(ctx, CountRecentSentEmailMessagesParams{
			Since:                since,
			FilterTemplatePrefix: true,
			TemplatePrefix:       "welcome",
			FilterToEmail:        true,
			ToEmail:              "a@example.com",
		})
		if err != nil {
			t.Fatalf("CountRecentSentEmailMessages() error = %v", err)
		}
		if count != 1 {
			t.Errorf("count = %v, want 1", count)
		}
	})
}
