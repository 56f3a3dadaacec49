package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mailer-server/internal/email/reconciler"
	"mailer-server/internal/observability"
	"mailer-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageReader struct {
	messages map[uuid.UUID]store.EmailMessage
	webhooks map[uuid.UUID][]store.EmailMessageWebhook
}

func (f *fakeMessageReader) GetEmailMessageByID(ctx context.Context, messageID uuid.UUID) (store.EmailMessage, error) {
	message, ok := f.messages[messageID]
	if !ok {
		return store.EmailMessage{}, store.ErrNotFound
	}
	return message, nil
}

func (f *fakeMessageReader) GetEmailMessageWebhooksByEmailMessage(ctx context.Context, messageID uuid.UUID) ([]store.EmailMessageWebhook, error) {
	return f.webhooks[messageID], nil
}

type fakeWebhookStore struct {
	created []store.EmailMessageWebhook
}

func (f *fakeWebhookStore) CreateEmailMessageWebhook(ctx context.Context, params store.CreateEmailMessageWebhookParams) (store.EmailMessageWebhook, error) {
	webhook := store.EmailMessageWebhook{
		ID:         uuid.New(),
		Body:       params.Body,
		Headers:    params.Headers,
		Status:     store.EmailWebhookStatusNew,
		ReceivedAt: time.Now(),
	}
	f.created = append(f.created, webhook)
	return webhook, nil
}

func (f *fakeWebhookStore) MarkEmailMessageWebhookPending(ctx context.Context, webhookID uuid.UUID) (store.EmailMessageWebhook, error) {
	return store.EmailMessageWebhook{}, store.ErrNotFound
}

func (f *fakeWebhookStore) SetEmailMessageWebhookCorrelation(ctx context.Context, webhookID uuid.UUID, webhookType *string, emailMessageID *uuid.UUID) (store.EmailMessageWebhook, error) {
	return store.EmailMessageWebhook{}, store.ErrNotFound
}

func (f *fakeWebhookStore) MarkEmailMessageWebhookProcessed(ctx context.Context, webhookID uuid.UUID) (store.EmailMessageWebhook, error) {
	return store.EmailMessageWebhook{}, store.ErrNotFound
}

func (f *fakeWebhookStore) MarkEmailMessageWebhookError(ctx context.Context, webhookID uuid.UUID, note string) (store.EmailMessageWebhook, error) {
	return store.EmailMessageWebhook{}, store.ErrNotFound
}

func (f *fakeWebhookStore) GetEmailMessageWebhooksByEmailMessage(ctx context.Context, messageID uuid.UUID) ([]store.EmailMessageWebhook, error) {
	return nil, nil
}

func (f *fakeWebhookStore) GetEmailMessageByProviderMessageID(ctx context.Context, providerMessageID string) (store.EmailMessage, error) {
	return store.EmailMessage{}, store.ErrNotFound
}

func (f *fakeWebhookStore) AdvanceEmailMessageDeliveryStatus(ctx context.Context, messageID uuid.UUID, status string) (store.EmailMessage, error) {
	return store.EmailMessage{}, store.ErrNotFound
}

type fakeDispatcher struct {
	dispatched []uuid.UUID
}

func (f *fakeDispatcher) DispatchProcessWebhook(ctx context.Context, webhookID uuid.UUID) error {
	f.dispatched = append(f.dispatched, webhookID)
	return nil
}

type handlerFixture struct {
	router       *gin.Engine
	reader       *fakeMessageReader
	webhookStore *fakeWebhookStore
	dispatcher   *fakeDispatcher
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := observability.NewLogger()

	f := &handlerFixture{
		reader: &fakeMessageReader{
			messages: make(map[uuid.UUID]store.EmailMessage),
			webhooks: make(map[uuid.UUID][]store.EmailMessageWebhook),
		},
		webhookStore: &fakeWebhookStore{},
		dispatcher:   &fakeDispatcher{},
	}
	rec := reconciler.New(f.webhookStore, f.dispatcher, logger)
	h := New(nil, rec, f.reader, logger)

	f.router = gin.New()
	f.router.POST("/api/email/webhook", h.HandleProviderWebhook)
	f.router.GET("/api/messages/:message_id", h.HandleGetMessage)
	f.router.GET("/api/messages/:message_id/webhooks", h.HandleGetMessageWebhooks)
	return f
}

func (f *handlerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHandleProviderWebhook(t *testing.T) {
	t.Run("accepts a JSON object and dispatches processing", func(t *testing.T) {
		f := newHandlerFixture(t)

		w := f.do(http.MethodPost, "/api/email/webhook", `{"RecordType":"Delivery","MessageID":"abc"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "Created")
		require.Len(t, f.webhookStore.created, 1)
		assert.Len(t, f.dispatcher.dispatched, 1)
	})

	t.Run("rejects a non-object body", func(t *testing.T) {
		f := newHandlerFixture(t)

		w := f.do(http.MethodPost, "/api/email/webhook", `[]`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid payload")
		assert.Empty(t, f.webhookStore.created)
	})
}

func TestHandleGetMessage(t *testing.T) {
	t.Run("returns a stored message", func(t *testing.T) {
		f := newHandlerFixture(t)
		message := store.EmailMessage{ID: uuid.New(), ToEmail: "user@example.com", Status: store.EmailMessageStatusSent}
		f.reader.messages[message.ID] = message

		w := f.do(http.MethodGet, "/api/messages/"+message.ID.String(), "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "user@example.com")
	})

	t.Run("unknown message is a 404", func(t *testing.T) {
		f := newHandlerFixture(t)

		w := f.do(http.MethodGet, "/api/messages/"+uuid.NewString(), "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("a malformed id is a 400", func(t *testing.T) {
		f := newHandlerFixture(t)

		w := f.do(http.MethodGet, "/api/messages/not-a-uuid", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleGetMessageWebhooks(t *testing.T) {
	t.Run("returns the message's webhooks", func(t *testing.T) {
		f := newHandlerFixture(t)
		messageID := uuid.New()
		f.reader.messages[messageID] = store.EmailMessage{ID: messageID, Status: store.EmailMessageStatusSent}
		webhookType := store.EmailWebhookTypeDelivery
		f.reader.webhooks[messageID] = []store.EmailMessageWebhook{
			{ID: uuid.New(), Type: &webhookType, EmailMessageID: &messageID, Status: store.EmailWebhookStatusProcessed},
		}

		w := f.do(http.MethodGet, "/api/messages/"+messageID.String()+"/webhooks", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Delivery")
	})

	t.Run("unknown message is a 404", func(t *testing.T) {
		f := newHandlerFixture(t)

		w := f.do(http.MethodGet, "/api/messages/"+uuid.NewString()+"/webhooks", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
