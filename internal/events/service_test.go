package events

import (
	"context"
	"errors"
	"testing"

	"mailer-server/internal/observability"
	"mailer-server/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventStore struct {
	events []store.Event
}

func (f *fakeEventStore) CreateEvent(ctx context.Context, params store.CreateEventParams) (store.Event, error) {
	event := store.Event{ID: uuid.New(), Type: params.Type, Payload: params.Payload}
	f.events = append(f.events, event)
	return event, nil
}

func TestEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the event and calls the exact handler", func(t *testing.T) {
		f := &fakeEventStore{}
		s := New(f, observability.NewLogger())
		var handled []string
		s.Register("billing.invoice.paid", func(ctx context.Context, event store.Event) error {
			handled = append(handled, event.Type)
			return nil
		})

		event, err := s.Emit(ctx, map[string]interface{}{"type": "billing.invoice.paid", "amount": 42})
		require.NoError(t, err)

		assert.Equal(t, "billing.invoice.paid", event.Type)
		assert.Equal(t, []string{"billing.invoice.paid"}, handled)
		require.Len(t, f.events, 1)
		assert.Equal(t, 42, f.events[0].Payload["amount"])
	})

	t.Run("falls back across dot prefixes", func(t *testing.T) {
		f := &fakeEventStore{}
		s := New(f, observability.NewLogger())
		var pattern string
		s.Register("billing", func(ctx context.Context, event store.Event) error {
			pattern = "billing"
			return nil
		})

		_, err := s.Emit(ctx, map[string]interface{}{"type": "billing.invoice.paid"})
		require.NoError(t, err)
		assert.Equal(t, "billing", pattern)
	})

	t.Run("the closest prefix wins", func(t *testing.T) {
		f := &fakeEventStore{}
		s := New(f, observability.NewLogger())
		var pattern string
		s.Register("billing", func(ctx context.Context, event store.Event) error {
			pattern = "billing"
			return nil
		})
		s.Register("billing.invoice", func(ctx context.Context, event store.Event) error {
			pattern = "billing.invoice"
			return nil
		})

		_, err := s.Emit(ctx, map[string]interface{}{"type": "billing.invoice.paid"})
		require.NoError(t, err)
		assert.Equal(t, "billing.invoice", pattern)
	})

	t.Run("unmatched types reach the default handler", func(t *testing.T) {
		f := &fakeEventStore{}
		s := New(f, observability.NewLogger())
		var pattern string
		s.Register("default", func(ctx context.Context, event store.Event) error {
			pattern = "default"
			return nil
		})

		_, err := s.Emit(ctx, map[string]interface{}{"type": "signup"})
		require.NoError(t, err)
		assert.Equal(t, "default", pattern)
	})

	t.Run("no handler still persists the event", func(t *testing.T) {
		f := &fakeEventStore{}
		s := New(f, observability.NewLogger())

		_, err := s.Emit(ctx, map[string]interface{}{"type": "signup"})
		require.NoError(t, err)
		assert.Len(t, f.events, 1)
	})

	t.Run("a handler failure does not fail the emission", func(t *testing.T) {
		f := &fakeEventStore{}
		s := New(f, observability.NewLogger())
		s.Register("signup", func(ctx context.Context, event store.Event) error {
			return errors.New("handler boom")
		})

		_, err := s.Emit(ctx, map[string]interface{}{"type": "signup"})
		assert.NoError(t, err)
	})

	t.Run("a payload without a type is rejected", func(t *testing.T) {
		f := &fakeEventStore{}
		s := New(f, observability.NewLogger())

		_, err := s.Emit(ctx, map[string]interface{}{"amount": 1})
		assert.ErrorIs(t, err, ErrMissingType)
		assert.Empty(t, f.events)
	})

	t.Run("a non-string type is rejected", func(t *testing.T) {
		f := &fakeEventStore{}
		s := New(f, observability.NewLogger())

		_, err := s.Emit(ctx, map[string]interface{}{"type": 7})
		assert.ErrorIs(t, err, ErrMissingType)
	})
}
