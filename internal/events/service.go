package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mailer-server/internal/observability"
	"mailer-server/internal/store"
)

// ErrMissingType is returned when an event payload carries no usable type
var ErrMissingType = errors.New("event payload missing type")

// HandlerFunc reacts to a persisted event
type HandlerFunc func(ctx context.Context, event store.Event) error

// EventStore defines the store operations the service needs
type EventStore interface {
	CreateEvent(ctx context.Context, params store.CreateEventParams) (store.Event, error)
}

// Service persists incoming events and dispatches them to registered handlers.
// Handlers are registered against a type pattern; resolution tries the exact
// type first, then walks dot-separated prefixes ("a.b.c" falls back to "a.b",
// then "a"), and finally the "default" pattern.
type Service struct {
	store    EventStore
	handlers map[string]HandlerFunc
	logger   *observability.Logger
}

// New creates a new event service
func New(store EventStore, logger *observability.Logger) *Service {
	return &Service{
		store:    store,
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Register binds a handler to a type pattern. Registration happens at startup
// before the server accepts traffic, so the map needs no locking.
func (s *Service) Register(pattern string, handler HandlerFunc) {
	s.handlers[pattern] = handler
}

// Emit persists the event and invokes the resolved handler. Handler failures
// are logged but do not fail the emission; the event record already exists.
func (s *Service) Emit(ctx context.Context, payload map[string]interface{}) (store.Event, error) {
	eventType, ok := payload["type"].(string)
	if !ok || eventType == "" {
		return store.Event{}, ErrMissingType
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "event_type", Value: eventType})

	event, err := s.store.CreateEvent(ctx, store.CreateEventParams{
		Type:    eventType,
		Payload: store.JSONB(payload),
	})
	if err != nil {
		return store.Event{}, fmt.Errorf("failed to create event: %w", err)
	}

	handler := s.resolve(eventType)
	if handler == nil {
		s.logger.Debug(ctx, "no handler registered for event")
		return event, nil
	}
	if err := handler(ctx, event); err != nil {
		s.logger.Error(ctx, "event handler failed", err)
	}
	return event, nil
}

func (s *Service) resolve(eventType string) HandlerFunc {
	for pattern := eventType; ; {
		if handler, ok := s.handlers[pattern]; ok {
			return handler
		}
		i := strings.LastIndex(pattern, ".")
		if i < 0 {
			break
		}
		pattern = pattern[:i]
	}
	return s.handlers["default"]
}
