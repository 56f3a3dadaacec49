package store

import (
	"context"
	"fmt"
)

// CreateEventParams represents parameters for recording an inbound event
type CreateEventParams struct {
	Type    string
	Payload JSONB
}

const sqlCreateEvent = `
INSERT INTO events (type, payload)
VALUES ($1, $2)
RETURNING id, type, payload, created_at
`

// CreateEvent records an inbound event
func (s *Store) CreateEvent(ctx context.Context, params CreateEventParams) (Event, error) {
	var event Event
	err := s.db.GetContext(ctx, &event, sqlCreateEvent, params.Type, params.Payload)
	if err != nil {
		s.logger.Error(ctx, "failed to create event", err)
		return Event{}, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}
