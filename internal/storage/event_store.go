package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guestlist/models"

	"github.com/pocketbase/pocketbase/core"
)

// EventStore reads guest list configuration from the events collection.
type EventStore struct {
	app core.App
}

func NewEventStore(app core.App) *EventStore {
	return &EventStore{app: app}
}

// FindEvent returns nil, nil when the event does not exist.
func (s *EventStore) FindEvent(ctx context.Context, id string) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}

	record, err := s.app.FindRecordById(EventsCollection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("events: lookup %s: %w", id, err)
	}

	return &models.Event{
		ID:       record.Id,
		Name:     record.GetString("name"),
		Status:   record.GetString("status"),
		ListType: record.GetString("list_type"),
		OpensAt:  record.GetString("guest_list_opens_at"),
		ClosesAt: record.GetString("guest_list_closes_at"),
		Capacity: record.GetInt("guest_list_capacity"),
	}, nil
}
