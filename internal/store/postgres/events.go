package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parcener/backend/internal/events"
)

// EventRepo persists room events for the event bus.
type EventRepo struct {
	db *pgxpool.Pool
}

// NewEventRepo constructs an EventRepo.
func NewEventRepo(db *pgxpool.Pool) *EventRepo {
	return &EventRepo{db: db}
}

// InsertRoomEvent appends one event to the room's log.
func (r *EventRepo) InsertRoomEvent(ctx context.Context, roomID uuid.UUID, topic string, payload []byte) (events.Event, error) {
	ev := events.Event{RoomID: roomID, Topic: topic, Payload: payload}
	err := r.db.QueryRow(ctx, `
		INSERT INTO room_events (room_id, topic, payload)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, roomID, topic, payload).Scan(&ev.ID, &ev.OccurredAt)
	if err != nil {
		return events.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}
