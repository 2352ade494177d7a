package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/equitydesk/captable-backend/internal/apperrors"
	"github.com/equitydesk/captable-backend/internal/captable"
)

// EventRepository provides data access methods for the cap_table_event table.
//
// Events are stored as JSON envelopes: the variant's type tag selects the
// concrete Go type on the way out. The table is append-only; rows are never
// updated, and seq preserves insertion order so that same-date events replay
// in the order they were recorded.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new repository instance.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// SaveEvent appends one event to the log.
func (r *EventRepository) SaveEvent(ev captable.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", ev.EventID(), err)
	}

	_, err = r.db.Exec(`
		INSERT INTO cap_table_event (event_id, event_date, event_type, payload, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM cap_table_event))
	`, ev.EventID(), ev.EventDate().Format("2006-01-02"), string(ev.Type()), string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", ev.EventID(), err)
	}
	return nil
}

// GetEvent retrieves a single event by ID.
func (r *EventRepository) GetEvent(eventID string) (captable.Event, error) {
	var eventType, payload string
	err := r.db.QueryRow(`
		SELECT event_type, payload FROM cap_table_event WHERE event_id = ?
	`, eventID).Scan(&eventType, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrEventNotFound, eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query event %s: %w", eventID, err)
	}
	return decodeEvent(eventType, payload)
}

// ListEvents retrieves the full event log ordered by event date, with
// insertion order breaking ties.
func (r *EventRepository) ListEvents() ([]captable.Event, error) {
	rows, err := r.db.Query(`
		SELECT event_type, payload
		FROM cap_table_event
		ORDER BY event_date ASC, seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cap_table_event: %w", err)
	}
	defer rows.Close()

	var events []captable.Event
	for rows.Next() {
		var eventType, payload string
		if err := rows.Scan(&eventType, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ev, err := decodeEvent(eventType, payload)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}

// CountEvents returns the number of events in the log.
func (r *EventRepository) CountEvents() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM cap_table_event`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// decodeEvent deserializes an envelope into its concrete event type.
func decodeEvent(eventType, payload string) (captable.Event, error) {
	ev, err := captable.DecodeEvent(captable.EventType(eventType), []byte(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored event: %w", err)
	}
	return ev, nil
}
