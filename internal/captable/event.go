package captable

import (
	"fmt"
	"time"

	"github.com/equitydesk/captable-backend/internal/apperrors"
)

// EventType identifies a cap table event variant.
type EventType string

const (
	EventShareIssuance      EventType = "share_issuance"
	EventShareTransfer      EventType = "share_transfer"
	EventConversion         EventType = "conversion"
	EventOptionExercise     EventType = "option_exercise"
	EventSAFEConversion     EventType = "safe_conversion"
	EventWarrantIssuance    EventType = "warrant_issuance"
	EventOptionPoolCreation EventType = "option_pool_creation"
	EventRoundClosing       EventType = "round_closing"
)

// Event is an immutable record of a cap table state transition. The union is
// closed: every variant lives in this package and implements the unexported
// apply method, which is the sole place snapshot state mutates during
// replay. An event never reads events that occur after it.
type Event interface {
	EventID() string
	EventDate() time.Time
	Type() EventType

	// apply mutates the snapshot being built by replay. Errors abort the
	// whole replay; partial application is never surfaced to callers.
	apply(s *Snapshot) error
}

// EventMeta carries the identity fields shared by every event variant.
type EventMeta struct {
	ID          string    `json:"event_id"`
	Date        time.Time `json:"event_date"`
	Description string    `json:"description,omitempty"`
}

// NewEventMeta builds event identity fields, requiring a non-empty ID and a
// non-zero date.
func NewEventMeta(id string, date time.Time, description string) (EventMeta, error) {
	if id == "" {
		return EventMeta{}, fmt.Errorf("%w: event ID is required", apperrors.ErrInvalidEvent)
	}
	if date.IsZero() {
		return EventMeta{}, fmt.Errorf("%w: event %s: event date is required", apperrors.ErrInvalidEvent, id)
	}
	return EventMeta{ID: id, Date: date, Description: description}, nil
}

func (m EventMeta) EventID() string      { return m.ID }
func (m EventMeta) EventDate() time.Time { return m.Date }

// SetEventID assigns an identifier to an event decoded from input that
// omitted one. Only valid before the event enters a ledger.
func (m *EventMeta) SetEventID(id string) { m.ID = id }
