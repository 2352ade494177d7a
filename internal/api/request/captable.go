package request

import (
	"encoding/json"

	"github.com/equitydesk/captable-backend/internal/captable"
)

// CreateEventRequest is the envelope for appending a cap table event. The
// payload carries the event body in the same shape the log stores it; its
// event_id may be omitted, in which case the server assigns one.
type CreateEventRequest struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// CreateShareClassRequest represents the request body for registering a
// share class.
type CreateShareClassRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`

	LiquidationPreference *captable.LiquidationPreference `json:"liquidation_preference,omitempty"`
	Participation         *captable.ParticipationRights   `json:"participation,omitempty"`
	Conversion            *captable.ConversionRights      `json:"conversion,omitempty"`
	AntiDilution          string                          `json:"anti_dilution,omitempty"`
}
