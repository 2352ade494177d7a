package validation

import (
	"encoding/json"
	"strings"

	"github.com/equitydesk/captable-backend/internal/api/request"
	"github.com/equitydesk/captable-backend/internal/captable"
)

// eventTypes mirrors the closed event union. Unknown types fail here with a
// field error instead of surfacing as a decode failure.
var eventTypes = map[captable.EventType]bool{
	captable.EventShareIssuance:      true,
	captable.EventShareTransfer:      true,
	captable.EventConversion:         true,
	captable.EventOptionExercise:     true,
	captable.EventSAFEConversion:     true,
	captable.EventWarrantIssuance:    true,
	captable.EventOptionPoolCreation: true,
	captable.EventRoundClosing:       true,
}

func ValidateCreateEvent(req request.CreateEventRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.EventType) == "" {
		errors["event_type"] = "event_type is required"
	} else if !eventTypes[captable.EventType(req.EventType)] {
		errors["event_type"] = "unknown event type"
	}

	if len(req.Payload) == 0 {
		errors["payload"] = "payload is required"
	} else if !json.Valid(req.Payload) {
		errors["payload"] = "payload must be a JSON object"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

func ValidateCreateShareClass(req request.CreateShareClassRequest) error {
	errors := make(map[string]string)

	// Class IDs are referenced by events and scenarios, so they are short
	// stable slugs rather than display names.
	if strings.TrimSpace(req.ID) == "" {
		errors["id"] = "id is required"
	} else if len(req.ID) > 64 {
		errors["id"] = "id must be 64 characters or less"
	}

	if strings.TrimSpace(req.Name) == "" {
		errors["name"] = "name is required"
	} else if len(req.Name) > 100 {
		errors["name"] = "name must be 100 characters or less"
	}

	if strings.TrimSpace(req.Type) == "" {
		errors["type"] = "type is required"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
