package captable

import (
	"encoding/json"
	"fmt"
)

// DecodeEvent deserializes a JSON payload into the concrete event type named
// by the type tag. It is the single place the tag-to-type mapping lives; the
// storage layer and the API both decode through it.
//
// Decoding performs no semantic validation: callers feeding untrusted input
// revalidate with the event constructors before appending to a ledger.
func DecodeEvent(eventType EventType, payload []byte) (Event, error) {
	var ev Event
	switch eventType {
	case EventShareIssuance:
		ev = &ShareIssuance{}
	case EventShareTransfer:
		ev = &ShareTransfer{}
	case EventConversion:
		ev = &Conversion{}
	case EventOptionExercise:
		ev = &OptionExercise{}
	case EventSAFEConversion:
		ev = &SAFEConversion{}
	case EventWarrantIssuance:
		ev = &WarrantIssuance{}
	case EventOptionPoolCreation:
		ev = &OptionPoolCreation{}
	case EventRoundClosing:
		ev = &RoundClosing{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", eventType, err)
	}
	return ev, nil
}
