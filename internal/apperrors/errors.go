// Package apperrors defines the error taxonomy for the cap table engine.
//
// Errors fall into four groups:
//  1. Configuration errors - malformed instrument or share class definitions,
//     detected eagerly at construction time.
//  2. Domain violations - an event cannot be legally applied to the current
//     snapshot state; the whole replay aborts.
//  3. Waterfall configuration errors - invalid exit parameters, reported
//     before any distribution is computed.
//  4. Not-found errors from the storage layer.
//
// Nothing is retried automatically: every error is a deterministic function
// of the input data, so callers fix the input and recompute.
package apperrors

import (
	"errors"
	"fmt"
)

// Configuration errors represent malformed instrument or share class
// definitions. They are returned by constructors, never during replay.
var (
	// ErrInvalidInstrument indicates an instrument definition that violates
	// its own construction rules (e.g., a SAFE with neither cap nor discount).
	ErrInvalidInstrument = errors.New("invalid instrument definition")

	// ErrInvalidShareClass indicates a share class whose economic rights are
	// inconsistent (e.g., preferred without a liquidation preference).
	ErrInvalidShareClass = errors.New("invalid share class definition")

	// ErrDuplicateShareClass indicates a share class ID registered twice.
	ErrDuplicateShareClass = errors.New("share class already registered")

	// ErrInvalidEvent indicates an event constructed with invalid fields
	// (empty IDs, non-positive share counts, missing sub-records).
	ErrInvalidEvent = errors.New("invalid event definition")
)

// Domain violations represent events that cannot be legally applied to the
// snapshot state built so far. Replay is all-or-nothing: the first violation
// aborts the whole computation.
var (
	// ErrDuplicateEvent indicates an event ID already present in the ledger.
	ErrDuplicateEvent = errors.New("duplicate event ID")

	// ErrUnknownShareClass indicates an event referencing a share class that
	// does not exist in the registry.
	ErrUnknownShareClass = errors.New("unknown share class")

	// ErrPositionNotFound indicates an event reducing or transferring shares
	// from a holder that has no position in the given class.
	ErrPositionNotFound = errors.New("position not found")

	// ErrInsufficientShares indicates an event that would drive a position
	// negative (transferring or converting more shares than held).
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrOptionPoolExhausted indicates an exercise drawing more shares than
	// the option pool has available.
	ErrOptionPoolExhausted = errors.New("option pool exhausted")
)

// Storage errors represent missing entities in the persistence layer.
var (
	// ErrEventNotFound indicates that an event with the given ID does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrShareClassNotFound indicates that a share class with the given ID
	// does not exist in storage.
	ErrShareClassNotFound = errors.New("share class not found")
)

// DomainViolation wraps a replay failure with the ID of the offending event.
// The wrapped error is one of the domain violation sentinels above, so
// callers can test with errors.Is while still seeing which event broke.
type DomainViolation struct {
	EventID string
	Err     error
}

func (v *DomainViolation) Error() string {
	return fmt.Sprintf("event %s: %v", v.EventID, v.Err)
}

func (v *DomainViolation) Unwrap() error {
	return v.Err
}

// Violation builds a DomainViolation for the given event. If err already
// carries an event ID (a nested composite sub-event failed), it is returned
// unchanged so the innermost offender is reported.
func Violation(eventID string, err error) error {
	var dv *DomainViolation
	if errors.As(err, &dv) {
		return err
	}
	return &DomainViolation{EventID: eventID, Err: err}
}

// WaterfallConfigError reports a caller configuration error detected before
// any distribution is computed: a negative exit value, a participation cap
// that does not exceed the preference, or an unresolvable pari-passu split.
// These are not retryable; the scenario or share class setup must change.
type WaterfallConfigError struct {
	Reason string
}

func (e *WaterfallConfigError) Error() string {
	return "waterfall configuration: " + e.Reason
}

// WaterfallConfig builds a WaterfallConfigError with a formatted reason.
func WaterfallConfig(format string, args ...any) error {
	return &WaterfallConfigError{Reason: fmt.Sprintf(format, args...)}
}
