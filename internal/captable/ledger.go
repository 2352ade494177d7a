// Package captable implements the event-sourced ownership model: share
// classes and their economic rights, the append-only event log, and the
// replay engine that folds events into point-in-time snapshots.
//
// State is never stored directly. A Snapshot is a pure function of
// (events, share classes, as-of date): replaying the same ledger to the same
// date always yields an identical snapshot, which is what makes the model
// auditable and testable.
package captable

import (
	"fmt"
	"sort"
	"time"

	"github.com/equitydesk/captable-backend/internal/apperrors"
)

// Ledger is the append-only, chronologically ordered event log for one cap
// table. Appends re-sort the log (stable, so same-date events keep their
// insertion order) and reject duplicate event IDs. Replays only read the
// log, so any number of snapshot computations may run concurrently with
// each other; appends must not be interleaved with an in-flight replay.
type Ledger struct {
	registry *Registry
	events   []Event
	seen     map[string]struct{}
}

// NewLedger creates an empty ledger backed by the given share class
// registry.
func NewLedger(registry *Registry) *Ledger {
	return &Ledger{
		registry: registry,
		seen:     make(map[string]struct{}),
	}
}

// Registry returns the share class registry this ledger validates against.
func (l *Ledger) Registry() *Registry {
	return l.registry
}

// Append adds an event to the log, keeping it sorted by event date with
// ties broken by insertion order. Appending an event whose ID is already
// present fails: replayed duplicates would silently double-count.
func (l *Ledger) Append(ev Event) error {
	if ev.EventID() == "" {
		return fmt.Errorf("%w: event ID is required", apperrors.ErrInvalidEvent)
	}
	if _, dup := l.seen[ev.EventID()]; dup {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateEvent, ev.EventID())
	}
	l.seen[ev.EventID()] = struct{}{}
	l.events = append(l.events, ev)
	sort.SliceStable(l.events, func(i, j int) bool {
		return l.events[i].EventDate().Before(l.events[j].EventDate())
	})
	return nil
}

// Len returns the number of events in the log.
func (l *Ledger) Len() int {
	return len(l.events)
}

// Events returns a copy of the ordered event log. Events themselves are
// immutable, so sharing the elements is safe.
func (l *Ledger) Events() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Snapshot replays the log into the state as of the given date: every event
// dated on or before asOf is applied, in order, to a fresh snapshot.
//
// Replay is all-or-nothing. The first event that cannot be legally applied
// aborts the computation with a DomainViolation naming that event; no
// partial snapshot is ever returned.
func (l *Ledger) Snapshot(asOf time.Time) (*Snapshot, error) {
	snap := newSnapshot(asOf, l.registry.snapshotClasses())
	for _, ev := range l.events {
		if ev.EventDate().After(asOf) {
			continue
		}
		if err := ev.apply(snap); err != nil {
			return nil, apperrors.Violation(ev.EventID(), err)
		}
	}
	return snap, nil
}
