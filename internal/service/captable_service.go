package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/captable"
	"github.com/equitydesk/captable-backend/internal/repository"
	"github.com/equitydesk/captable-backend/internal/validate"
)

// maxEventDate bounds the trial replay that guards appends. Every stored
// event is dated on or before it, so a replay to this date exercises the
// whole log.
var maxEventDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// CapTableService owns the in-memory event ledger and its persistence. The
// ledger is rebuilt from storage lazily and cached; appends write through to
// the database and update the cached ledger under the write lock, so reads
// never see a half-applied log.
type CapTableService struct {
	classRepo *repository.ShareClassRepository
	eventRepo *repository.EventRepository

	mu     sync.RWMutex
	ledger *captable.Ledger
}

// NewCapTableService creates a new CapTableService
func NewCapTableService(classRepo *repository.ShareClassRepository, eventRepo *repository.EventRepository) *CapTableService {
	return &CapTableService{
		classRepo: classRepo,
		eventRepo: eventRepo,
	}
}

// RegisterShareClass validates and persists a share class definition.
func (s *CapTableService) RegisterShareClass(sc captable.ShareClass) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.loadLedgerLocked()
	if err != nil {
		return err
	}
	if err := ledger.Registry().Register(sc); err != nil {
		return err
	}
	if err := s.classRepo.SaveShareClass(sc); err != nil {
		// Keep cache and storage consistent: a failed write invalidates
		// the cached ledger so the next read rebuilds from storage.
		s.ledger = nil
		return err
	}
	return nil
}

// ListShareClasses returns every registered share class.
func (s *CapTableService) ListShareClasses() ([]captable.ShareClass, error) {
	return s.classRepo.ListShareClasses()
}

// AppendEvent validates an event against the ledger and persists it.
func (s *CapTableService) AppendEvent(ev captable.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.loadLedgerLocked()
	if err != nil {
		return err
	}
	if err := ledger.Append(ev); err != nil {
		return err
	}
	// Trial replay before persisting: an event that can never legally apply
	// must not enter storage. The cached ledger already holds it, so a
	// failure invalidates the cache.
	if _, err := ledger.Snapshot(maxEventDate); err != nil {
		s.ledger = nil
		return err
	}
	if err := s.eventRepo.SaveEvent(ev); err != nil {
		s.ledger = nil
		return err
	}
	return nil
}

// Event retrieves a single event by ID from storage.
func (s *CapTableService) Event(eventID string) (captable.Event, error) {
	return s.eventRepo.GetEvent(eventID)
}

// EventCount reports the number of events in storage without decoding them.
func (s *CapTableService) EventCount() (int, error) {
	return s.eventRepo.CountEvents()
}

// Events returns the ordered event log.
func (s *CapTableService) Events() ([]captable.Event, error) {
	var events []captable.Event
	err := s.readLedger(func(l *captable.Ledger) error {
		events = l.Events()
		return nil
	})
	return events, err
}

// SnapshotAt replays the ledger into the cap table state as of the given
// date.
func (s *CapTableService) SnapshotAt(asOf time.Time) (*captable.Snapshot, error) {
	var snap *captable.Snapshot
	err := s.readLedger(func(l *captable.Ledger) error {
		var err error
		snap, err = l.Snapshot(asOf)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Ownership returns a holder's ownership fraction as of the given date.
func (s *CapTableService) Ownership(holderID string, asOf time.Time, fullyDiluted bool) (decimal.Decimal, error) {
	snap, err := s.SnapshotAt(asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.OwnershipPercentage(holderID, fullyDiluted), nil
}

// ValidateAt replays the ledger to the given date and runs the snapshot
// consistency checks over the result.
func (s *CapTableService) ValidateAt(asOf time.Time) (validate.Report, error) {
	snap, err := s.SnapshotAt(asOf)
	if err != nil {
		return validate.Report{}, err
	}
	return validate.CheckSnapshot(snap), nil
}

// RefreshLedger discards the cached ledger and rebuilds it from storage.
// Called by the background refresh job and after external data loads.
func (s *CapTableService) RefreshLedger() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = nil
	_, err := s.loadLedgerLocked()
	return err
}

// readLedger runs fn against the cached ledger, building it on first use.
// The lock is held for the whole call: appends re-sort the event log in
// place, so a replay must never overlap one.
func (s *CapTableService) readLedger(fn func(*captable.Ledger) error) error {
	s.mu.RLock()
	if s.ledger != nil {
		defer s.mu.RUnlock()
		return fn(s.ledger)
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, err := s.loadLedgerLocked()
	if err != nil {
		return err
	}
	return fn(ledger)
}

// loadLedgerLocked rebuilds the ledger from storage if the cache is empty.
// Callers must hold the write lock.
func (s *CapTableService) loadLedgerLocked() (*captable.Ledger, error) {
	if s.ledger != nil {
		return s.ledger, nil
	}

	classes, err := s.classRepo.ListShareClasses()
	if err != nil {
		return nil, fmt.Errorf("failed to load share classes: %w", err)
	}
	registry := captable.NewRegistry()
	for _, sc := range classes {
		if err := registry.Register(sc); err != nil {
			return nil, fmt.Errorf("stored share class %s is invalid: %w", sc.ID, err)
		}
	}

	events, err := s.eventRepo.ListEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	ledger := captable.NewLedger(registry)
	for _, ev := range events {
		if err := ledger.Append(ev); err != nil {
			return nil, fmt.Errorf("stored event %s is invalid: %w", ev.EventID(), err)
		}
	}

	s.ledger = ledger
	return ledger, nil
}
