package captable

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/apperrors"
)

// Snapshot is the point-in-time state of a cap table, computed by replaying
// events. Snapshots are values: callers never mutate them, and recomputing
// from the same ledger and date always yields an identical snapshot.
type Snapshot struct {
	AsOfDate  time.Time
	Positions []Position

	// TotalSharesOutstanding counts issued, non-option shares, including
	// any pre-money option pool reserve held by OptionPoolHolderID.
	TotalSharesOutstanding decimal.Decimal

	OptionPoolAuthorized decimal.Decimal
	OptionPoolAvailable  decimal.Decimal

	// Classes is the share class registry as of replay time, copied so the
	// snapshot stays self-contained.
	Classes map[string]ShareClass
}

func newSnapshot(asOf time.Time, classes map[string]ShareClass) *Snapshot {
	return &Snapshot{
		AsOfDate:               asOf,
		TotalSharesOutstanding: decimal.Zero,
		OptionPoolAuthorized:   decimal.Zero,
		OptionPoolAvailable:    decimal.Zero,
		Classes:                classes,
	}
}

// Class looks up a share class definition captured in this snapshot.
func (s *Snapshot) Class(id string) (ShareClass, bool) {
	sc, ok := s.Classes[id]
	return sc, ok
}

// FindPosition returns the position for the given accumulation key.
func (s *Snapshot) FindPosition(holderID, shareClassID string, isOption bool) (Position, bool) {
	for _, p := range s.Positions {
		if p.sameKey(holderID, shareClassID, isOption) {
			return p, true
		}
	}
	return Position{}, false
}

// HolderPositions returns every position held by one holder, in replay order.
func (s *Snapshot) HolderPositions(holderID string) []Position {
	var out []Position
	for _, p := range s.Positions {
		if p.HolderID == holderID {
			out = append(out, p)
		}
	}
	return out
}

// ClassPositions returns every position in one share class, in replay order.
func (s *Snapshot) ClassPositions(shareClassID string) []Position {
	var out []Position
	for _, p := range s.Positions {
		if p.ShareClassID == shareClassID {
			out = append(out, p)
		}
	}
	return out
}

// PoolReserveShares returns the outstanding shares held in reserve for
// pre-money option pools. These are included in TotalSharesOutstanding but
// must not be double-counted against OptionPoolAvailable.
func (s *Snapshot) PoolReserveShares() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		if p.HolderID == OptionPoolHolderID && !p.IsOption {
			total = total.Add(p.Shares)
		}
	}
	return total
}

// FullyDilutedShares is outstanding shares plus the unissued option pool.
// Pool shares reserved pre-money are already outstanding, so only the
// unreserved remainder of the pool is added.
func (s *Snapshot) FullyDilutedShares() decimal.Decimal {
	unreserved := s.OptionPoolAvailable.Sub(s.PoolReserveShares())
	if unreserved.IsNegative() {
		unreserved = decimal.Zero
	}
	return s.TotalSharesOutstanding.Add(unreserved)
}

// OwnershipPercentage returns a holder's fraction of issued shares. Option
// and warrant positions are excluded from the numerator. With fullyDiluted
// set, the denominator also counts the unissued option pool. A zero
// denominator returns zero - the empty cap table is a legal zero state,
// not an error.
func (s *Snapshot) OwnershipPercentage(holderID string, fullyDiluted bool) decimal.Decimal {
	held := decimal.Zero
	for _, p := range s.Positions {
		if p.HolderID == holderID && !p.IsOption {
			held = held.Add(p.Shares)
		}
	}

	denom := s.TotalSharesOutstanding
	if fullyDiluted {
		denom = s.FullyDilutedShares()
	}
	if denom.IsZero() {
		return decimal.Zero
	}
	return held.Div(denom)
}

// addPosition merges a position into the snapshot, accumulating shares and
// cost basis when the (holder, class, option) key already exists. Non-option
// shares raise TotalSharesOutstanding.
func (s *Snapshot) addPosition(p Position) error {
	if _, ok := s.Classes[p.ShareClassID]; !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownShareClass, p.ShareClassID)
	}
	if p.Shares.IsNegative() {
		return fmt.Errorf("%w: cannot add %s shares", apperrors.ErrInsufficientShares, p.Shares)
	}

	merged := false
	for i := range s.Positions {
		if !s.Positions[i].sameKey(p.HolderID, p.ShareClassID, p.IsOption) {
			continue
		}
		s.Positions[i].Shares = s.Positions[i].Shares.Add(p.Shares)
		if p.CostBasis.Valid {
			basis := p.CostBasis.Decimal
			if s.Positions[i].CostBasis.Valid {
				basis = basis.Add(s.Positions[i].CostBasis.Decimal)
			}
			s.Positions[i].CostBasis = decimal.NullDecimal{Decimal: basis, Valid: true}
		}
		merged = true
		break
	}
	if !merged {
		s.Positions = append(s.Positions, p)
	}

	if !p.IsOption {
		s.TotalSharesOutstanding = s.TotalSharesOutstanding.Add(p.Shares)
	}
	return nil
}

// reducePosition removes shares from a holder's non-option position,
// deleting the entry when it reaches zero. Reducing below zero is a domain
// violation.
func (s *Snapshot) reducePosition(holderID, shareClassID string, shares decimal.Decimal) error {
	for i := range s.Positions {
		if !s.Positions[i].sameKey(holderID, shareClassID, false) {
			continue
		}
		if s.Positions[i].Shares.LessThan(shares) {
			return fmt.Errorf("%w: holder %s has %s shares of %s, tried to reduce by %s",
				apperrors.ErrInsufficientShares, holderID, s.Positions[i].Shares, shareClassID, shares)
		}
		s.Positions[i].Shares = s.Positions[i].Shares.Sub(shares)
		s.TotalSharesOutstanding = s.TotalSharesOutstanding.Sub(shares)
		if s.Positions[i].Shares.IsZero() {
			s.Positions = append(s.Positions[:i], s.Positions[i+1:]...)
		}
		return nil
	}
	return fmt.Errorf("%w: holder %s has no %s position", apperrors.ErrPositionNotFound, holderID, shareClassID)
}
