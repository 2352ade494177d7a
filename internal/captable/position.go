package captable

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionPoolHolderID is the reserved holder for shares set aside in a
// pre-money option pool. Pre-money pools dilute existing holders
// immediately, so the reserved shares are carried as an outstanding
// position under this holder until options are exercised out of it.
// Reserve positions receive nothing in an exit waterfall.
const OptionPoolHolderID = "option-pool"

// Position is a holder's stake in one share class at a point in time.
// Positions are values: replay copies and accumulates them, it never
// aliases entries between snapshots.
//
// Uniqueness key is (HolderID, ShareClassID, IsOption); applying an event
// for an existing key accumulates shares and cost basis instead of
// duplicating the entry.
type Position struct {
	HolderID        string          `json:"holder_id"`
	ShareClassID    string          `json:"share_class_id"`
	Shares          decimal.Decimal `json:"shares"`
	AcquisitionDate time.Time       `json:"acquisition_date"`

	// CostBasis is the total price paid for the position. Invalid means no
	// cost (founder shares); it is never negative.
	CostBasis decimal.NullDecimal `json:"cost_basis"`

	// VestingScheduleID references an externally managed vesting schedule.
	// Vesting mechanics are not modeled here.
	VestingScheduleID string `json:"vesting_schedule_id,omitempty"`

	// IsOption marks unexercised option/warrant positions. They are
	// excluded from shares outstanding and from exit distributions.
	IsOption       bool                `json:"is_option"`
	ExercisePrice  decimal.NullDecimal `json:"exercise_price"`
	ExpirationDate *time.Time          `json:"expiration_date,omitempty"`
}

// EffectiveCostPerShare returns cost basis divided by shares, or false when
// the position has no cost basis or no shares.
func (p Position) EffectiveCostPerShare() (decimal.Decimal, bool) {
	if !p.CostBasis.Valid || p.Shares.IsZero() {
		return decimal.Decimal{}, false
	}
	return p.CostBasis.Decimal.Div(p.Shares), true
}

// sameKey reports whether two positions share the accumulation key.
func (p Position) sameKey(holderID, shareClassID string, isOption bool) bool {
	return p.HolderID == holderID && p.ShareClassID == shareClassID && p.IsOption == isOption
}
