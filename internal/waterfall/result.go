package waterfall

import (
	"sort"

	"github.com/shopspring/decimal"
)

// StepKind tags what a waterfall step paid out.
type StepKind string

const (
	StepLiquidationPreference StepKind = "liquidation_preference"
	StepResidual              StepKind = "residual"
)

// Step is one tranche of the waterfall: which class was paid, under which
// right, and how much. Classes that receive nothing in a tranche still get a
// zero-amount step; downstream auditing depends on the class list being
// complete.
type Step struct {
	Order        int             `json:"order"`
	ShareClassID string          `json:"share_class_id"`
	Kind         StepKind        `json:"kind"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
}

// DistributionResult is the full outcome of distributing one scenario over
// one snapshot.
type DistributionResult struct {
	ScenarioID  string          `json:"scenario_id"`
	ExitValue   decimal.Decimal `json:"exit_value"`
	NetProceeds decimal.Decimal `json:"net_proceeds"`

	HolderProceeds map[string]decimal.Decimal `json:"holder_proceeds"`
	ClassProceeds  map[string]decimal.Decimal `json:"class_proceeds"`
	Steps          []Step                     `json:"steps"`
}

// TotalDistributed sums per-holder proceeds. Valid results conserve value:
// the total equals NetProceeds within a 0.01% tolerance.
func (r *DistributionResult) TotalDistributed() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range r.HolderProceeds {
		total = total.Add(amount)
	}
	return total
}

// Holders returns holder IDs in sorted order, for deterministic rendering.
func (r *DistributionResult) Holders() []string {
	ids := make([]string, 0, len(r.HolderProceeds))
	for id := range r.HolderProceeds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
