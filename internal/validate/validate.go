// Package validate runs consistency checks over computed snapshots and
// distribution results. Findings are reported, never acted on: a failing
// check means the event log or scenario needs fixing, and the caller decides
// what to do about warnings.
package validate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/captable"
	"github.com/equitydesk/captable-backend/internal/waterfall"
)

// Finding codes, stable across releases so callers can match on them.
const (
	CodeShareSumMismatch    = "share_sum_mismatch"
	CodeNegativeShares      = "negative_shares"
	CodeNegativeCostBasis   = "negative_cost_basis"
	CodePoolOverdrawn       = "pool_overdrawn"
	CodePoolNegative        = "pool_negative"
	CodeUnknownClass        = "unknown_share_class"
	CodeOwnershipSum        = "ownership_sum_mismatch"
	CodeOwnershipBoundary   = "ownership_sum_at_tolerance"
	CodePoolFullyAllocated  = "pool_fully_allocated"
	CodeValueNotConserved   = "value_not_conserved"
	CodeNegativeProceeds    = "negative_proceeds"
	CodeNegativeStepAmount  = "negative_step_amount"
	CodeUndistributedExcess = "undistributed_excess"
)

// Tolerances mirror the engine's: share sums to a hundredth of a share,
// ownership fractions to 1%, distributed value to 0.01%.
var (
	shareTolerance        = decimal.NewFromFloat(0.01)
	ownershipTolerance    = decimal.NewFromFloat(0.01)
	conservationTolerance = decimal.NewFromFloat(0.0001)
)

// Finding is one validator result: a stable code plus a human-readable
// message.
type Finding struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Report is the outcome of a validation run. Errors make the subject
// unusable for downstream decisions; warnings are informational and never
// block.
type Report struct {
	Valid    bool      `json:"valid"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

func (r *Report) addError(code, format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, Finding{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) addWarning(code, format string, args ...any) {
	r.Warnings = append(r.Warnings, Finding{Code: code, Message: fmt.Sprintf(format, args...)})
}

// CheckSnapshot verifies the structural invariants a replayed snapshot must
// satisfy: share totals reconcile, nothing is negative, the pool is within
// its authorization, every position's class is known, and per-holder
// ownership sums to one.
func CheckSnapshot(snap *captable.Snapshot) Report {
	report := Report{Valid: true}

	positionSum := decimal.Zero
	holderShares := make(map[string]decimal.Decimal)
	for _, pos := range snap.Positions {
		if pos.Shares.IsNegative() {
			report.addError(CodeNegativeShares, "holder %s holds %s shares of %s", pos.HolderID, pos.Shares, pos.ShareClassID)
		}
		if pos.CostBasis.Valid && pos.CostBasis.Decimal.IsNegative() {
			report.addError(CodeNegativeCostBasis, "holder %s position in %s has cost basis %s", pos.HolderID, pos.ShareClassID, pos.CostBasis.Decimal)
		}
		if _, ok := snap.Classes[pos.ShareClassID]; !ok {
			report.addError(CodeUnknownClass, "position of %s references unregistered class %s", pos.HolderID, pos.ShareClassID)
		}
		if !pos.IsOption {
			positionSum = positionSum.Add(pos.Shares)
			holderShares[pos.HolderID] = holderShares[pos.HolderID].Add(pos.Shares)
		}
	}

	if positionSum.Sub(snap.TotalSharesOutstanding).Abs().GreaterThan(shareTolerance) {
		report.addError(CodeShareSumMismatch, "non-option positions sum to %s but total outstanding is %s", positionSum, snap.TotalSharesOutstanding)
	}

	if snap.OptionPoolAvailable.IsNegative() {
		report.addError(CodePoolNegative, "option pool available is %s", snap.OptionPoolAvailable)
	}
	if snap.OptionPoolAvailable.GreaterThan(snap.OptionPoolAuthorized) {
		report.addError(CodePoolOverdrawn, "option pool available %s exceeds authorized %s", snap.OptionPoolAvailable, snap.OptionPoolAuthorized)
	}
	if snap.OptionPoolAuthorized.IsPositive() && snap.OptionPoolAvailable.IsZero() {
		report.addWarning(CodePoolFullyAllocated, "option pool of %s shares is fully allocated", snap.OptionPoolAuthorized)
	}

	if snap.TotalSharesOutstanding.IsPositive() {
		fractionSum := decimal.Zero
		for _, shares := range holderShares {
			fractionSum = fractionSum.Add(shares.Div(snap.TotalSharesOutstanding))
		}
		gap := fractionSum.Sub(decimal.NewFromInt(1)).Abs()
		switch {
		case gap.GreaterThan(ownershipTolerance):
			report.addError(CodeOwnershipSum, "holder ownership fractions sum to %s", fractionSum)
		case gap.Equal(ownershipTolerance):
			report.addWarning(CodeOwnershipBoundary, "holder ownership fractions sum to %s, exactly at the %s tolerance", fractionSum, ownershipTolerance)
		}
	}

	return report
}

// CheckDistribution verifies that a waterfall result conserves value: the
// per-holder payouts reconstruct the scenario's net proceeds within 0.01%,
// and no payout or step is negative.
func CheckDistribution(result *waterfall.DistributionResult, sc waterfall.Scenario) Report {
	report := Report{Valid: true}

	for holder, amount := range result.HolderProceeds {
		if amount.IsNegative() {
			report.addError(CodeNegativeProceeds, "holder %s proceeds are %s", holder, amount)
		}
	}
	for _, step := range result.Steps {
		if step.Amount.IsNegative() {
			report.addError(CodeNegativeStepAmount, "step %d (%s) amount is %s", step.Order, step.ShareClassID, step.Amount)
		}
	}

	net := sc.NetProceeds()
	total := result.TotalDistributed()
	tolerance := net.Abs().Mul(conservationTolerance)
	gap := total.Sub(net).Abs()
	if gap.GreaterThan(tolerance) {
		if total.LessThan(net) {
			// An undistributed remainder usually means the table has no
			// residual-eligible positions; surfaced as its own code so
			// callers can tell it from an arithmetic fault.
			report.addError(CodeUndistributedExcess, "distributed %s of %s net proceeds, %s unallocated", total, net, net.Sub(total))
		} else {
			report.addError(CodeValueNotConserved, "distributed %s exceeds %s net proceeds", total, net)
		}
	}

	return report
}
