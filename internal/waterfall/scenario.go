// Package waterfall allocates a fixed exit value across the share classes of
// a cap table snapshot, honoring liquidation preferences, seniority tiers,
// pari-passu splits, and participation rights. Distribution is a pure
// function of (snapshot, scenario): the engine never mutates its inputs and
// the same pair always yields the same result.
package waterfall

import (
	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/apperrors"
)

// Scenario describes one exit hypothesis to distribute.
type Scenario struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`

	// ExitValue is the gross transaction value before any deductions.
	ExitValue decimal.Decimal `json:"exit_value"`

	// TransactionCostsPct and ManagementCarveoutPct are taken off the top,
	// in that order, before any class-level allocation. Fractions in [0, 1).
	TransactionCostsPct   decimal.Decimal `json:"transaction_costs_pct"`
	ManagementCarveoutPct decimal.Decimal `json:"management_carveout_pct"`

	// ReferencePricePerShare prices preference claims for positions with no
	// recorded cost basis (claim = shares x multiple x reference price).
	// Zero means the default of 1.00 per share.
	ReferencePricePerShare decimal.Decimal `json:"reference_price_per_share"`
}

// Validate rejects scenarios the engine cannot distribute. These are caller
// configuration errors and are never retried.
func (sc Scenario) Validate() error {
	if sc.ExitValue.IsNegative() {
		return apperrors.WaterfallConfig("exit value cannot be negative, got %s", sc.ExitValue)
	}
	one := decimal.NewFromInt(1)
	if sc.TransactionCostsPct.IsNegative() || sc.TransactionCostsPct.GreaterThanOrEqual(one) {
		return apperrors.WaterfallConfig("transaction costs must be a fraction in [0, 1), got %s", sc.TransactionCostsPct)
	}
	if sc.ManagementCarveoutPct.IsNegative() || sc.ManagementCarveoutPct.GreaterThanOrEqual(one) {
		return apperrors.WaterfallConfig("management carveout must be a fraction in [0, 1), got %s", sc.ManagementCarveoutPct)
	}
	if sc.ReferencePricePerShare.IsNegative() {
		return apperrors.WaterfallConfig("reference price cannot be negative, got %s", sc.ReferencePricePerShare)
	}
	return nil
}

// NetProceeds is the amount actually distributed:
// exit x (1 - costs) x (1 - carveout).
func (sc Scenario) NetProceeds() decimal.Decimal {
	one := decimal.NewFromInt(1)
	return sc.ExitValue.
		Mul(one.Sub(sc.TransactionCostsPct)).
		Mul(one.Sub(sc.ManagementCarveoutPct))
}

// referencePrice returns the per-share price used for basis-less preference
// claims, defaulting to 1.00.
func (sc Scenario) referencePrice() decimal.Decimal {
	if sc.ReferencePricePerShare.IsPositive() {
		return sc.ReferencePricePerShare
	}
	return decimal.NewFromInt(1)
}
