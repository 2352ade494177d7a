package waterfall

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/apperrors"
	"github.com/equitydesk/captable-backend/internal/captable"
)

// stake is one position's view of the waterfall: its preference claim, its
// as-converted share count, and the participation rights of its class.
type stake struct {
	holderID string
	classID  string

	shares      decimal.Decimal
	asConverted decimal.Decimal

	// preferred-only fields; zero-valued for common.
	preferred  bool
	rank       int
	claim      decimal.Decimal
	investment decimal.Decimal
	kind       captable.ParticipationKind
	capAmount  decimal.NullDecimal

	// converted marks a non-participating stake that chose its as-converted
	// value over its preference. Flips are one-directional within a run.
	converted bool

	prefPayout     decimal.Decimal
	residualPayout decimal.Decimal
}

func (st *stake) total() decimal.Decimal {
	return st.prefPayout.Add(st.residualPayout)
}

// joinsResidual reports whether the stake shares in the residual pool:
// common always, converted non-participating, and (capped) participating.
func (st *stake) joinsResidual() bool {
	if !st.preferred {
		return true
	}
	if st.converted {
		return true
	}
	return st.kind == captable.Participating || st.kind == captable.CappedParticipating
}

// Distribute allocates a scenario's net proceeds across the snapshot's
// positions. Seniority tiers are paid in ascending rank order, pari-passu
// classes split pro-rata by claim amount, non-participating preferred take
// the better of preference and as-converted value, and participating
// preferred double-dip subject to their cap. The result is deterministic.
func Distribute(snap *captable.Snapshot, sc Scenario) (*DistributionResult, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	stakes, err := collectStakes(snap, sc)
	if err != nil {
		return nil, err
	}

	net := sc.NetProceeds()

	// Non-participating better-of is a fixed point: converting one stake
	// changes the residual pool every other comparison depends on. Stakes
	// therefore convert one at a time. Each round trial-converts every
	// remaining candidate against a full re-distribution and commits only
	// the single most profitable flip, so simultaneous conversions can
	// never dilute each other below preferences the proceeds still cover.
	// Ties keep the preference, and committed conversions are never
	// reverted, so the loop is bounded by the stake count.
	runDistribution(stakes, net)
	for range stakes {
		if !convertBest(stakes, net) {
			break
		}
	}

	return buildResult(snap, sc, stakes, net), nil
}

// collectStakes turns snapshot positions into waterfall stakes and validates
// the class configuration the distribution depends on. Unexercised options,
// warrants, and unissued pool reserve shares receive nothing.
func collectStakes(snap *captable.Snapshot, sc Scenario) ([]*stake, error) {
	refPrice := sc.referencePrice()
	groupRanks := make(map[string]int)

	var stakes []*stake
	for _, pos := range snap.Positions {
		if pos.IsOption || pos.HolderID == captable.OptionPoolHolderID {
			continue
		}
		class, ok := snap.Class(pos.ShareClassID)
		if !ok {
			return nil, apperrors.WaterfallConfig("position references unknown share class %q", pos.ShareClassID)
		}

		st := &stake{
			holderID:    pos.HolderID,
			classID:     class.ID,
			shares:      pos.Shares,
			asConverted: pos.Shares.Mul(class.ConversionRatio()),
		}

		if lp := class.LiquidationPreference; lp != nil {
			st.preferred = true
			st.rank = lp.SeniorityRank

			if lp.PariPassuGroup != "" {
				if rank, seen := groupRanks[lp.PariPassuGroup]; seen && rank != lp.SeniorityRank {
					return nil, apperrors.WaterfallConfig(
						"pari-passu group %q spans seniority ranks %d and %d; no split ratio is defined across tiers",
						lp.PariPassuGroup, rank, lp.SeniorityRank)
				}
				groupRanks[lp.PariPassuGroup] = lp.SeniorityRank
			}

			st.investment = pos.Shares.Mul(refPrice)
			if pos.CostBasis.Valid {
				st.investment = pos.CostBasis.Decimal
			}
			st.claim = st.investment.Mul(lp.Multiple)

			st.kind = captable.NonParticipating
			if class.Participation != nil {
				st.kind = class.Participation.Kind
				st.capAmount = class.Participation.CapMultiple
			}
			if st.kind == captable.CappedParticipating {
				if !st.capAmount.Valid {
					return nil, apperrors.WaterfallConfig("class %q is capped-participating but has no cap multiple", class.ID)
				}
				if st.capAmount.Decimal.LessThanOrEqual(decimal.NewFromInt(1)) {
					return nil, apperrors.WaterfallConfig("class %q cap multiple must exceed 1.0, got %s", class.ID, st.capAmount.Decimal)
				}
				st.capAmount = decimal.NullDecimal{Decimal: st.capAmount.Decimal.Mul(st.investment), Valid: true}
			}
		}

		stakes = append(stakes, st)
	}
	return stakes, nil
}

// runDistribution computes every stake's payout for the current conversion
// choices: preference tiers first, then the residual pool.
func runDistribution(stakes []*stake, net decimal.Decimal) {
	for _, st := range stakes {
		st.prefPayout = decimal.Zero
		st.residualPayout = decimal.Zero
	}

	remaining := net
	for _, rank := range seniorityRanks(stakes) {
		var tier []*stake
		tierClaims := decimal.Zero
		for _, st := range stakes {
			if st.preferred && !st.converted && st.rank == rank {
				tier = append(tier, st)
				tierClaims = tierClaims.Add(st.claim)
			}
		}
		if tierClaims.IsZero() {
			continue
		}
		tierPay := decimal.Min(remaining, tierClaims)
		for _, st := range tier {
			st.prefPayout = tierPay.Mul(st.claim).Div(tierClaims)
		}
		remaining = remaining.Sub(tierPay)
	}

	distributeResidual(stakes, remaining)
}

// distributeResidual splits the post-preference pool pro-rata by as-converted
// shares among common, converted, and participating stakes. Capped stakes are
// clamped at their cap with the excess re-split among the remaining
// claimants, repeating until no stake is pushed over its cap. A pool with no
// eligible claimants stays undistributed.
func distributeResidual(stakes []*stake, pool decimal.Decimal) {
	if !pool.IsPositive() {
		return
	}

	active := make([]*stake, 0, len(stakes))
	for _, st := range stakes {
		if st.joinsResidual() && st.asConverted.IsPositive() {
			active = append(active, st)
		}
	}

	for len(active) > 0 && pool.IsPositive() {
		totalShares := decimal.Zero
		for _, st := range active {
			totalShares = totalShares.Add(st.asConverted)
		}

		// Clamp everyone against the pass-start pool so the outcome does
		// not depend on iteration order; the pool shrinks only by the
		// clamped amounts, and the excess re-splits next pass.
		passPool := pool
		capped := false
		next := active[:0]
		for _, st := range active {
			share := passPool.Mul(st.asConverted).Div(totalShares)
			if st.capAmount.Valid {
				room := st.capAmount.Decimal.Sub(st.prefPayout).Sub(st.residualPayout)
				if room.IsNegative() {
					room = decimal.Zero
				}
				if share.GreaterThanOrEqual(room) {
					st.residualPayout = st.residualPayout.Add(room)
					pool = pool.Sub(room)
					capped = true
					continue
				}
			}
			next = append(next, st)
		}
		active = next

		if !capped {
			for _, st := range active {
				st.residualPayout = st.residualPayout.Add(pool.Mul(st.asConverted).Div(totalShares))
			}
			return
		}
	}
}

// convertBest trial-converts each eligible non-participating stake in turn
// and commits the single conversion that improves its holder's payout the
// most. Every trial runs a full distribution, so the comparison prices in
// released preference claims, tier refills, capped-participation
// redistribution, and earlier conversions. Payouts reflect the committed
// choice on return; the return value reports whether a stake converted.
func convertBest(stakes []*stake, net decimal.Decimal) bool {
	baseline := make([]decimal.Decimal, len(stakes))
	for i, st := range stakes {
		baseline[i] = st.total()
	}

	var best *stake
	bestGain := decimal.Zero
	for i, st := range stakes {
		if !st.preferred || st.converted || st.kind != captable.NonParticipating {
			continue
		}
		if !st.asConverted.IsPositive() {
			continue
		}
		st.converted = true
		runDistribution(stakes, net)
		gain := st.total().Sub(baseline[i])
		st.converted = false
		if gain.GreaterThan(bestGain) {
			best = st
			bestGain = gain
		}
	}

	if best != nil {
		best.converted = true
	}
	runDistribution(stakes, net)
	return best != nil
}

func seniorityRanks(stakes []*stake) []int {
	seen := make(map[int]struct{})
	var ranks []int
	for _, st := range stakes {
		if !st.preferred {
			continue
		}
		if _, ok := seen[st.rank]; !ok {
			seen[st.rank] = struct{}{}
			ranks = append(ranks, st.rank)
		}
	}
	sort.Ints(ranks)
	return ranks
}

// buildResult aggregates final stake payouts into holder and class totals and
// the ordered step list. Every class with stakes appears in the steps even
// when its amount is zero.
func buildResult(snap *captable.Snapshot, sc Scenario, stakes []*stake, net decimal.Decimal) *DistributionResult {
	result := &DistributionResult{
		ScenarioID:     sc.ID,
		ExitValue:      sc.ExitValue,
		NetProceeds:    net,
		HolderProceeds: make(map[string]decimal.Decimal),
		ClassProceeds:  make(map[string]decimal.Decimal),
	}

	for _, st := range stakes {
		result.HolderProceeds[st.holderID] = result.HolderProceeds[st.holderID].Add(st.total())
		result.ClassProceeds[st.classID] = result.ClassProceeds[st.classID].Add(st.total())
	}

	order := 0
	for _, rank := range seniorityRanks(stakes) {
		for _, classID := range tierClassIDs(stakes, rank) {
			amount := decimal.Zero
			for _, st := range stakes {
				if st.classID == classID {
					amount = amount.Add(st.prefPayout)
				}
			}
			class := snap.Classes[classID]
			desc := fmt.Sprintf("%s liquidation preference (rank %d)", className(class, classID), rank)
			result.Steps = append(result.Steps, Step{
				Order:        order,
				ShareClassID: classID,
				Kind:         StepLiquidationPreference,
				Description:  desc,
				Amount:       amount,
			})
			order++
		}
	}

	for _, classID := range residualClassIDs(stakes) {
		amount := decimal.Zero
		for _, st := range stakes {
			if st.classID == classID {
				amount = amount.Add(st.residualPayout)
			}
		}
		class := snap.Classes[classID]
		result.Steps = append(result.Steps, Step{
			Order:        order,
			ShareClassID: classID,
			Kind:         StepResidual,
			Description:  fmt.Sprintf("%s residual distribution", className(class, classID)),
			Amount:       amount,
		})
		order++
	}

	return result
}

func tierClassIDs(stakes []*stake, rank int) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, st := range stakes {
		if !st.preferred || st.rank != rank {
			continue
		}
		if _, ok := seen[st.classID]; !ok {
			seen[st.classID] = struct{}{}
			ids = append(ids, st.classID)
		}
	}
	sort.Strings(ids)
	return ids
}

func residualClassIDs(stakes []*stake) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, st := range stakes {
		if !st.joinsResidual() {
			continue
		}
		if _, ok := seen[st.classID]; !ok {
			seen[st.classID] = struct{}{}
			ids = append(ids, st.classID)
		}
	}
	sort.Strings(ids)
	return ids
}

func className(class captable.ShareClass, fallback string) string {
	if class.Name != "" {
		return class.Name
	}
	return fallback
}
