package captable

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/apperrors"
	"github.com/equitydesk/captable-backend/internal/instrument"
)

// ShareIssuance grants shares of a class to a holder: founder stock at
// incorporation, investor shares in a round, restricted stock grants.
type ShareIssuance struct {
	EventMeta
	HolderID          string              `json:"holder_id"`
	ShareClassID      string              `json:"share_class_id"`
	Shares            decimal.Decimal     `json:"shares"`
	PricePerShare     decimal.NullDecimal `json:"price_per_share"`
	VestingScheduleID string              `json:"vesting_schedule_id,omitempty"`
}

// NewShareIssuance builds a share issuance event. Price per share is
// optional; when absent the resulting position has no cost basis (founder
// shares).
func NewShareIssuance(meta EventMeta, holderID, shareClassID string, shares decimal.Decimal, pricePerShare decimal.NullDecimal, vestingScheduleID string) (*ShareIssuance, error) {
	if holderID == "" || shareClassID == "" {
		return nil, fmt.Errorf("%w: event %s: holder and share class are required", apperrors.ErrInvalidEvent, meta.ID)
	}
	if shares.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: event %s: shares must be positive, got %s", apperrors.ErrInvalidEvent, meta.ID, shares)
	}
	if pricePerShare.Valid && pricePerShare.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: event %s: price per share cannot be negative", apperrors.ErrInvalidEvent, meta.ID)
	}
	return &ShareIssuance{
		EventMeta:         meta,
		HolderID:          holderID,
		ShareClassID:      shareClassID,
		Shares:            shares,
		PricePerShare:     pricePerShare,
		VestingScheduleID: vestingScheduleID,
	}, nil
}

func (*ShareIssuance) Type() EventType { return EventShareIssuance }

func (e *ShareIssuance) apply(s *Snapshot) error {
	var basis decimal.NullDecimal
	if e.PricePerShare.Valid {
		basis = decimal.NullDecimal{Decimal: e.PricePerShare.Decimal.Mul(e.Shares), Valid: true}
	}
	return s.addPosition(Position{
		HolderID:          e.HolderID,
		ShareClassID:      e.ShareClassID,
		Shares:            e.Shares,
		AcquisitionDate:   e.Date,
		CostBasis:         basis,
		VestingScheduleID: e.VestingScheduleID,
	})
}

// ShareTransfer moves shares between holders (a secondary sale). Total
// shares outstanding never changes. When ResultingShareClassID is set the
// buyer receives a different class than the seller gave up - negotiated
// "alchemy" in secondary transactions.
type ShareTransfer struct {
	EventMeta
	FromHolderID          string              `json:"from_holder_id"`
	ToHolderID            string              `json:"to_holder_id"`
	ShareClassID          string              `json:"share_class_id"`
	Shares                decimal.Decimal     `json:"shares"`
	PricePerShare         decimal.NullDecimal `json:"price_per_share"`
	ResultingShareClassID string              `json:"resulting_share_class_id,omitempty"`
}

// NewShareTransfer builds a transfer event.
func NewShareTransfer(meta EventMeta, fromHolderID, toHolderID, shareClassID string, shares decimal.Decimal, pricePerShare decimal.NullDecimal, resultingShareClassID string) (*ShareTransfer, error) {
	if fromHolderID == "" || toHolderID == "" || shareClassID == "" {
		return nil, fmt.Errorf("%w: event %s: holders and share class are required", apperrors.ErrInvalidEvent, meta.ID)
	}
	if fromHolderID == toHolderID {
		return nil, fmt.Errorf("%w: event %s: cannot transfer shares to the same holder", apperrors.ErrInvalidEvent, meta.ID)
	}
	if shares.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: event %s: shares must be positive, got %s", apperrors.ErrInvalidEvent, meta.ID, shares)
	}
	return &ShareTransfer{
		EventMeta:             meta,
		FromHolderID:          fromHolderID,
		ToHolderID:            toHolderID,
		ShareClassID:          shareClassID,
		Shares:                shares,
		PricePerShare:         pricePerShare,
		ResultingShareClassID: resultingShareClassID,
	}, nil
}

func (*ShareTransfer) Type() EventType { return EventShareTransfer }

func (e *ShareTransfer) apply(s *Snapshot) error {
	resulting := e.ResultingShareClassID
	if resulting == "" {
		resulting = e.ShareClassID
	}
	if _, ok := s.Classes[resulting]; !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownShareClass, resulting)
	}
	if err := s.reducePosition(e.FromHolderID, e.ShareClassID, e.Shares); err != nil {
		return err
	}
	var basis decimal.NullDecimal
	if e.PricePerShare.Valid {
		basis = decimal.NullDecimal{Decimal: e.PricePerShare.Decimal.Mul(e.Shares), Valid: true}
	}
	return s.addPosition(Position{
		HolderID:        e.ToHolderID,
		ShareClassID:    resulting,
		Shares:          e.Shares,
		AcquisitionDate: e.Date,
		CostBasis:       basis,
	})
}

// Conversion exchanges shares of one class for another at a fixed ratio:
// preferred converting to common at exit, or a split expressed as an N:1
// conversion.
type Conversion struct {
	EventMeta
	HolderID        string          `json:"holder_id"`
	FromClassID     string          `json:"from_class_id"`
	ToClassID       string          `json:"to_class_id"`
	SharesConverted decimal.Decimal `json:"shares_converted"`
	Ratio           decimal.Decimal `json:"ratio"`
}

// NewConversion builds a conversion event. Ratio is the number of target
// shares produced per converted share and must be positive.
func NewConversion(meta EventMeta, holderID, fromClassID, toClassID string, sharesConverted, ratio decimal.Decimal) (*Conversion, error) {
	if holderID == "" || fromClassID == "" || toClassID == "" {
		return nil, fmt.Errorf("%w: event %s: holder and both classes are required", apperrors.ErrInvalidEvent, meta.ID)
	}
	if sharesConverted.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: event %s: shares converted must be positive, got %s", apperrors.ErrInvalidEvent, meta.ID, sharesConverted)
	}
	if ratio.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: event %s: conversion ratio must be positive, got %s", apperrors.ErrInvalidEvent, meta.ID, ratio)
	}
	return &Conversion{
		EventMeta:       meta,
		HolderID:        holderID,
		FromClassID:     fromClassID,
		ToClassID:       toClassID,
		SharesConverted: sharesConverted,
		Ratio:           ratio,
	}, nil
}

func (*Conversion) Type() EventType { return EventConversion }

func (e *Conversion) apply(s *Snapshot) error {
	if _, ok := s.Classes[e.ToClassID]; !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownShareClass, e.ToClassID)
	}
	if err := s.reducePosition(e.HolderID, e.FromClassID, e.SharesConverted); err != nil {
		return err
	}
	return s.addPosition(Position{
		HolderID:        e.HolderID,
		ShareClassID:    e.ToClassID,
		Shares:          e.SharesConverted.Mul(e.Ratio),
		AcquisitionDate: e.Date,
	})
}

// OptionExercise converts granted options into issued shares: the pool's
// availability drops, the holder pays the strike, and shares land in the
// resulting class. Exercises draw from a pre-money pool reserve when one
// exists; otherwise new shares are issued.
type OptionExercise struct {
	EventMeta
	HolderID              string          `json:"holder_id"`
	OptionGrantID         string          `json:"option_grant_id,omitempty"`
	SharesExercised       decimal.Decimal `json:"shares_exercised"`
	ExercisePrice         decimal.Decimal `json:"exercise_price"`
	ResultingShareClassID string          `json:"resulting_share_class_id"`
}

// NewOptionExercise builds an option exercise event.
func NewOptionExercise(meta EventMeta, holderID, optionGrantID string, sharesExercised, exercisePrice decimal.Decimal, resultingShareClassID string) (*OptionExercise, error) {
	if holderID == "" || resultingShareClassID == "" {
		return nil, fmt.Errorf("%w: event %s: holder and resulting share class are required", apperrors.ErrInvalidEvent, meta.ID)
	}
	if sharesExercised.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: event %s: shares exercised must be positive, got %s", apperrors.ErrInvalidEvent, meta.ID, sharesExercised)
	}
	if exercisePrice.IsNegative() {
		return nil, fmt.Errorf("%w: event %s: exercise price cannot be negative", apperrors.ErrInvalidEvent, meta.ID)
	}
	return &OptionExercise{
		EventMeta:             meta,
		HolderID:              holderID,
		OptionGrantID:         optionGrantID,
		SharesExercised:       sharesExercised,
		ExercisePrice:         exercisePrice,
		ResultingShareClassID: resultingShareClassID,
	}, nil
}

func (*OptionExercise) Type() EventType { return EventOptionExercise }

func (e *OptionExercise) apply(s *Snapshot) error {
	if s.OptionPoolAvailable.LessThan(e.SharesExercised) {
		return fmt.Errorf("%w: %s available, %s requested",
			apperrors.ErrOptionPoolExhausted, s.OptionPoolAvailable, e.SharesExercised)
	}
	s.OptionPoolAvailable = s.OptionPoolAvailable.Sub(e.SharesExercised)

	// Shares reserved by a pre-money pool are already outstanding; move
	// those out of the reserve instead of issuing on top of them.
	fromReserve := decimal.Zero
	if reserve, ok := s.FindPosition(OptionPoolHolderID, e.ResultingShareClassID, false); ok {
		fromReserve = decimal.Min(reserve.Shares, e.SharesExercised)
	}
	if fromReserve.IsPositive() {
		if err := s.reducePosition(OptionPoolHolderID, e.ResultingShareClassID, fromReserve); err != nil {
			return err
		}
	}

	return s.addPosition(Position{
		HolderID:        e.HolderID,
		ShareClassID:    e.ResultingShareClassID,
		Shares:          e.SharesExercised,
		AcquisitionDate: e.Date,
		CostBasis:       decimal.NullDecimal{Decimal: e.ExercisePrice.Mul(e.SharesExercised), Valid: true},
	})
}

// SAFEConversion issues shares to a SAFE holder when a priced round closes.
// The conversion price and share count are computed by the round terms
// (better of cap and discount) and recorded here as facts.
type SAFEConversion struct {
	EventMeta
	HolderID              string          `json:"holder_id"`
	SAFE                  instrument.SAFE `json:"safe"`
	ConversionPrice       decimal.Decimal `json:"conversion_price"`
	SharesIssued          decimal.Decimal `json:"shares_issued"`
	ResultingShareClassID string          `json:"resulting_share_class_id"`
}

// NewSAFEConversion builds a SAFE conversion event.
func NewSAFEConversion(meta EventMeta, holderID string, safe instrument.SAFE, conversionPrice, sharesIssued decimal.Decimal, resultingShareClassID string) (*SAFEConversion, error) {
	if holderID == "" || resultingShareClassID == "" {
		return nil, fmt.Errorf("%w: event %s: holder and resulting share class are required", apperrors.ErrInvalidEvent, meta.ID)
	}
	if conversionPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: event %s: conversion price must be positive, got %s", apperrors.ErrInvalidEvent, meta.ID, conversionPrice)
	}
	if sharesIssued.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: event %s: shares issued must be positive, got %s", apperrors.ErrInvalidEvent, meta.ID, sharesIssued)
	}
	return &SAFEConversion{
		EventMeta:             meta,
		HolderID:              holderID,
		SAFE:                  safe,
		ConversionPrice:       conversionPrice,
		SharesIssued:          sharesIssued,
		ResultingShareClassID: resultingShareClassID,
	}, nil
}

func (*SAFEConversion) Type() EventType { return EventSAFEConversion }

func (e *SAFEConversion) apply(s *Snapshot) error {
	return s.addPosition(Position{
		HolderID:        e.HolderID,
		ShareClassID:    e.ResultingShareClassID,
		Shares:          e.SharesIssued,
		AcquisitionDate: e.Date,
		CostBasis:       decimal.NullDecimal{Decimal: e.SAFE.InvestmentAmount, Valid: true},
	})
}

// WarrantIssuance records a warrant grant as an unexercised option position
// in the warrant's underlying class. Warrant positions never count toward
// shares outstanding until exercised.
type WarrantIssuance struct {
	EventMeta
	HolderID string            `json:"holder_id"`
	Warrant  instrument.Warrant `json:"warrant"`
}

// NewWarrantIssuance builds a warrant issuance event.
func NewWarrantIssuance(meta EventMeta, holderID string, warrant instrument.Warrant) (*WarrantIssuance, error) {
	if holderID == "" {
		return nil, fmt.Errorf("%w: event %s: holder is required", apperrors.ErrInvalidEvent, meta.ID)
	}
	return &WarrantIssuance{EventMeta: meta, HolderID: holderID, Warrant: warrant}, nil
}

func (*WarrantIssuance) Type() EventType { return EventWarrantIssuance }

func (e *WarrantIssuance) apply(s *Snapshot) error {
	return s.addPosition(Position{
		HolderID:        e.HolderID,
		ShareClassID:    e.Warrant.ShareClassID,
		Shares:          e.Warrant.SharesPurchasable,
		AcquisitionDate: e.Date,
		IsOption:        true,
		ExercisePrice:   decimal.NullDecimal{Decimal: e.Warrant.ExercisePrice, Valid: true},
		ExpirationDate:  e.Warrant.ExpirationDate,
	})
}

// PoolTiming fixes when an option pool is carved relative to an investment,
// which decides who bears the dilution.
type PoolTiming string

const (
	// PoolPreMoney creates the pool before the investment: existing holders
	// are diluted immediately, so the reserved shares join the outstanding
	// total under the reserved pool holder.
	PoolPreMoney PoolTiming = "pre_money"

	// PoolPostMoney carves the pool out of an already-finalized post-money
	// total; shares outstanding do not change until options are exercised.
	PoolPostMoney PoolTiming = "post_money"

	// PoolTargetPostMoney sizes the pool backward from a target percentage
	// of the post-round fully diluted total. Like PoolPostMoney it does not
	// touch shares outstanding.
	PoolTargetPostMoney PoolTiming = "target_post_money"
)

// OptionPoolCreation authorizes (or expands) an option pool.
type OptionPoolCreation struct {
	EventMeta
	SharesAuthorized decimal.Decimal     `json:"shares_authorized"`
	Timing           PoolTiming          `json:"timing"`
	TargetPercentage decimal.NullDecimal `json:"target_percentage"`
	ShareClassID     string              `json:"share_class_id"`
}

// NewOptionPoolCreation builds a pool creation event. TargetPercentage is
// required, in (0, 1), exactly when timing is target_post_money; the other
// timings require an explicit positive share count.
func NewOptionPoolCreation(meta EventMeta, sharesAuthorized decimal.Decimal, timing PoolTiming, targetPercentage decimal.NullDecimal, shareClassID string) (*OptionPoolCreation, error) {
	if shareClassID == "" {
		return nil, fmt.Errorf("%w: event %s: pool share class is required", apperrors.ErrInvalidEvent, meta.ID)
	}
	switch timing {
	case PoolPreMoney, PoolPostMoney:
		if targetPercentage.Valid {
			return nil, fmt.Errorf("%w: event %s: target percentage is only valid for target_post_money pools", apperrors.ErrInvalidEvent, meta.ID)
		}
		if sharesAuthorized.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: event %s: pool shares must be positive, got %s", apperrors.ErrInvalidEvent, meta.ID, sharesAuthorized)
		}
	case PoolTargetPostMoney:
		if !targetPercentage.Valid {
			return nil, fmt.Errorf("%w: event %s: target_post_money pool requires a target percentage", apperrors.ErrInvalidEvent, meta.ID)
		}
		pct := targetPercentage.Decimal
		if pct.LessThanOrEqual(decimal.Zero) || pct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("%w: event %s: target percentage must be in (0, 1), got %s", apperrors.ErrInvalidEvent, meta.ID, pct)
		}
	default:
		return nil, fmt.Errorf("%w: event %s: unknown pool timing %q", apperrors.ErrInvalidEvent, meta.ID, timing)
	}
	return &OptionPoolCreation{
		EventMeta:        meta,
		SharesAuthorized: sharesAuthorized,
		Timing:           timing,
		TargetPercentage: targetPercentage,
		ShareClassID:     shareClassID,
	}, nil
}

func (*OptionPoolCreation) Type() EventType { return EventOptionPoolCreation }

func (e *OptionPoolCreation) apply(s *Snapshot) error {
	if _, ok := s.Classes[e.ShareClassID]; !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownShareClass, e.ShareClassID)
	}

	shares := e.SharesAuthorized
	if e.Timing == PoolTargetPostMoney {
		// Size the pool so that pool / (outstanding + pool) equals the
		// target. Inside a round closing this runs after the round's
		// issuances, so the outstanding total is already post-money.
		pct := e.TargetPercentage.Decimal
		shares = pct.Mul(s.TotalSharesOutstanding).Div(decimal.NewFromInt(1).Sub(pct))
	}

	s.OptionPoolAuthorized = s.OptionPoolAuthorized.Add(shares)
	s.OptionPoolAvailable = s.OptionPoolAvailable.Add(shares)

	if e.Timing == PoolPreMoney {
		return s.addPosition(Position{
			HolderID:        OptionPoolHolderID,
			ShareClassID:    e.ShareClassID,
			Shares:          shares,
			AcquisitionDate: e.Date,
		})
	}
	return nil
}

// RoundClosing is the composite event for a financing round. Sub-events are
// applied in a fixed order - SAFE conversions, then issuances, then the
// option pool, then warrants - because later sub-steps read totals
// established by earlier ones (a target_post_money pool sizes itself from
// the post-issuance outstanding total).
type RoundClosing struct {
	EventMeta
	RoundID   string `json:"round_id"`
	RoundName string `json:"round_name"`

	// Financing documents the priced instrument behind the round, when the
	// round was priced. It is descriptive: the issuances below carry the
	// resulting share movements.
	Financing *instrument.PricedRound `json:"financing,omitempty"`

	SAFEConversions  []*SAFEConversion   `json:"safe_conversions,omitempty"`
	Issuances        []*ShareIssuance    `json:"issuances,omitempty"`
	PoolCreation     *OptionPoolCreation `json:"pool_creation,omitempty"`
	WarrantIssuances []*WarrantIssuance  `json:"warrant_issuances,omitempty"`
}

// NewRoundClosing builds a round closing event.
func NewRoundClosing(meta EventMeta, roundID, roundName string, financing *instrument.PricedRound, safeConversions []*SAFEConversion, issuances []*ShareIssuance, poolCreation *OptionPoolCreation, warrantIssuances []*WarrantIssuance) (*RoundClosing, error) {
	if roundID == "" {
		return nil, fmt.Errorf("%w: event %s: round ID is required", apperrors.ErrInvalidEvent, meta.ID)
	}
	return &RoundClosing{
		EventMeta:        meta,
		RoundID:          roundID,
		RoundName:        roundName,
		Financing:        financing,
		SAFEConversions:  safeConversions,
		Issuances:        issuances,
		PoolCreation:     poolCreation,
		WarrantIssuances: warrantIssuances,
	}, nil
}

func (*RoundClosing) Type() EventType { return EventRoundClosing }

func (e *RoundClosing) apply(s *Snapshot) error {
	for _, conv := range e.SAFEConversions {
		if err := conv.apply(s); err != nil {
			return apperrors.Violation(conv.EventID(), err)
		}
	}
	for _, iss := range e.Issuances {
		if err := iss.apply(s); err != nil {
			return apperrors.Violation(iss.EventID(), err)
		}
	}
	if e.PoolCreation != nil {
		if err := e.PoolCreation.apply(s); err != nil {
			return apperrors.Violation(e.PoolCreation.EventID(), err)
		}
	}
	for _, w := range e.WarrantIssuances {
		if err := w.apply(s); err != nil {
			return apperrors.Violation(w.EventID(), err)
		}
	}
	return nil
}
