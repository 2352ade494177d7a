// Package instrument models the financing instruments that appear on a cap
// table: SAFEs, priced equity rounds, interest-accruing convertible notes,
// and warrants.
//
// The Instrument interface is a closed union: every variant lives in this
// package and consumers switch exhaustively on Kind(). Constructors validate
// eagerly so a malformed instrument can never enter the event log.
//
// All monetary values and share counts use shopspring/decimal - never
// float64 for money.
package instrument

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/apperrors"
)

// Kind identifies an instrument variant.
type Kind string

const (
	KindSAFE            Kind = "safe"
	KindPricedRound     Kind = "priced_round"
	KindConvertibleNote Kind = "convertible_note"
	KindWarrant         Kind = "warrant"
)

// Instrument is the closed union of financing instrument variants.
type Instrument interface {
	Kind() Kind

	// sealed prevents implementations outside this package, keeping the
	// union closed for exhaustive switching.
	sealed()
}

// SAFEType distinguishes pre-money from post-money SAFEs.
type SAFEType string

const (
	SAFEPreMoney  SAFEType = "pre_money"
	SAFEPostMoney SAFEType = "post_money"
)

// SAFE is a Simple Agreement for Future Equity. It converts into priced
// equity in a later round, governed by a valuation cap and/or a discount
// rate. At least one of the two must be set; the holder gets whichever
// yields more shares at conversion.
type SAFE struct {
	InvestmentAmount decimal.Decimal     `json:"investment_amount"`
	ValuationCap     decimal.NullDecimal `json:"valuation_cap"`
	DiscountRate     decimal.NullDecimal `json:"discount_rate"`
	SAFEType         SAFEType            `json:"safe_type"`
}

// NewSAFE builds a SAFE, validating that the investment is positive and at
// least one of {cap, discount} is present. A zero SAFEType defaults to
// post-money (the standard form since 2018).
func NewSAFE(investment decimal.Decimal, cap, discount decimal.NullDecimal, safeType SAFEType) (SAFE, error) {
	if investment.LessThanOrEqual(decimal.Zero) {
		return SAFE{}, fmt.Errorf("%w: SAFE investment must be positive, got %s", apperrors.ErrInvalidInstrument, investment)
	}
	if !cap.Valid && !discount.Valid {
		return SAFE{}, fmt.Errorf("%w: SAFE requires a valuation cap and/or a discount rate", apperrors.ErrInvalidInstrument)
	}
	if cap.Valid && cap.Decimal.LessThanOrEqual(decimal.Zero) {
		return SAFE{}, fmt.Errorf("%w: SAFE valuation cap must be positive, got %s", apperrors.ErrInvalidInstrument, cap.Decimal)
	}
	if discount.Valid && (discount.Decimal.LessThanOrEqual(decimal.Zero) || discount.Decimal.GreaterThanOrEqual(decimal.NewFromInt(1))) {
		return SAFE{}, fmt.Errorf("%w: SAFE discount rate must be in (0, 1), got %s", apperrors.ErrInvalidInstrument, discount.Decimal)
	}
	if safeType == "" {
		safeType = SAFEPostMoney
	}
	if safeType != SAFEPreMoney && safeType != SAFEPostMoney {
		return SAFE{}, fmt.Errorf("%w: unknown SAFE type %q", apperrors.ErrInvalidInstrument, safeType)
	}
	return SAFE{
		InvestmentAmount: investment,
		ValuationCap:     cap,
		DiscountRate:     discount,
		SAFEType:         safeType,
	}, nil
}

func (SAFE) Kind() Kind { return KindSAFE }
func (SAFE) sealed()    {}

// PricedRound is a direct equity purchase at a negotiated price per share.
type PricedRound struct {
	InvestmentAmount  decimal.Decimal `json:"investment_amount"`
	PreMoneyValuation decimal.Decimal `json:"pre_money_valuation"`
	PricePerShare     decimal.Decimal `json:"price_per_share"`
	SharesIssued      decimal.Decimal `json:"shares_issued"`
}

// pricedRoundTolerance is the allowed relative drift between the stated
// investment amount and price_per_share * shares_issued (rounding slack).
var pricedRoundTolerance = decimal.NewFromFloat(0.01)

// NewPricedRound builds a priced equity instrument, validating that the
// stated investment matches price * shares within 1%.
func NewPricedRound(investment, preMoney, pricePerShare, sharesIssued decimal.Decimal) (PricedRound, error) {
	if investment.LessThanOrEqual(decimal.Zero) {
		return PricedRound{}, fmt.Errorf("%w: priced round investment must be positive, got %s", apperrors.ErrInvalidInstrument, investment)
	}
	if pricePerShare.LessThanOrEqual(decimal.Zero) {
		return PricedRound{}, fmt.Errorf("%w: price per share must be positive, got %s", apperrors.ErrInvalidInstrument, pricePerShare)
	}
	if sharesIssued.LessThanOrEqual(decimal.Zero) {
		return PricedRound{}, fmt.Errorf("%w: shares issued must be positive, got %s", apperrors.ErrInvalidInstrument, sharesIssued)
	}
	implied := pricePerShare.Mul(sharesIssued)
	diff := implied.Sub(investment).Abs()
	if diff.GreaterThan(investment.Mul(pricedRoundTolerance)) {
		return PricedRound{}, fmt.Errorf(
			"%w: price %s * shares %s = %s does not match investment %s within 1%%",
			apperrors.ErrInvalidInstrument, pricePerShare, sharesIssued, implied, investment)
	}
	return PricedRound{
		InvestmentAmount:  investment,
		PreMoneyValuation: preMoney,
		PricePerShare:     pricePerShare,
		SharesIssued:      sharesIssued,
	}, nil
}

func (PricedRound) Kind() Kind { return KindPricedRound }
func (PricedRound) sealed()    {}

// InterestKind selects the note's interest accrual formula.
type InterestKind string

const (
	InterestSimple   InterestKind = "simple"
	InterestCompound InterestKind = "compound"
)

// ConvertibleNote is debt that converts to equity, accruing interest from
// issue until conversion or maturity. Like a SAFE it needs a cap and/or a
// discount to define its conversion terms.
type ConvertibleNote struct {
	PrincipalAmount decimal.Decimal     `json:"principal_amount"`
	InterestRate    decimal.Decimal     `json:"interest_rate"`
	InterestKind    InterestKind        `json:"interest_kind"`
	IssueDate       time.Time           `json:"issue_date"`
	MaturityDate    time.Time           `json:"maturity_date"`
	ValuationCap    decimal.NullDecimal `json:"valuation_cap"`
	DiscountRate    decimal.NullDecimal `json:"discount_rate"`
}

// NewConvertibleNote builds an accruing note. The maturity date must be
// strictly after the issue date and at least one of {cap, discount} is
// required.
func NewConvertibleNote(
	principal, rate decimal.Decimal,
	interestKind InterestKind,
	issueDate, maturityDate time.Time,
	cap, discount decimal.NullDecimal,
) (ConvertibleNote, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return ConvertibleNote{}, fmt.Errorf("%w: note principal must be positive, got %s", apperrors.ErrInvalidInstrument, principal)
	}
	if rate.IsNegative() {
		return ConvertibleNote{}, fmt.Errorf("%w: note interest rate cannot be negative, got %s", apperrors.ErrInvalidInstrument, rate)
	}
	if interestKind == "" {
		interestKind = InterestSimple
	}
	if interestKind != InterestSimple && interestKind != InterestCompound {
		return ConvertibleNote{}, fmt.Errorf("%w: unknown interest kind %q", apperrors.ErrInvalidInstrument, interestKind)
	}
	if !maturityDate.After(issueDate) {
		return ConvertibleNote{}, fmt.Errorf("%w: note maturity date must be after issue date", apperrors.ErrInvalidInstrument)
	}
	if !cap.Valid && !discount.Valid {
		return ConvertibleNote{}, fmt.Errorf("%w: note requires a valuation cap and/or a discount rate", apperrors.ErrInvalidInstrument)
	}
	return ConvertibleNote{
		PrincipalAmount: principal,
		InterestRate:    rate,
		InterestKind:    interestKind,
		IssueDate:       issueDate,
		MaturityDate:    maturityDate,
		ValuationCap:    cap,
		DiscountRate:    discount,
	}, nil
}

func (ConvertibleNote) Kind() Kind { return KindConvertibleNote }
func (ConvertibleNote) sealed()    {}

// daysPerYear converts elapsed days to years, averaging over leap years.
var daysPerYear = decimal.NewFromFloat(365.25)

// AccruedAmount returns principal plus interest accrued from the issue date
// to asOf. Simple interest is linear (P * r * t); compound interest
// compounds annually (P * (1+r)^t). Dates before issue accrue nothing.
//
// The fractional exponent for compound interest is evaluated in float64 and
// converted back to decimal immediately; the error is far below the
// engine's monetary tolerances.
func (n ConvertibleNote) AccruedAmount(asOf time.Time) decimal.Decimal {
	if !asOf.After(n.IssueDate) {
		return n.PrincipalAmount
	}
	days := decimal.NewFromInt(int64(asOf.Sub(n.IssueDate).Hours() / 24))
	years := days.Div(daysPerYear)

	var interest decimal.Decimal
	if n.InterestKind == InterestSimple {
		interest = n.PrincipalAmount.Mul(n.InterestRate).Mul(years)
	} else {
		growth := math.Pow(
			decimal.NewFromInt(1).Add(n.InterestRate).InexactFloat64(),
			years.InexactFloat64(),
		)
		interest = n.PrincipalAmount.Mul(decimal.NewFromFloat(growth).Sub(decimal.NewFromInt(1)))
	}
	return n.PrincipalAmount.Add(interest)
}

// Warrant grants the right to purchase shares of a class at a strike price.
type Warrant struct {
	SharesPurchasable decimal.Decimal `json:"shares_purchasable"`
	ExercisePrice     decimal.Decimal `json:"exercise_price"`
	ShareClassID      string          `json:"share_class_id"`
	IssueDate         time.Time       `json:"issue_date"`
	ExpirationDate    *time.Time      `json:"expiration_date,omitempty"`
}

// NewWarrant builds a warrant. Expiration, when set, must fall after the
// issue date; a nil expiration means the warrant never lapses.
func NewWarrant(shares, exercisePrice decimal.Decimal, shareClassID string, issueDate time.Time, expiration *time.Time) (Warrant, error) {
	if shares.LessThanOrEqual(decimal.Zero) {
		return Warrant{}, fmt.Errorf("%w: warrant share count must be positive, got %s", apperrors.ErrInvalidInstrument, shares)
	}
	if exercisePrice.LessThanOrEqual(decimal.Zero) {
		return Warrant{}, fmt.Errorf("%w: warrant exercise price must be positive, got %s", apperrors.ErrInvalidInstrument, exercisePrice)
	}
	if shareClassID == "" {
		return Warrant{}, fmt.Errorf("%w: warrant share class ID is required", apperrors.ErrInvalidInstrument)
	}
	if expiration != nil && !expiration.After(issueDate) {
		return Warrant{}, fmt.Errorf("%w: warrant expiration must be after issue date", apperrors.ErrInvalidInstrument)
	}
	return Warrant{
		SharesPurchasable: shares,
		ExercisePrice:     exercisePrice,
		ShareClassID:      shareClassID,
		IssueDate:         issueDate,
		ExpirationDate:    expiration,
	}, nil
}

func (Warrant) Kind() Kind { return KindWarrant }
func (Warrant) sealed()    {}
