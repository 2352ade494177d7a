package captable

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/apperrors"
)

// ShareType is the fundamental category of a share class.
type ShareType string

const (
	ShareTypeCommon    ShareType = "common"
	ShareTypePreferred ShareType = "preferred"
	ShareTypeOption    ShareType = "option"
	ShareTypeWarrant   ShareType = "warrant"
)

// ParticipationKind describes how a preferred class shares in proceeds after
// its liquidation preference.
type ParticipationKind string

const (
	// NonParticipating takes the better of its preference or its as-converted
	// share of the residual pool - never both.
	NonParticipating ParticipationKind = "non_participating"

	// Participating takes its preference and an as-converted share of the
	// residual pool ("double dip").
	Participating ParticipationKind = "participating"

	// CappedParticipating is Participating with total proceeds clamped at
	// CapMultiple times the original investment.
	CappedParticipating ParticipationKind = "capped_participating"
)

// AntiDilutionKind classifies anti-dilution protection. It is a tag only:
// ratio recalculation in down rounds is outside this engine.
type AntiDilutionKind string

const (
	AntiDilutionNone                  AntiDilutionKind = "none"
	AntiDilutionWeightedAverageBroad  AntiDilutionKind = "weighted_average_broad"
	AntiDilutionWeightedAverageNarrow AntiDilutionKind = "weighted_average_narrow"
	AntiDilutionFullRatchet           AntiDilutionKind = "full_ratchet"
)

// LiquidationPreference is the right to be paid a multiple of investment
// before junior classes in an exit. Rank 0 is paid first; classes sharing a
// pari-passu group split a tier's proceeds pro-rata by claim amount.
type LiquidationPreference struct {
	Multiple       decimal.Decimal `json:"multiple"`
	SeniorityRank  int             `json:"seniority_rank"`
	PariPassuGroup string          `json:"pari_passu_group,omitempty"`
}

// ParticipationRights describe post-preference participation. CapMultiple is
// required, and must exceed 1.0, exactly when Kind is CappedParticipating.
type ParticipationRights struct {
	Kind        ParticipationKind   `json:"kind"`
	CapMultiple decimal.NullDecimal `json:"cap_multiple"`
}

// ConversionRights allow converting into another class, normally common.
type ConversionRights struct {
	TargetClassID string          `json:"target_class_id"`
	Ratio         decimal.Decimal `json:"ratio"`
}

// ShareClass defines the economic rights attached to a class of shares.
type ShareClass struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Type ShareType `json:"type"`

	LiquidationPreference *LiquidationPreference `json:"liquidation_preference,omitempty"`
	Participation         *ParticipationRights   `json:"participation,omitempty"`
	Conversion            *ConversionRights      `json:"conversion,omitempty"`
	AntiDilution          AntiDilutionKind       `json:"anti_dilution,omitempty"`
}

// Validate checks the class definition eagerly, before it can enter a
// registry. Preferred classes must declare a liquidation preference;
// option and warrant classes must not.
func (sc ShareClass) Validate() error {
	if sc.ID == "" {
		return fmt.Errorf("%w: share class ID is required", apperrors.ErrInvalidShareClass)
	}
	switch sc.Type {
	case ShareTypeCommon, ShareTypePreferred, ShareTypeOption, ShareTypeWarrant:
	default:
		return fmt.Errorf("%w: %s: unknown share type %q", apperrors.ErrInvalidShareClass, sc.ID, sc.Type)
	}

	if sc.Type == ShareTypePreferred && sc.LiquidationPreference == nil {
		return fmt.Errorf("%w: %s: preferred class must declare a liquidation preference", apperrors.ErrInvalidShareClass, sc.ID)
	}
	if (sc.Type == ShareTypeOption || sc.Type == ShareTypeWarrant) && sc.LiquidationPreference != nil {
		return fmt.Errorf("%w: %s: %s class cannot carry a liquidation preference", apperrors.ErrInvalidShareClass, sc.ID, sc.Type)
	}

	if lp := sc.LiquidationPreference; lp != nil {
		if lp.Multiple.IsNegative() {
			return fmt.Errorf("%w: %s: preference multiple cannot be negative, got %s", apperrors.ErrInvalidShareClass, sc.ID, lp.Multiple)
		}
		if lp.SeniorityRank < 0 {
			return fmt.Errorf("%w: %s: seniority rank cannot be negative, got %d", apperrors.ErrInvalidShareClass, sc.ID, lp.SeniorityRank)
		}
	}

	if pr := sc.Participation; pr != nil {
		switch pr.Kind {
		case NonParticipating, Participating:
			if pr.CapMultiple.Valid {
				return fmt.Errorf("%w: %s: cap multiple is only valid for capped participation", apperrors.ErrInvalidShareClass, sc.ID)
			}
		case CappedParticipating:
			if !pr.CapMultiple.Valid {
				return fmt.Errorf("%w: %s: capped participation requires a cap multiple", apperrors.ErrInvalidShareClass, sc.ID)
			}
			if pr.CapMultiple.Decimal.LessThanOrEqual(decimal.NewFromInt(1)) {
				return fmt.Errorf("%w: %s: cap multiple must exceed 1.0, got %s", apperrors.ErrInvalidShareClass, sc.ID, pr.CapMultiple.Decimal)
			}
		default:
			return fmt.Errorf("%w: %s: unknown participation kind %q", apperrors.ErrInvalidShareClass, sc.ID, pr.Kind)
		}
	}

	if cr := sc.Conversion; cr != nil {
		if cr.TargetClassID == "" {
			return fmt.Errorf("%w: %s: conversion target class is required", apperrors.ErrInvalidShareClass, sc.ID)
		}
		if cr.Ratio.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: %s: conversion ratio must be positive, got %s", apperrors.ErrInvalidShareClass, sc.ID, cr.Ratio)
		}
	}

	return nil
}

// ConversionRatio returns the as-converted ratio into common, defaulting to
// 1:1 when the class declares no conversion rights.
func (sc ShareClass) ConversionRatio() decimal.Decimal {
	if sc.Conversion == nil {
		return decimal.NewFromInt(1)
	}
	return sc.Conversion.Ratio
}

// Registry maps share class IDs to their economic rights. It is the
// referential backbone for events and the waterfall: an event naming a class
// not present here is a domain violation.
type Registry struct {
	classes map[string]ShareClass
}

// NewRegistry creates an empty share class registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]ShareClass)}
}

// Register validates and adds a share class. Duplicate IDs are rejected.
func (r *Registry) Register(sc ShareClass) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	if _, exists := r.classes[sc.ID]; exists {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateShareClass, sc.ID)
	}
	r.classes[sc.ID] = sc
	return nil
}

// Get looks up a share class by ID.
func (r *Registry) Get(id string) (ShareClass, bool) {
	sc, ok := r.classes[id]
	return sc, ok
}

// IDs returns all registered class IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.classes))
	for id := range r.classes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// snapshotClasses copies the class map for embedding into a Snapshot, so a
// snapshot stays self-contained even if the registry later grows.
func (r *Registry) snapshotClasses() map[string]ShareClass {
	out := make(map[string]ShareClass, len(r.classes))
	for id, sc := range r.classes {
		out[id] = sc
	}
	return out
}
