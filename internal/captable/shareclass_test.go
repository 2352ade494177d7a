package captable_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/apperrors"
	"github.com/equitydesk/captable-backend/internal/captable"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func nd(f float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(f), Valid: true}
}

func common() captable.ShareClass {
	return captable.ShareClass{
		ID:   "common",
		Name: "Common Stock",
		Type: captable.ShareTypeCommon,
	}
}

func preferred(id string, rank int, kind captable.ParticipationKind, cap decimal.NullDecimal) captable.ShareClass {
	return captable.ShareClass{
		ID:   id,
		Name: id,
		Type: captable.ShareTypePreferred,
		LiquidationPreference: &captable.LiquidationPreference{
			Multiple:      decimal.NewFromInt(1),
			SeniorityRank: rank,
		},
		Participation: &captable.ParticipationRights{Kind: kind, CapMultiple: cap},
		Conversion: &captable.ConversionRights{
			TargetClassID: "common",
			Ratio:         decimal.NewFromInt(1),
		},
	}
}

func TestShareClassValidate(t *testing.T) {
	tests := []struct {
		name    string
		class   captable.ShareClass
		wantErr bool
	}{
		{"plain common", common(), false},
		{"preferred with preference", preferred("series_a", 0, captable.NonParticipating, decimal.NullDecimal{}), false},
		{
			"preferred without preference",
			captable.ShareClass{ID: "series_a", Name: "Series A", Type: captable.ShareTypePreferred},
			true,
		},
		{
			"option class with preference",
			captable.ShareClass{
				ID:                    "pool",
				Type:                  captable.ShareTypeOption,
				LiquidationPreference: &captable.LiquidationPreference{Multiple: decimal.NewFromInt(1)},
			},
			true,
		},
		{
			"capped participation without cap",
			captable.ShareClass{
				ID:                    "series_b",
				Type:                  captable.ShareTypePreferred,
				LiquidationPreference: &captable.LiquidationPreference{Multiple: decimal.NewFromInt(1)},
				Participation:         &captable.ParticipationRights{Kind: captable.CappedParticipating},
			},
			true,
		},
		{"cap multiple of exactly 1.0", preferred("series_b", 0, captable.CappedParticipating, nd(1.0)), true},
		{"cap multiple above 1.0", preferred("series_b", 0, captable.CappedParticipating, nd(3.0)), false},
		{"cap on non-capped kind", preferred("series_b", 0, captable.Participating, nd(2.0)), true},
		{"negative multiple", captable.ShareClass{
			ID:                    "series_c",
			Type:                  captable.ShareTypePreferred,
			LiquidationPreference: &captable.LiquidationPreference{Multiple: d(-1)},
		}, true},
		{"missing ID", captable.ShareClass{Type: captable.ShareTypeCommon}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.class.Validate()
			if tt.wantErr && !errors.Is(err, apperrors.ErrInvalidShareClass) {
				t.Fatalf("expected ErrInvalidShareClass, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := captable.NewRegistry()
	if err := reg.Register(common()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := reg.Register(common())
	if !errors.Is(err, apperrors.ErrDuplicateShareClass) {
		t.Fatalf("expected ErrDuplicateShareClass, got %v", err)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	reg := captable.NewRegistry()
	if err := reg.Register(common()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := reg.Get("common"); !ok {
		t.Error("registered class not found")
	}
	if _, ok := reg.Get("series_z"); ok {
		t.Error("unregistered class found")
	}
}

func TestShareClass_ConversionRatioDefaultsToOne(t *testing.T) {
	sc := common()
	if !sc.ConversionRatio().Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected default ratio 1, got %s", sc.ConversionRatio())
	}
}
