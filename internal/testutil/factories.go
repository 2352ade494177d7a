package testutil

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/captable"
	"github.com/equitydesk/captable-backend/internal/service"
)

// Day builds a UTC midnight timestamp, the granularity cap table events use.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Dec converts a float into a decimal for test fixtures.
func Dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// NullDec builds a present optional decimal.
func NullDec(f float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(f), Valid: true}
}

// CommonClass returns a plain common stock class.
func CommonClass() captable.ShareClass {
	return captable.ShareClass{
		ID:   "common",
		Name: "Common Stock",
		Type: captable.ShareTypeCommon,
	}
}

// PreferredClass returns a 1x non-participating preferred class converting
// 1:1 into common.
func PreferredClass(id string, rank int) captable.ShareClass {
	return captable.ShareClass{
		ID:   id,
		Name: id,
		Type: captable.ShareTypePreferred,
		LiquidationPreference: &captable.LiquidationPreference{
			Multiple:      decimal.NewFromInt(1),
			SeniorityRank: rank,
		},
		Participation: &captable.ParticipationRights{Kind: captable.NonParticipating},
		Conversion: &captable.ConversionRights{
			TargetClassID: "common",
			Ratio:         decimal.NewFromInt(1),
		},
	}
}

// Issuance builds a share issuance event, failing the test on invalid input.
func Issuance(t *testing.T, id string, date time.Time, holder, class string, shares float64, price decimal.NullDecimal) *captable.ShareIssuance {
	t.Helper()
	meta, err := captable.NewEventMeta(id, date, "")
	if err != nil {
		t.Fatalf("NewEventMeta(%s): %v", id, err)
	}
	ev, err := captable.NewShareIssuance(meta, holder, class, decimal.NewFromFloat(shares), price, "")
	if err != nil {
		t.Fatalf("NewShareIssuance(%s): %v", id, err)
	}
	return ev
}

// SeedFounderTable registers common + seed preferred classes and issues the
// standard two-founder table: alice 7M and bob 3M common on 2023-01-01.
func SeedFounderTable(t *testing.T, svc *service.CapTableService) {
	t.Helper()

	for _, sc := range []captable.ShareClass{CommonClass(), PreferredClass("seed_preferred", 0)} {
		if err := svc.RegisterShareClass(sc); err != nil {
			t.Fatalf("RegisterShareClass(%s): %v", sc.ID, err)
		}
	}
	for _, ev := range []captable.Event{
		Issuance(t, "founders-alice", Day(2023, time.January, 1), "alice", "common", 7_000_000, decimal.NullDecimal{}),
		Issuance(t, "founders-bob", Day(2023, time.January, 1), "bob", "common", 3_000_000, decimal.NullDecimal{}),
	} {
		if err := svc.AppendEvent(ev); err != nil {
			t.Fatalf("AppendEvent(%s): %v", ev.EventID(), err)
		}
	}
}
