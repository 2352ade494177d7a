package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/equitydesk/captable-backend/internal/apperrors"
	"github.com/equitydesk/captable-backend/internal/testutil"
	"github.com/equitydesk/captable-backend/internal/waterfall"
)

func TestWaterfallService_Distribute(t *testing.T) {
	db := testutil.SetupTestDB(t)
	capTable := testutil.NewTestCapTableService(t, db)
	testutil.SeedFounderTable(t, capTable)
	if err := capTable.AppendEvent(testutil.Issuance(t, "seed", testutil.Day(2023, time.September, 1), "seed_fund", "seed_preferred", 2_500_000, testutil.NullDec(0.80))); err != nil {
		t.Fatal(err)
	}
	svc := testutil.NewTestWaterfallService(t, db)

	result, err := svc.Distribute(testutil.Day(2024, time.January, 1), waterfall.Scenario{
		ID:        "downside",
		ExitValue: testutil.Dec(1_000_000),
	})
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}

	// Below the $2M preference the investor sweeps everything.
	if !result.HolderProceeds["seed_fund"].Equal(testutil.Dec(1_000_000)) {
		t.Errorf("investor proceeds = %s, want 1000000", result.HolderProceeds["seed_fund"])
	}

	report := svc.ValidateDistribution(result, waterfall.Scenario{ID: "downside", ExitValue: testutil.Dec(1_000_000)})
	if !report.Valid {
		t.Errorf("distribution failed validation: %+v", report.Errors)
	}
}

func TestWaterfallService_DistributeScenariosKeepsOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	capTable := testutil.NewTestCapTableService(t, db)
	testutil.SeedFounderTable(t, capTable)
	svc := testutil.NewTestWaterfallService(t, db)

	scenarios := []waterfall.Scenario{
		{ID: "bear", ExitValue: testutil.Dec(1_000_000)},
		{ID: "base", ExitValue: testutil.Dec(10_000_000)},
		{ID: "bull", ExitValue: testutil.Dec(100_000_000)},
	}
	results, err := svc.DistributeScenarios(context.Background(), testutil.Day(2024, time.January, 1), scenarios)
	if err != nil {
		t.Fatalf("DistributeScenarios: %v", err)
	}

	if len(results) != len(scenarios) {
		t.Fatalf("got %d results, want %d", len(results), len(scenarios))
	}
	for i, sc := range scenarios {
		if results[i].ScenarioID != sc.ID {
			t.Errorf("result %d carries scenario %s, want %s", i, results[i].ScenarioID, sc.ID)
		}
		if !results[i].ExitValue.Equal(sc.ExitValue) {
			t.Errorf("result %d exit = %s, want %s", i, results[i].ExitValue, sc.ExitValue)
		}
	}
}

func TestWaterfallService_DistributeScenariosFailsFast(t *testing.T) {
	db := testutil.SetupTestDB(t)
	capTable := testutil.NewTestCapTableService(t, db)
	testutil.SeedFounderTable(t, capTable)
	svc := testutil.NewTestWaterfallService(t, db)

	scenarios := []waterfall.Scenario{
		{ID: "fine", ExitValue: testutil.Dec(1_000_000)},
		{ID: "broken", ExitValue: testutil.Dec(-1)},
	}
	_, err := svc.DistributeScenarios(context.Background(), testutil.Day(2024, time.January, 1), scenarios)
	var cfgErr *apperrors.WaterfallConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected WaterfallConfigError, got %v", err)
	}
}
