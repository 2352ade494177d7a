package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/equitydesk/captable-backend/internal/testutil"
	"github.com/equitydesk/captable-backend/internal/validate"
	"github.com/equitydesk/captable-backend/internal/waterfall"
)

func setupWaterfallHandler(t *testing.T) (*WaterfallHandler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cs := testutil.NewTestCapTableService(t, db)
	testutil.SeedFounderTable(t, cs)
	if err := cs.AppendEvent(testutil.Issuance(t, "seed", testutil.Day(2023, time.September, 1), "seed_fund", "seed_preferred", 2_500_000, testutil.NullDec(0.80))); err != nil {
		t.Fatal(err)
	}
	return NewWaterfallHandler(testutil.NewTestWaterfallService(t, db)), db
}

func TestWaterfallHandler_Distribute(t *testing.T) {
	t.Run("distributes one scenario", func(t *testing.T) {
		handler, _ := setupWaterfallHandler(t)

		body := `{
			"as_of": "2024-01-01",
			"scenario": {"id": "downside", "exit_value": "1000000"}
		}`
		w := postJSON(t, handler.Distribute, "/api/waterfall/distribute", body)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var result waterfall.DistributionResult
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&result)

		// $1M sits under the $2M preference: the investor sweeps it all.
		if !result.HolderProceeds["seed_fund"].Equal(testutil.Dec(1_000_000)) {
			t.Errorf("Expected the investor to sweep 1000000, got %s", result.HolderProceeds["seed_fund"])
		}
		if len(result.Steps) == 0 {
			t.Error("Expected waterfall steps in the result")
		}
	})

	t.Run("rejects invalid scenario terms with 400", func(t *testing.T) {
		handler, _ := setupWaterfallHandler(t)

		body := `{
			"as_of": "2024-01-01",
			"scenario": {"id": "impossible", "exit_value": "-5"}
		}`
		w := postJSON(t, handler.Distribute, "/api/waterfall/distribute", body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("rejects scenarios without an id", func(t *testing.T) {
		handler, _ := setupWaterfallHandler(t)

		body := `{"as_of": "2024-01-01", "scenario": {"exit_value": "1000000"}}`
		w := postJSON(t, handler.Distribute, "/api/waterfall/distribute", body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestWaterfallHandler_Scenarios(t *testing.T) {
	t.Run("compares scenarios in request order", func(t *testing.T) {
		handler, _ := setupWaterfallHandler(t)

		body := `{
			"as_of": "2024-01-01",
			"scenarios": [
				{"id": "bear", "exit_value": "1000000"},
				{"id": "base", "exit_value": "10000000"},
				{"id": "bull", "exit_value": "100000000"}
			]
		}`
		w := postJSON(t, handler.Scenarios, "/api/waterfall/scenarios", body)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var results []waterfall.DistributionResult
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&results)

		if len(results) != 3 {
			t.Fatalf("Expected 3 results, got %d", len(results))
		}
		for i, want := range []string{"bear", "base", "bull"} {
			if results[i].ScenarioID != want {
				t.Errorf("Position %d: expected %s, got %s", i, want, results[i].ScenarioID)
			}
		}
	})

	t.Run("rejects empty scenario lists", func(t *testing.T) {
		handler, _ := setupWaterfallHandler(t)

		body := `{"as_of": "2024-01-01", "scenarios": []}`
		w := postJSON(t, handler.Scenarios, "/api/waterfall/scenarios", body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		handler, _ := setupWaterfallHandler(t)

		body := `{"as_of": "soon", "scenarios": [{"id": "a", "exit_value": "1"}]}`
		w := postJSON(t, handler.Scenarios, "/api/waterfall/scenarios", body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestWaterfallHandler_Validate(t *testing.T) {
	t.Run("healthy distribution reports valid", func(t *testing.T) {
		handler, _ := setupWaterfallHandler(t)

		body := `{
			"as_of": "2024-01-01",
			"scenario": {"id": "base", "exit_value": "10000000"}
		}`
		w := postJSON(t, handler.Validate, "/api/waterfall/validate", body)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var report validate.Report
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&report)

		if !report.Valid {
			t.Errorf("Expected a valid report, got errors: %v", report.Errors)
		}
	})

	t.Run("rejects invalid scenario terms with 400", func(t *testing.T) {
		handler, _ := setupWaterfallHandler(t)

		body := `{"as_of": "2024-01-01", "scenario": {"id": "bad", "exit_value": "-5"}}`
		w := postJSON(t, handler.Validate, "/api/waterfall/validate", body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}
