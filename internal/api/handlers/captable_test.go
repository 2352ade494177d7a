package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/equitydesk/captable-backend/internal/testutil"
)

// eventEnvelope mirrors EventResponse minus the typed event body, which
// decodes into an interface and so cannot round-trip in tests.
type eventEnvelope struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	EventDate string `json:"event_date"`
}

func setupCapTableHandler(t *testing.T) (*CapTableHandler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cs := testutil.NewTestCapTableService(t, db)
	testutil.SeedFounderTable(t, cs)
	return NewCapTableHandler(cs), db
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestCapTableHandler_Snapshot(t *testing.T) {
	t.Run("returns the replayed state as of a date", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/captable/snapshot", map[string]string{
			"as_of": "2024-01-01",
		})
		w := httptest.NewRecorder()

		handler.Snapshot(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response SnapshotResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if !response.TotalSharesOutstanding.Equal(testutil.Dec(10_000_000)) {
			t.Errorf("Expected 10000000 outstanding, got %s", response.TotalSharesOutstanding)
		}
		if len(response.Positions) != 2 {
			t.Errorf("Expected 2 positions, got %d", len(response.Positions))
		}
		if response.AsOf != "2024-01-01" {
			t.Errorf("Expected as_of 2024-01-01, got %s", response.AsOf)
		}
	})

	t.Run("rejects malformed as_of dates", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/captable/snapshot", map[string]string{
			"as_of": "January 2024",
		})
		w := httptest.NewRecorder()

		handler.Snapshot(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("excludes events dated after the snapshot", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/captable/snapshot", map[string]string{
			"as_of": "2022-12-31",
		})
		w := httptest.NewRecorder()

		handler.Snapshot(w, req)

		var response SnapshotResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if !response.TotalSharesOutstanding.IsZero() {
			t.Errorf("Expected empty table before incorporation, got %s outstanding", response.TotalSharesOutstanding)
		}
	})
}

func TestCapTableHandler_Ownership(t *testing.T) {
	t.Run("returns a holder's fraction of issued shares", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/captable/ownership", map[string]string{
			"holder_id": "alice",
			"as_of":     "2024-01-01",
		})
		w := httptest.NewRecorder()

		handler.Ownership(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response OwnershipResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if !response.Percentage.Equal(testutil.Dec(0.7)) {
			t.Errorf("Expected 0.7, got %s", response.Percentage)
		}
	})

	t.Run("requires holder_id", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/captable/ownership", map[string]string{
			"as_of": "2024-01-01",
		})
		w := httptest.NewRecorder()

		handler.Ownership(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("unknown holders own zero", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/captable/ownership", map[string]string{
			"holder_id": "nobody",
			"as_of":     "2024-01-01",
		})
		w := httptest.NewRecorder()

		handler.Ownership(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response OwnershipResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if !response.Percentage.IsZero() {
			t.Errorf("Expected 0, got %s", response.Percentage)
		}
	})
}

func TestCapTableHandler_CreateEvent(t *testing.T) {
	t.Run("appends a valid issuance", func(t *testing.T) {
		handler, db := setupCapTableHandler(t)

		body := `{
			"event_type": "share_issuance",
			"payload": {
				"event_id": "seed",
				"event_date": "2023-09-01T00:00:00Z",
				"holder_id": "seed_fund",
				"share_class_id": "seed_preferred",
				"shares": "2500000",
				"price_per_share": "0.80"
			}
		}`
		w := postJSON(t, handler.CreateEvent, "/api/captable/events", body)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}

		// The Event field holds an interface and cannot be decoded back;
		// tests read only the envelope.
		var response eventEnvelope
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if response.EventID != "seed" || response.EventType != "share_issuance" {
			t.Errorf("Unexpected envelope: %+v", response)
		}
		testutil.AssertRowCount(t, db, "cap_table_event", 3)
	})

	t.Run("assigns an event id when the payload omits one", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		body := `{
			"event_type": "share_issuance",
			"payload": {
				"event_date": "2023-09-01T00:00:00Z",
				"holder_id": "seed_fund",
				"share_class_id": "seed_preferred",
				"shares": "2500000"
			}
		}`
		w := postJSON(t, handler.CreateEvent, "/api/captable/events", body)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}

		var response eventEnvelope
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if response.EventID == "" {
			t.Error("Expected a server-assigned event_id")
		}
	})

	t.Run("rejects duplicate event ids with 409", func(t *testing.T) {
		handler, db := setupCapTableHandler(t)

		body := `{
			"event_type": "share_issuance",
			"payload": {
				"event_id": "founders-alice",
				"event_date": "2023-06-01T00:00:00Z",
				"holder_id": "alice",
				"share_class_id": "common",
				"shares": "1"
			}
		}`
		w := postJSON(t, handler.CreateEvent, "/api/captable/events", body)

		if w.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "cap_table_event", 2)
	})

	t.Run("rejects events that violate cap table state with 422", func(t *testing.T) {
		handler, db := setupCapTableHandler(t)

		// bob only holds 3M shares.
		body := `{
			"event_type": "share_transfer",
			"payload": {
				"event_id": "oversold",
				"event_date": "2023-07-01T00:00:00Z",
				"from_holder_id": "bob",
				"to_holder_id": "carol",
				"share_class_id": "common",
				"shares": "4000000"
			}
		}`
		w := postJSON(t, handler.CreateEvent, "/api/captable/events", body)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected 422, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "cap_table_event", 2)
	})

	t.Run("rejects unknown event types with 400", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		body := `{"event_type": "stock_split", "payload": {"event_id": "x"}}`
		w := postJSON(t, handler.CreateEvent, "/api/captable/events", body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("rejects malformed bodies with 400", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		w := postJSON(t, handler.CreateEvent, "/api/captable/events", `{"event_type":`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestCapTableHandler_Events(t *testing.T) {
	t.Run("lists the log in replay order", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/api/captable/events", nil)
		w := httptest.NewRecorder()

		handler.Events(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response []eventEnvelope
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if len(response) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(response))
		}
		if response[0].EventID != "founders-alice" || response[1].EventID != "founders-bob" {
			t.Errorf("Unexpected order: %s, %s", response[0].EventID, response[1].EventID)
		}
	})
}

func TestCapTableHandler_Event(t *testing.T) {
	t.Run("returns one event by id", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/captable/events/founders-alice", map[string]string{
			"eventId": "founders-alice",
		})
		w := httptest.NewRecorder()

		handler.Event(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response eventEnvelope
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if response.EventType != "share_issuance" {
			t.Errorf("Expected share_issuance, got %s", response.EventType)
		}
	})

	t.Run("returns 404 for unknown ids", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/captable/events/ghost", map[string]string{
			"eventId": "ghost",
		})
		w := httptest.NewRecorder()

		handler.Event(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestCapTableHandler_Validate(t *testing.T) {
	t.Run("healthy tables validate clean", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/captable/validate", map[string]string{
			"as_of": "2024-01-01",
		})
		w := httptest.NewRecorder()

		handler.Validate(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response struct {
			Valid bool `json:"valid"`
		}
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if !response.Valid {
			t.Errorf("Expected a valid report: %s", w.Body.String())
		}
	})
}

func TestCapTableHandler_ShareClasses(t *testing.T) {
	t.Run("registers and lists share classes", func(t *testing.T) {
		handler, db := setupCapTableHandler(t)

		body := `{
			"id": "series_a",
			"name": "Series A Preferred",
			"type": "preferred",
			"liquidation_preference": {"multiple": "1.5", "seniority_rank": 0},
			"participation": {"kind": "non_participating"},
			"conversion": {"target_class_id": "common", "ratio": "1"}
		}`
		w := postJSON(t, handler.CreateShareClass, "/api/captable/share-classes", body)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "share_class", 3)

		req := httptest.NewRequest(http.MethodGet, "/api/captable/share-classes", nil)
		lw := httptest.NewRecorder()
		handler.ShareClasses(lw, req)

		if lw.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", lw.Code, lw.Body.String())
		}

		var classes []struct {
			ID string `json:"id"`
		}
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(lw.Body).Decode(&classes)

		if len(classes) != 3 {
			t.Errorf("Expected 3 classes, got %d", len(classes))
		}
	})

	t.Run("rejects duplicate class ids with 409", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		body := `{"id": "common", "name": "Common Stock", "type": "common"}`
		w := postJSON(t, handler.CreateShareClass, "/api/captable/share-classes", body)

		if w.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("rejects preferred classes without a liquidation preference", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		body := `{"id": "series_x", "name": "Series X", "type": "preferred"}`
		w := postJSON(t, handler.CreateShareClass, "/api/captable/share-classes", body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("rejects requests missing identity fields", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		w := postJSON(t, handler.CreateShareClass, "/api/captable/share-classes", `{}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestCapTableHandler_Refresh(t *testing.T) {
	t.Run("rebuilds the cached ledger and reports the log size", func(t *testing.T) {
		handler, _ := setupCapTableHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/api/captable/refresh", nil)
		w := httptest.NewRecorder()

		handler.Refresh(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var refreshed RefreshResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&refreshed)

		// The seeded table holds the two founder issuances.
		if refreshed.Events != 2 {
			t.Errorf("Expected 2 events after refresh, got %d", refreshed.Events)
		}
	})
}
