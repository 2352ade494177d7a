package repository_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/apperrors"
	"github.com/equitydesk/captable-backend/internal/captable"
	"github.com/equitydesk/captable-backend/internal/repository"
	"github.com/equitydesk/captable-backend/internal/testutil"
)

func TestEventRepository_ListPreservesReplayOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEventRepository(db)

	// Inserted out of date order, plus two same-date events whose insertion
	// order must survive the round trip.
	events := []captable.Event{
		testutil.Issuance(t, "late", testutil.Day(2024, time.June, 1), "carol", "common", 100, decimal.NullDecimal{}),
		testutil.Issuance(t, "early-first", testutil.Day(2023, time.January, 1), "alice", "common", 7_000_000, decimal.NullDecimal{}),
		testutil.Issuance(t, "early-second", testutil.Day(2023, time.January, 1), "bob", "common", 3_000_000, decimal.NullDecimal{}),
	}
	for _, ev := range events {
		if err := repo.SaveEvent(ev); err != nil {
			t.Fatalf("SaveEvent(%s): %v", ev.EventID(), err)
		}
	}

	loaded, err := repo.ListEvents()
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}

	wantOrder := []string{"early-first", "early-second", "late"}
	if len(loaded) != len(wantOrder) {
		t.Fatalf("loaded %d events, want %d", len(loaded), len(wantOrder))
	}
	for i, want := range wantOrder {
		if loaded[i].EventID() != want {
			t.Errorf("position %d: got %s, want %s", i, loaded[i].EventID(), want)
		}
	}
}

func TestEventRepository_RoundTripsTypedPayloads(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEventRepository(db)

	ev := testutil.Issuance(t, "seed", testutil.Day(2023, time.September, 1), "seed_fund", "seed_preferred", 2_500_000, testutil.NullDec(0.80))
	if err := repo.SaveEvent(ev); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}

	loaded, err := repo.GetEvent("seed")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	issuance, ok := loaded.(*captable.ShareIssuance)
	if !ok {
		t.Fatalf("loaded event has type %T, want *ShareIssuance", loaded)
	}
	if issuance.HolderID != "seed_fund" || !issuance.Shares.Equal(testutil.Dec(2_500_000)) {
		t.Errorf("round trip mangled the payload: %+v", issuance)
	}
	if !issuance.PricePerShare.Valid || !issuance.PricePerShare.Decimal.Equal(testutil.Dec(0.80)) {
		t.Errorf("price per share lost: %+v", issuance.PricePerShare)
	}
}

func TestEventRepository_RoundTripsCompositeEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEventRepository(db)

	meta, err := captable.NewEventMeta("seed-close", testutil.Day(2023, time.September, 1), "Seed round closing")
	if err != nil {
		t.Fatal(err)
	}
	pool, err := captable.NewOptionPoolCreation(meta2(t, "seed-pool"), decimal.Zero, captable.PoolTargetPostMoney, testutil.NullDec(0.10), "common")
	if err != nil {
		t.Fatal(err)
	}
	round, err := captable.NewRoundClosing(meta, "seed", "Seed Round", nil, nil,
		[]*captable.ShareIssuance{
			testutil.Issuance(t, "seed-lead", testutil.Day(2023, time.September, 1), "seed_fund", "seed_preferred", 2_500_000, testutil.NullDec(0.80)),
		}, pool, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveEvent(round); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}

	loaded, err := repo.GetEvent("seed-close")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	rc, ok := loaded.(*captable.RoundClosing)
	if !ok {
		t.Fatalf("loaded event has type %T, want *RoundClosing", loaded)
	}
	if len(rc.Issuances) != 1 || rc.Issuances[0].EventID() != "seed-lead" {
		t.Errorf("nested issuances lost: %+v", rc.Issuances)
	}
	if rc.PoolCreation == nil || rc.PoolCreation.Timing != captable.PoolTargetPostMoney {
		t.Errorf("nested pool creation lost: %+v", rc.PoolCreation)
	}
}

func TestEventRepository_GetEventNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEventRepository(db)

	_, err := repo.GetEvent("ghost")
	if !errors.Is(err, apperrors.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestEventRepository_RejectsDuplicateIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEventRepository(db)

	ev := testutil.Issuance(t, "once", testutil.Day(2023, time.January, 1), "alice", "common", 100, decimal.NullDecimal{})
	if err := repo.SaveEvent(ev); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := repo.SaveEvent(ev); err == nil {
		t.Fatal("second save with the same event ID should fail on the primary key")
	}
	testutil.AssertRowCount(t, db, "cap_table_event", 1)
}

func meta2(t *testing.T, id string) captable.EventMeta {
	t.Helper()
	m, err := captable.NewEventMeta(id, testutil.Day(2023, time.September, 1), "")
	if err != nil {
		t.Fatal(err)
	}
	return m
}
