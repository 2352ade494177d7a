package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/equitydesk/captable-backend/internal/repository"
	"github.com/equitydesk/captable-backend/internal/service"
)

func NewTestCapTableService(t *testing.T, db *sql.DB) *service.CapTableService {
	t.Helper()

	classRepo := repository.NewShareClassRepository(db)
	eventRepo := repository.NewEventRepository(db)

	return service.NewCapTableService(classRepo, eventRepo)
}

func NewTestWaterfallService(t *testing.T, db *sql.DB) *service.WaterfallService {
	t.Helper()

	return service.NewWaterfallService(NewTestCapTableService(t, db))
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}
