package service

import (
	"database/sql"

	"github.com/equitydesk/captable-backend/internal/database"
	"github.com/equitydesk/captable-backend/internal/model"
)

// appVersion is stamped at release time.
const appVersion = "1.2.0"

// SystemService handles system-related operations
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{
		db: db,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// CheckVersion returns application and schema version information.
func (s *SystemService) CheckVersion() (model.VersionInfo, error) {
	schemaVersion, err := database.SchemaVersion(s.db)
	if err != nil {
		return model.VersionInfo{}, err
	}
	return model.VersionInfo{
		AppVersion:    appVersion,
		SchemaVersion: schemaVersion,
		Features: map[string]bool{
			"waterfall_scenarios": true,
			"snapshot_validation": true,
		},
	}, nil
}
