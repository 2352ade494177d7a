package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/equitydesk/captable-backend/internal/apperrors"
	"github.com/equitydesk/captable-backend/internal/captable"
)

// ShareClassRepository provides data access methods for the share_class
// table. The economic rights of a class are persisted as one JSON document in
// the rights column; they are always read and written as a unit.
type ShareClassRepository struct {
	db *sql.DB
}

// NewShareClassRepository creates a new repository instance.
func NewShareClassRepository(db *sql.DB) *ShareClassRepository {
	return &ShareClassRepository{db: db}
}

// classRights is the JSON document stored in the rights column.
type classRights struct {
	LiquidationPreference *captable.LiquidationPreference `json:"liquidation_preference,omitempty"`
	Participation         *captable.ParticipationRights   `json:"participation,omitempty"`
	Conversion            *captable.ConversionRights      `json:"conversion,omitempty"`
	AntiDilution          captable.AntiDilutionKind       `json:"anti_dilution,omitempty"`
}

// SaveShareClass persists a share class definition.
func (r *ShareClassRepository) SaveShareClass(sc captable.ShareClass) error {
	rights, err := json.Marshal(classRights{
		LiquidationPreference: sc.LiquidationPreference,
		Participation:         sc.Participation,
		Conversion:            sc.Conversion,
		AntiDilution:          sc.AntiDilution,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rights for %s: %w", sc.ID, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO share_class (id, name, type, rights) VALUES (?, ?, ?, ?)
	`, sc.ID, sc.Name, string(sc.Type), string(rights))
	if err != nil {
		return fmt.Errorf("failed to insert share class %s: %w", sc.ID, err)
	}
	return nil
}

// GetShareClass retrieves one share class by ID.
func (r *ShareClassRepository) GetShareClass(id string) (captable.ShareClass, error) {
	row := r.db.QueryRow(`SELECT id, name, type, rights FROM share_class WHERE id = ?`, id)
	sc, err := scanShareClass(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return captable.ShareClass{}, fmt.Errorf("%w: %s", apperrors.ErrShareClassNotFound, id)
	}
	return sc, err
}

// ListShareClasses retrieves every share class, ordered by ID.
func (r *ShareClassRepository) ListShareClasses() ([]captable.ShareClass, error) {
	rows, err := r.db.Query(`SELECT id, name, type, rights FROM share_class ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query share_class: %w", err)
	}
	defer rows.Close()

	var classes []captable.ShareClass
	for rows.Next() {
		sc, err := scanShareClass(rows.Scan)
		if err != nil {
			return nil, err
		}
		classes = append(classes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return classes, nil
}

func scanShareClass(scan func(...any) error) (captable.ShareClass, error) {
	var sc captable.ShareClass
	var classType, rightsJSON string
	if err := scan(&sc.ID, &sc.Name, &classType, &rightsJSON); err != nil {
		return captable.ShareClass{}, err
	}
	sc.Type = captable.ShareType(classType)

	var rights classRights
	if err := json.Unmarshal([]byte(rightsJSON), &rights); err != nil {
		return captable.ShareClass{}, fmt.Errorf("failed to unmarshal rights for %s: %w", sc.ID, err)
	}
	sc.LiquidationPreference = rights.LiquidationPreference
	sc.Participation = rights.Participation
	sc.Conversion = rights.Conversion
	sc.AntiDilution = rights.AntiDilution
	return sc, nil
}
