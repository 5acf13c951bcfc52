package universe

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/domain"
)

// MappingRepository handles identifier-mapping database operations
type MappingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *sql.DB, log zerolog.Logger) *MappingRepository {
	return &MappingRepository{
		db:  db,
		log: log.With().Str("repo", "identifier_mapping").Logger(),
	}
}

// Get returns the preferred identifier for a raw CSV identifier, or nil
// when the user has no preference recorded
func (r *MappingRepository) Get(accountID int64, csvIdentifier string) (*domain.IdentifierMapping, error) {
	var m domain.IdentifierMapping
	var companyName sql.NullString

	err := r.db.QueryRow(`
		SELECT id, account_id, csv_identifier, preferred_identifier, company_name
		FROM identifier_mappings
		WHERE account_id = ? AND csv_identifier = ?`,
		accountID, csvIdentifier,
	).Scan(&m.ID, &m.AccountID, &m.CSVIdentifier, &m.PreferredIdentifier, &companyName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query identifier mapping: %w", err)
	}

	if companyName.Valid {
		m.CompanyName = &companyName.String
	}
	return &m, nil
}

// Upsert records or replaces a user identifier preference
func (r *MappingRepository) Upsert(accountID int64, csvIdentifier, preferredIdentifier string, companyName *string) error {
	_, err := r.db.Exec(`
		INSERT INTO identifier_mappings (account_id, csv_identifier, preferred_identifier, company_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, csv_identifier)
		DO UPDATE SET preferred_identifier = excluded.preferred_identifier, company_name = excluded.company_name`,
		accountID, csvIdentifier, preferredIdentifier, companyName,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert identifier mapping: %w", err)
	}
	return nil
}

// Delete removes a user identifier preference
func (r *MappingRepository) Delete(accountID int64, csvIdentifier string) error {
	_, err := r.db.Exec(
		"DELETE FROM identifier_mappings WHERE account_id = ? AND csv_identifier = ?",
		accountID, csvIdentifier,
	)
	if err != nil {
		return fmt.Errorf("failed to delete identifier mapping: %w", err)
	}
	return nil
}
