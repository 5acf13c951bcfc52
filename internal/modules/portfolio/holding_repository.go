package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/domain"
)

// HoldingRepository handles holding database operations
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:  db,
		log: log.With().Str("repo", "holding").Logger(),
	}
}

const holdingColumns = `id, account_id, portfolio_id, name, identifier, category,
	investment_type, total_invested, is_custom_value, custom_total_value, custom_price,
	identifier_manually_edited, override_identifier, country_manually_edited, override_country`

// ListByAccount returns all holdings for an account
func (r *HoldingRepository) ListByAccount(accountID int64) ([]domain.Holding, error) {
	rows, err := r.db.Query(
		"SELECT "+holdingColumns+" FROM holdings WHERE account_id = ? ORDER BY name",
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// GetByName returns a holding by (account, display name), or nil when
// not found
func (r *HoldingRepository) GetByName(accountID int64, name string) (*domain.Holding, error) {
	rows, err := r.db.Query(
		"SELECT "+holdingColumns+" FROM holdings WHERE account_id = ? AND name = ?",
		accountID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding by name: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	h, err := scanHolding(rows)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// CountByIdentifier counts holdings across all accounts that reference
// a canonical identifier. Used for shared-price orphan cleanup.
func (r *HoldingRepository) CountByIdentifier(identifier string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM holdings WHERE identifier = ? OR override_identifier = ?",
		identifier, identifier,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count holdings by identifier: %w", err)
	}
	return count, nil
}

// SetCategory updates a holding's free-text category
func (r *HoldingRepository) SetCategory(holdingID int64, category string) error {
	_, err := r.db.Exec("UPDATE holdings SET category = ? WHERE id = ?", category, holdingID)
	if err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}
	return nil
}

// MoveToPortfolio reassigns a holding to another portfolio
func (r *HoldingRepository) MoveToPortfolio(holdingID, portfolioID int64) error {
	_, err := r.db.Exec("UPDATE holdings SET portfolio_id = ? WHERE id = ?", portfolioID, holdingID)
	if err != nil {
		return fmt.Errorf("failed to move holding: %w", err)
	}
	return nil
}

// OverrideIdentifier records a user identifier correction. The override
// is protected from future imports until cleared.
func (r *HoldingRepository) OverrideIdentifier(holdingID int64, identifier string) error {
	_, err := r.db.Exec(
		"UPDATE holdings SET identifier_manually_edited = 1, override_identifier = ? WHERE id = ?",
		identifier, holdingID,
	)
	if err != nil {
		return fmt.Errorf("failed to override identifier: %w", err)
	}
	return nil
}

// scanHolding scans one holding row from either *sql.Rows or *sql.Row
func scanHolding(rows *sql.Rows) (domain.Holding, error) {
	var h domain.Holding
	var identifier, category, invType, overrideID, overrideCountry sql.NullString
	var customTotal, customPrice sql.NullFloat64
	var isCustom, idEdited, countryEdited int

	err := rows.Scan(
		&h.ID, &h.AccountID, &h.PortfolioID, &h.Name, &identifier, &category,
		&invType, &h.TotalInvested, &isCustom, &customTotal, &customPrice,
		&idEdited, &overrideID, &countryEdited, &overrideCountry,
	)
	if err != nil {
		return h, fmt.Errorf("failed to scan holding: %w", err)
	}

	if identifier.Valid {
		h.Identifier = &identifier.String
	}
	if category.Valid {
		h.Category = &category.String
	}
	if invType.Valid {
		h.InvestmentType = &invType.String
	}
	if customTotal.Valid {
		h.CustomTotalValue = &customTotal.Float64
	}
	if customPrice.Valid {
		h.CustomPrice = &customPrice.Float64
	}
	if overrideID.Valid {
		h.OverrideIdentifier = &overrideID.String
	}
	if overrideCountry.Valid {
		h.OverrideCountry = &overrideCountry.String
	}
	h.IsCustomValue = isCustom != 0
	h.IdentifierManuallyEdited = idEdited != 0
	h.CountryManuallyEdited = countryEdited != 0

	return h, nil
}
