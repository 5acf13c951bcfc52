package prices

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/domain"
)

// Repository handles market-price database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "market_price").Logger(),
	}
}

// Get returns the stored price for an identifier, or nil when unknown
func (r *Repository) Get(identifier string) (*domain.MarketPrice, error) {
	var mp domain.MarketPrice
	var country sql.NullString
	var lastUpdated string

	err := r.db.QueryRow(`
		SELECT identifier, price, currency, price_in_base_currency, country, last_updated
		FROM market_prices WHERE identifier = ?`, identifier,
	).Scan(&mp.Identifier, &mp.Price, &mp.Currency, &mp.PriceInBaseCurrency, &country, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query market price: %w", err)
	}

	if country.Valid {
		mp.Country = &country.String
	}
	if t, err := time.Parse(time.RFC3339, lastUpdated); err == nil {
		mp.LastUpdated = t
	}
	return &mp, nil
}

// Upsert stores or refreshes a price row
func (r *Repository) Upsert(mp domain.MarketPrice) error {
	_, err := r.db.Exec(`
		INSERT INTO market_prices (identifier, price, currency, price_in_base_currency, country, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
		    price = excluded.price,
		    currency = excluded.currency,
		    price_in_base_currency = excluded.price_in_base_currency,
		    country = COALESCE(excluded.country, market_prices.country),
		    last_updated = excluded.last_updated`,
		mp.Identifier, mp.Price, mp.Currency, mp.PriceInBaseCurrency, mp.Country,
		mp.LastUpdated.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert market price for %s: %w", mp.Identifier, err)
	}
	return nil
}

// Delete removes a price row
func (r *Repository) Delete(identifier string) error {
	_, err := r.db.Exec("DELETE FROM market_prices WHERE identifier = ?", identifier)
	if err != nil {
		return fmt.Errorf("failed to delete market price for %s: %w", identifier, err)
	}
	return nil
}

// ListIdentifiersInUse returns every distinct effective identifier any
// holding references, across all accounts. Used by the nightly refresh.
func (r *Repository) ListIdentifiersInUse() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT COALESCE(
		    CASE WHEN identifier_manually_edited = 1 THEN override_identifier END,
		    identifier)
		FROM holdings
		WHERE COALESCE(
		    CASE WHEN identifier_manually_edited = 1 THEN override_identifier END,
		    identifier) IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query identifiers in use: %w", err)
	}
	defer rows.Close()

	var identifiers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		if id != "" {
			identifiers = append(identifiers, id)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identifiers: %w", err)
	}

	return identifiers, nil
}
