package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/domain"
)

// PortfolioRepository handles portfolio database operations
type PortfolioRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *sql.DB, log zerolog.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// ListByAccount returns all portfolios for an account
func (r *PortfolioRepository) ListByAccount(accountID int64) ([]domain.Portfolio, error) {
	rows, err := r.db.Query(
		"SELECT id, account_id, name FROM portfolios WHERE account_id = ? ORDER BY name",
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []domain.Portfolio
	for rows.Next() {
		var p domain.Portfolio
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return portfolios, nil
}

// Create inserts a new portfolio
func (r *PortfolioRepository) Create(accountID int64, name string) (*domain.Portfolio, error) {
	res, err := r.db.Exec(
		"INSERT INTO portfolios (account_id, name) VALUES (?, ?)",
		accountID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio id: %w", err)
	}

	return &domain.Portfolio{ID: id, AccountID: accountID, Name: name}, nil
}

// GetOrCreateDefault returns the account's "-" bucket, creating it on
// demand.
func (r *PortfolioRepository) GetOrCreateDefault(accountID int64) (*domain.Portfolio, error) {
	var p domain.Portfolio
	err := r.db.QueryRow(
		"SELECT id, account_id, name FROM portfolios WHERE account_id = ? AND name = ?",
		accountID, domain.DefaultPortfolioName,
	).Scan(&p.ID, &p.AccountID, &p.Name)

	if err == sql.ErrNoRows {
		return r.Create(accountID, domain.DefaultPortfolioName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query default portfolio: %w", err)
	}

	return &p, nil
}
