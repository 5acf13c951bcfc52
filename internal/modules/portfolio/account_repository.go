package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/domain"
)

// AccountRepository handles account database operations
type AccountRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sql.DB, log zerolog.Logger) *AccountRepository {
	return &AccountRepository{
		db:  db,
		log: log.With().Str("repo", "account").Logger(),
	}
}

// Create inserts a new account
func (r *AccountRepository) Create(username string) (*domain.Account, error) {
	res, err := r.db.Exec(
		"INSERT INTO accounts (username, cash_balance, created_at) VALUES (?, 0, ?)",
		username, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get account id: %w", err)
	}

	return r.GetByID(id)
}

// GetByID returns an account by id, or nil when not found
func (r *AccountRepository) GetByID(id int64) (*domain.Account, error) {
	return r.scanOne("SELECT id, username, cash_balance, created_at FROM accounts WHERE id = ?", id)
}

// GetByUsername returns an account by username, or nil when not found
func (r *AccountRepository) GetByUsername(username string) (*domain.Account, error) {
	return r.scanOne("SELECT id, username, cash_balance, created_at FROM accounts WHERE username = ?", username)
}

// UpdateCashBalance sets the account's cash balance
func (r *AccountRepository) UpdateCashBalance(id int64, balance float64) error {
	_, err := r.db.Exec("UPDATE accounts SET cash_balance = ? WHERE id = ?", balance, id)
	if err != nil {
		return fmt.Errorf("failed to update cash balance: %w", err)
	}
	return nil
}

// Delete removes an account. Foreign keys cascade to everything the
// account owns.
func (r *AccountRepository) Delete(id int64) error {
	_, err := r.db.Exec("DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (r *AccountRepository) scanOne(query string, args ...interface{}) (*domain.Account, error) {
	var acc domain.Account
	var createdAt string

	err := r.db.QueryRow(query, args...).Scan(&acc.ID, &acc.Username, &acc.CashBalance, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		acc.CreatedAt = t
	}
	return &acc, nil
}
