package allocation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
)

// StateRepository persists per-account builder state as opaque JSON
// blobs keyed by page.
type StateRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStateRepository creates a new builder-state repository
func NewStateRepository(db *sql.DB, log zerolog.Logger) *StateRepository {
	return &StateRepository{
		db:  db,
		log: log.With().Str("repo", "builder_state").Logger(),
	}
}

// Get loads the builder state for an account page, or nil when none
// was saved yet
func (r *StateRepository) Get(accountID int64, page string) (*BuilderState, error) {
	var blob string
	err := r.db.QueryRow(
		"SELECT state_json FROM builder_states WHERE account_id = ? AND page = ?",
		accountID, page,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query builder state: %w", err)
	}

	var state BuilderState
	if err := sonic.UnmarshalString(blob, &state); err != nil {
		return nil, fmt.Errorf("failed to decode builder state: %w", err)
	}

	return &state, nil
}

// Save stores the builder state for an account page
func (r *StateRepository) Save(accountID int64, page string, state *BuilderState) error {
	blob, err := sonic.MarshalString(state)
	if err != nil {
		return fmt.Errorf("failed to encode builder state: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO builder_states (account_id, page, state_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, page) DO UPDATE SET
		    state_json = excluded.state_json, updated_at = excluded.updated_at`,
		accountID, page, blob, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save builder state: %w", err)
	}

	return nil
}
