package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/domain"
)

// ShareLotRepository handles share-lot database operations
type ShareLotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewShareLotRepository creates a new share-lot repository
func NewShareLotRepository(db *sql.DB, log zerolog.Logger) *ShareLotRepository {
	return &ShareLotRepository{
		db:  db,
		log: log.With().Str("repo", "share_lot").Logger(),
	}
}

// GetByHoldingID returns the share lot for a holding, or nil when the
// holding has none yet
func (r *ShareLotRepository) GetByHoldingID(holdingID int64) (*domain.ShareLot, error) {
	var lot domain.ShareLot
	var override sql.NullFloat64
	var editDate sql.NullString
	var edited, modified int

	err := r.db.QueryRow(`
		SELECT holding_id, shares, override_shares, is_manually_edited, manual_edit_date, csv_modified_after_edit
		FROM share_lots WHERE holding_id = ?`, holdingID,
	).Scan(&lot.HoldingID, &lot.Shares, &override, &edited, &editDate, &modified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query share lot: %w", err)
	}

	if override.Valid {
		lot.OverrideShares = &override.Float64
	}
	if editDate.Valid {
		if t, err := time.Parse(time.RFC3339, editDate.String); err == nil {
			lot.ManualEditDate = &t
		}
	}
	lot.IsManuallyEdited = edited != 0
	lot.CSVModifiedAfterEdit = modified != 0

	return &lot, nil
}

// ListByAccount returns all share lots for an account's holdings,
// keyed by holding id
func (r *ShareLotRepository) ListByAccount(accountID int64) (map[int64]domain.ShareLot, error) {
	rows, err := r.db.Query(`
		SELECT l.holding_id, l.shares, l.override_shares, l.is_manually_edited, l.manual_edit_date, l.csv_modified_after_edit
		FROM share_lots l
		JOIN holdings h ON h.id = l.holding_id
		WHERE h.account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query share lots: %w", err)
	}
	defer rows.Close()

	lots := make(map[int64]domain.ShareLot)
	for rows.Next() {
		var lot domain.ShareLot
		var override sql.NullFloat64
		var editDate sql.NullString
		var edited, modified int

		if err := rows.Scan(&lot.HoldingID, &lot.Shares, &override, &edited, &editDate, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan share lot: %w", err)
		}

		if override.Valid {
			lot.OverrideShares = &override.Float64
		}
		if editDate.Valid {
			if t, err := time.Parse(time.RFC3339, editDate.String); err == nil {
				lot.ManualEditDate = &t
			}
		}
		lot.IsManuallyEdited = edited != 0
		lot.CSVModifiedAfterEdit = modified != 0

		lots[lot.HoldingID] = lot
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating share lots: %w", err)
	}

	return lots, nil
}

// SetManualOverride records a user share-count correction. The CSV
// derived count stays in shares; future imports reconcile against the
// edit date instead of clobbering the override.
func (r *ShareLotRepository) SetManualOverride(holdingID int64, shares float64) error {
	_, err := r.db.Exec(`
		UPDATE share_lots
		SET override_shares = ?, is_manually_edited = 1, manual_edit_date = ?, csv_modified_after_edit = 0
		WHERE holding_id = ?`,
		shares, time.Now().UTC().Format(time.RFC3339), holdingID,
	)
	if err != nil {
		return fmt.Errorf("failed to set manual override: %w", err)
	}
	return nil
}

// ClearManualOverride drops a user correction, reverting to the CSV
// derived count
func (r *ShareLotRepository) ClearManualOverride(holdingID int64) error {
	_, err := r.db.Exec(`
		UPDATE share_lots
		SET override_shares = NULL, is_manually_edited = 0, manual_edit_date = NULL, csv_modified_after_edit = 0
		WHERE holding_id = ?`, holdingID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear manual override: %w", err)
	}
	return nil
}
