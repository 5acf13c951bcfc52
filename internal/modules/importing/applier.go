package importing

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/domain"
)

// Applier writes the aggregator's output to storage as one atomic unit.
// Any failure rolls back everything; an import never half-applies.
type Applier struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewApplier creates a new transaction applier
func NewApplier(db *sql.DB, log zerolog.Logger) *Applier {
	return &Applier{
		db:  db,
		log: log.With().Str("component", "transaction_applier").Logger(),
	}
}

// Apply inserts, updates and removes holdings inside a single database
// transaction. Existing holdings keep their portfolio assignment and
// any manually protected identifier; new holdings land in the "-"
// bucket.
func (ap *Applier) Apply(accountID int64, agg *AggregationResult, existing map[string]ExistingHolding) (*ApplyResult, error) {
	tx, err := ap.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin apply transaction: %w", err)
	}
	defer tx.Rollback()

	defaultPortfolioID, err := ap.ensureDefaultPortfolio(tx, accountID)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{}

	// Deterministic order keeps logs and result lists stable.
	names := make([]string, 0, len(agg.Positions))
	for name := range agg.Positions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pos := agg.Positions[name]
		calc := agg.ShareCalculations[name]

		if held, ok := existing[name]; ok {
			if err := ap.updateHolding(tx, held, pos, calc); err != nil {
				return nil, err
			}
			result.Updated = append(result.Updated, name)
		} else {
			if err := ap.insertHolding(tx, accountID, defaultPortfolioID, pos); err != nil {
				return nil, err
			}
			result.Added = append(result.Added, name)
		}
	}

	removals := make([]string, 0, len(agg.ToRemove))
	for name := range agg.ToRemove {
		removals = append(removals, name)
	}
	sort.Strings(removals)

	for _, name := range removals {
		held, ok := existing[name]
		if !ok {
			continue
		}
		if err := ap.removeHolding(tx, held); err != nil {
			return nil, err
		}
		result.Removed = append(result.Removed, name)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit apply transaction: %w", err)
	}

	ap.log.Info().
		Int("added", len(result.Added)).
		Int("updated", len(result.Updated)).
		Int("removed", len(result.Removed)).
		Msg("Applied import")

	return result, nil
}

// ensureDefaultPortfolio finds or creates the account's "-" bucket
// inside the transaction
func (ap *Applier) ensureDefaultPortfolio(tx *sql.Tx, accountID int64) (int64, error) {
	var id int64
	err := tx.QueryRow(
		"SELECT id FROM portfolios WHERE account_id = ? AND name = ?",
		accountID, domain.DefaultPortfolioName,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to query default portfolio: %w", err)
	}

	res, err := tx.Exec(
		"INSERT INTO portfolios (account_id, name) VALUES (?, ?)",
		accountID, domain.DefaultPortfolioName,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create default portfolio: %w", err)
	}
	return res.LastInsertId()
}

// updateHolding refreshes an existing holding. The portfolio assignment
// is untouched, and a manually protected identifier is never
// overwritten by the CSV-resolved one.
func (ap *Applier) updateHolding(tx *sql.Tx, held ExistingHolding, pos *ComputedPosition, calc ShareCalculation) error {
	if held.IdentifierProtected {
		_, err := tx.Exec(
			"UPDATE holdings SET total_invested = ? WHERE id = ?",
			pos.TotalInvested, held.HoldingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update holding %q: %w", pos.Name, err)
		}
	} else {
		_, err := tx.Exec(
			"UPDATE holdings SET identifier = ?, total_invested = ? WHERE id = ?",
			pos.Identifier, pos.TotalInvested, held.HoldingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update holding %q: %w", pos.Name, err)
		}
	}

	if calc.NewOverride != nil {
		// The edit date moves to the reconciliation watermark so a
		// re-import of the same file does not apply the delta again.
		var editDate interface{}
		if calc.NewEditDate != nil {
			editDate = calc.NewEditDate.UTC().Format(time.RFC3339)
		}
		_, err := tx.Exec(`
			INSERT INTO share_lots (holding_id, shares, override_shares, is_manually_edited, manual_edit_date, csv_modified_after_edit)
			VALUES (?, ?, ?, 1, ?, 1)
			ON CONFLICT(holding_id) DO UPDATE SET
			    shares = excluded.shares,
			    override_shares = excluded.override_shares,
			    manual_edit_date = COALESCE(excluded.manual_edit_date, share_lots.manual_edit_date),
			    csv_modified_after_edit = 1`,
			held.HoldingID, calc.CSVShares, *calc.NewOverride, editDate,
		)
		if err != nil {
			return fmt.Errorf("failed to update share lot for %q: %w", pos.Name, err)
		}
	} else {
		// The override, when present, still stands; only the CSV
		// derived count moves.
		_, err := tx.Exec(`
			INSERT INTO share_lots (holding_id, shares)
			VALUES (?, ?)
			ON CONFLICT(holding_id) DO UPDATE SET shares = excluded.shares`,
			held.HoldingID, calc.CSVShares,
		)
		if err != nil {
			return fmt.Errorf("failed to update share lot for %q: %w", pos.Name, err)
		}
	}

	return nil
}

// insertHolding creates a new holding plus its share lot in the default
// portfolio
func (ap *Applier) insertHolding(tx *sql.Tx, accountID, portfolioID int64, pos *ComputedPosition) error {
	res, err := tx.Exec(
		"INSERT INTO holdings (account_id, portfolio_id, name, identifier, total_invested) VALUES (?, ?, ?, ?, ?)",
		accountID, portfolioID, pos.Name, pos.Identifier, pos.TotalInvested,
	)
	if err != nil {
		return fmt.Errorf("failed to insert holding %q: %w", pos.Name, err)
	}

	holdingID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get holding id for %q: %w", pos.Name, err)
	}

	_, err = tx.Exec(
		"INSERT INTO share_lots (holding_id, shares) VALUES (?, ?)",
		holdingID, pos.TotalShares,
	)
	if err != nil {
		return fmt.Errorf("failed to insert share lot for %q: %w", pos.Name, err)
	}

	return nil
}

// removeHolding deletes a holding (the share lot cascades) and cleans
// up the shared market price when no holding in any account references
// the identifier anymore.
func (ap *Applier) removeHolding(tx *sql.Tx, held ExistingHolding) error {
	_, err := tx.Exec("DELETE FROM holdings WHERE id = ?", held.HoldingID)
	if err != nil {
		return fmt.Errorf("failed to delete holding %d: %w", held.HoldingID, err)
	}

	if held.Identifier == "" {
		return nil
	}

	var remaining int
	err = tx.QueryRow(
		"SELECT COUNT(*) FROM holdings WHERE identifier = ? OR override_identifier = ?",
		held.Identifier, held.Identifier,
	).Scan(&remaining)
	if err != nil {
		return fmt.Errorf("failed to count identifier references: %w", err)
	}

	if remaining == 0 {
		if _, err := tx.Exec("DELETE FROM market_prices WHERE identifier = ?", held.Identifier); err != nil {
			return fmt.Errorf("failed to clean up market price for %s: %w", held.Identifier, err)
		}
		ap.log.Debug().Str("identifier", held.Identifier).Msg("Removed orphaned market price")
	}

	return nil
}
