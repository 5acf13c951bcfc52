package importing

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio-tracker/internal/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedAccount(t *testing.T, db *database.DB, username string) int64 {
	t.Helper()
	res, err := db.Exec("INSERT INTO accounts (username) VALUES (?)", username)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func seedHolding(t *testing.T, db *database.DB, accountID int64, name, identifier string, shares float64) int64 {
	t.Helper()

	var portfolioID int64
	err := db.QueryRow("SELECT id FROM portfolios WHERE account_id = ? AND name = '-'", accountID).Scan(&portfolioID)
	if err == sql.ErrNoRows {
		res, insErr := db.Exec("INSERT INTO portfolios (account_id, name) VALUES (?, '-')", accountID)
		require.NoError(t, insErr)
		portfolioID, insErr = res.LastInsertId()
		require.NoError(t, insErr)
	} else {
		require.NoError(t, err)
	}

	res, err := db.Exec(
		"INSERT INTO holdings (account_id, portfolio_id, name, identifier) VALUES (?, ?, ?, ?)",
		accountID, portfolioID, name, identifier,
	)
	require.NoError(t, err)
	holdingID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO share_lots (holding_id, shares) VALUES (?, ?)", holdingID, shares)
	require.NoError(t, err)

	return holdingID
}

func seedMarketPrice(t *testing.T, db *database.DB, identifier string, price float64) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO market_prices (identifier, price, currency, price_in_base_currency, last_updated) VALUES (?, ?, 'USD', ?, datetime('now'))",
		identifier, price, price,
	)
	require.NoError(t, err)
}

func countRows(t *testing.T, db *database.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestApply_InsertsNewHoldingIntoDefaultPortfolio(t *testing.T) {
	db := newTestDB(t)
	accountID := seedAccount(t, db, "alice")

	agg := &AggregationResult{
		Positions: map[string]*ComputedPosition{
			"Apple": {Name: "Apple", Identifier: "AAPL", TotalShares: 6, TotalInvested: 600},
		},
		ShareCalculations: map[string]ShareCalculation{
			"Apple": {HoldingName: "Apple", CSVShares: 6},
		},
		ToRemove: map[string]struct{}{},
	}

	result, err := NewApplier(db.Conn(), zerolog.Nop()).Apply(accountID, agg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple"}, result.Added)
	assert.Empty(t, result.Updated)
	assert.Empty(t, result.Removed)

	var portfolioName string
	var invested, shares float64
	err = db.QueryRow(`
		SELECT p.name, h.total_invested, sl.shares
		FROM holdings h
		JOIN portfolios p ON p.id = h.portfolio_id
		JOIN share_lots sl ON sl.holding_id = h.id
		WHERE h.name = 'Apple'`).Scan(&portfolioName, &invested, &shares)
	require.NoError(t, err)
	assert.Equal(t, "-", portfolioName)
	assert.Equal(t, 600.0, invested)
	assert.Equal(t, 6.0, shares)
}

func TestApply_UpdateKeepsPortfolioAssignment(t *testing.T) {
	db := newTestDB(t)
	accountID := seedAccount(t, db, "alice")
	holdingID := seedHolding(t, db, accountID, "Apple", "AAPL", 10)

	res, err := db.Exec("INSERT INTO portfolios (account_id, name) VALUES (?, 'Growth')", accountID)
	require.NoError(t, err)
	growthID, err := res.LastInsertId()
	require.NoError(t, err)
	_, err = db.Exec("UPDATE holdings SET portfolio_id = ? WHERE id = ?", growthID, holdingID)
	require.NoError(t, err)

	agg := &AggregationResult{
		Positions: map[string]*ComputedPosition{
			"Apple": {Name: "Apple", Identifier: "AAPL", TotalShares: 12, TotalInvested: 1200},
		},
		ShareCalculations: map[string]ShareCalculation{
			"Apple": {HoldingName: "Apple", CSVShares: 12},
		},
		ToRemove: map[string]struct{}{},
	}
	existing := map[string]ExistingHolding{
		"Apple": {HoldingID: holdingID, Identifier: "AAPL", PortfolioID: growthID},
	}

	result, err := NewApplier(db.Conn(), zerolog.Nop()).Apply(accountID, agg, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple"}, result.Updated)

	var portfolioID int64
	var shares float64
	err = db.QueryRow(`
		SELECT h.portfolio_id, sl.shares FROM holdings h
		JOIN share_lots sl ON sl.holding_id = h.id
		WHERE h.id = ?`, holdingID).Scan(&portfolioID, &shares)
	require.NoError(t, err)
	assert.Equal(t, growthID, portfolioID, "re-import must not move the holding back to the default bucket")
	assert.Equal(t, 12.0, shares)
}

func TestApply_ProtectedIdentifierNotOverwritten(t *testing.T) {
	db := newTestDB(t)
	accountID := seedAccount(t, db, "alice")
	holdingID := seedHolding(t, db, accountID, "Apple", "AAPL", 10)
	_, err := db.Exec(
		"UPDATE holdings SET identifier_manually_edited = 1, override_identifier = 'AAPL.DE' WHERE id = ?",
		holdingID,
	)
	require.NoError(t, err)

	agg := &AggregationResult{
		Positions: map[string]*ComputedPosition{
			"Apple": {Name: "Apple", Identifier: "US0378331005", TotalShares: 10, TotalInvested: 1000},
		},
		ShareCalculations: map[string]ShareCalculation{
			"Apple": {HoldingName: "Apple", CSVShares: 10},
		},
		ToRemove: map[string]struct{}{},
	}
	existing := map[string]ExistingHolding{
		"Apple": {HoldingID: holdingID, Identifier: "AAPL", IdentifierProtected: true},
	}

	_, err = NewApplier(db.Conn(), zerolog.Nop()).Apply(accountID, agg, existing)
	require.NoError(t, err)

	var identifier string
	require.NoError(t, db.QueryRow("SELECT identifier FROM holdings WHERE id = ?", holdingID).Scan(&identifier))
	assert.Equal(t, "AAPL", identifier)
}

func TestApply_NewOverrideUpdatesLotAndFlags(t *testing.T) {
	db := newTestDB(t)
	accountID := seedAccount(t, db, "alice")
	holdingID := seedHolding(t, db, accountID, "Apple", "AAPL", 10)

	override := 15.0
	watermark := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	agg := &AggregationResult{
		Positions: map[string]*ComputedPosition{
			"Apple": {Name: "Apple", Identifier: "AAPL", TotalShares: 13, TotalInvested: 1300},
		},
		ShareCalculations: map[string]ShareCalculation{
			"Apple": {HoldingName: "Apple", CSVShares: 13, NewOverride: &override, NewEditDate: &watermark, CSVModifiedAfterEdit: true},
		},
		ToRemove: map[string]struct{}{},
	}
	existing := map[string]ExistingHolding{
		"Apple": {HoldingID: holdingID, Identifier: "AAPL"},
	}

	_, err := NewApplier(db.Conn(), zerolog.Nop()).Apply(accountID, agg, existing)
	require.NoError(t, err)

	var shares, overrideShares float64
	var modified int
	var editDate string
	err = db.QueryRow(
		"SELECT shares, override_shares, csv_modified_after_edit, manual_edit_date FROM share_lots WHERE holding_id = ?",
		holdingID,
	).Scan(&shares, &overrideShares, &modified, &editDate)
	require.NoError(t, err)
	assert.Equal(t, 13.0, shares)
	assert.Equal(t, 15.0, overrideShares)
	assert.Equal(t, 1, modified)
	assert.Equal(t, "2024-05-10T00:00:00Z", editDate,
		"edit date advances to the reconciliation watermark")
}

func TestApply_RemovalCleansUpOrphanedMarketPrice(t *testing.T) {
	db := newTestDB(t)
	accountID := seedAccount(t, db, "alice")
	holdingID := seedHolding(t, db, accountID, "Apple", "AAPL", 10)
	seedMarketPrice(t, db, "AAPL", 150)

	agg := &AggregationResult{
		Positions:         map[string]*ComputedPosition{},
		ShareCalculations: map[string]ShareCalculation{},
		ToRemove:          map[string]struct{}{"Apple": {}},
	}
	existing := map[string]ExistingHolding{
		"Apple": {HoldingID: holdingID, Identifier: "AAPL"},
	}

	result, err := NewApplier(db.Conn(), zerolog.Nop()).Apply(accountID, agg, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple"}, result.Removed)

	assert.Zero(t, countRows(t, db, "SELECT COUNT(*) FROM holdings"))
	assert.Zero(t, countRows(t, db, "SELECT COUNT(*) FROM share_lots"), "share lot cascades with the holding")
	assert.Zero(t, countRows(t, db, "SELECT COUNT(*) FROM market_prices WHERE identifier = 'AAPL'"))
}

func TestApply_MarketPriceSurvivesWhenAnotherAccountReferencesIt(t *testing.T) {
	db := newTestDB(t)
	aliceID := seedAccount(t, db, "alice")
	bobID := seedAccount(t, db, "bob")
	aliceHolding := seedHolding(t, db, aliceID, "Apple", "AAPL", 10)
	seedHolding(t, db, bobID, "Apple", "AAPL", 5)
	seedMarketPrice(t, db, "AAPL", 150)

	agg := &AggregationResult{
		Positions:         map[string]*ComputedPosition{},
		ShareCalculations: map[string]ShareCalculation{},
		ToRemove:          map[string]struct{}{"Apple": {}},
	}
	existing := map[string]ExistingHolding{
		"Apple": {HoldingID: aliceHolding, Identifier: "AAPL"},
	}

	_, err := NewApplier(db.Conn(), zerolog.Nop()).Apply(aliceID, agg, existing)
	require.NoError(t, err)

	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM market_prices WHERE identifier = 'AAPL'"),
		"price is shared and still referenced by the other account")
}

func TestApply_CreatesDefaultPortfolioOnDemand(t *testing.T) {
	db := newTestDB(t)
	accountID := seedAccount(t, db, "alice")

	agg := &AggregationResult{
		Positions: map[string]*ComputedPosition{
			"Apple": {Name: "Apple", Identifier: "AAPL", TotalShares: 1, TotalInvested: 100},
		},
		ShareCalculations: map[string]ShareCalculation{
			"Apple": {HoldingName: "Apple", CSVShares: 1},
		},
		ToRemove: map[string]struct{}{},
	}

	applier := NewApplier(db.Conn(), zerolog.Nop())
	_, err := applier.Apply(accountID, agg, nil)
	require.NoError(t, err)

	// A second apply reuses the bucket instead of duplicating it.
	_, err = applier.Apply(accountID, agg, map[string]ExistingHolding{
		"Apple": {HoldingID: 1, Identifier: "AAPL"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM portfolios WHERE account_id = ? AND name = '-'", accountID))
}
