package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio-tracker/internal/database"
	"github.com/aristath/folio-tracker/internal/modules/allocation"
	"github.com/aristath/folio-tracker/internal/modules/portfolio"
)

func newAllocationTestServer(t *testing.T) (*Server, *database.DB) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	srv := New(Config{
		Log:        log,
		DB:         db,
		DevMode:    true,
		Views:      portfolio.NewService(db.Conn(), log),
		Allocation: allocation.NewService(log),
		States:     allocation.NewStateRepository(db.Conn(), log),
		Rules:      allocation.DefaultRules(),
	})
	return srv, db
}

// seedCategorizedHolding creates one account with a single Tech holding
// worth 1000 in base currency
func seedCategorizedHolding(t *testing.T, db *database.DB) int64 {
	t.Helper()

	res, err := db.Exec("INSERT INTO accounts (username) VALUES ('alice')")
	require.NoError(t, err)
	accountID, err := res.LastInsertId()
	require.NoError(t, err)

	res, err = db.Exec("INSERT INTO portfolios (account_id, name) VALUES (?, 'Growth')", accountID)
	require.NoError(t, err)
	portfolioID, err := res.LastInsertId()
	require.NoError(t, err)

	res, err = db.Exec(
		"INSERT INTO holdings (account_id, portfolio_id, name, identifier, category) VALUES (?, ?, 'Apple', 'AAPL', 'Tech')",
		accountID, portfolioID,
	)
	require.NoError(t, err)
	holdingID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO share_lots (holding_id, shares) VALUES (?, 10)", holdingID)
	require.NoError(t, err)
	_, err = db.Exec(
		"INSERT INTO market_prices (identifier, price, currency, price_in_base_currency, last_updated) VALUES ('AAPL', 100, 'EUR', 100, datetime('now'))",
	)
	require.NoError(t, err)

	return accountID
}

func getCapacity(t *testing.T, srv *Server, target string) allocation.CapacityReport {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var report allocation.CapacityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	return report
}

func TestAllocationCapacity_UsesRulesFromRequestedPage(t *testing.T) {
	srv, db := newAllocationTestServer(t)
	accountID := seedCategorizedHolding(t, db)

	states := allocation.NewStateRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, states.Save(accountID, "retirement", &allocation.BuilderState{
		Rules: &allocation.Rules{MaxPerStockPct: 95, MaxPerCategoryPct: 50, MaxPerCountryPct: 35},
	}))

	url := fmt.Sprintf("/api/accounts/%d/allocation/capacity", accountID)

	// Without a page the configured defaults apply: 30% of 1000.
	report := getCapacity(t, srv, url)
	require.Len(t, report.Categories, 1)
	assert.Equal(t, 300.0, report.Categories[0].MaxAllowed)

	// Rules stored on the requested page take over: 50% of 1000.
	report = getCapacity(t, srv, url+"?page=retirement")
	require.Len(t, report.Categories, 1)
	assert.Equal(t, 500.0, report.Categories[0].MaxAllowed)
}
