package server

import (
	"database/sql"
	"net/http"
	"time"
)

type systemStatusResponse struct {
	AccountCount  int    `json:"account_count"`
	HoldingCount  int    `json:"holding_count"`
	PriceCount    int    `json:"price_count"`
	LastPriceSync string `json:"last_price_sync"`
}

// handleSystemStatus reports row counts and the most recent price
// refresh time
// GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var resp systemStatusResponse

	if err := s.db.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&resp.AccountCount); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM holdings").Scan(&resp.HoldingCount); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var lastSync sql.NullString
	err := s.db.QueryRow(`
		SELECT COUNT(*), MAX(last_updated) FROM market_prices
	`).Scan(&resp.PriceCount, &lastSync)
	if err != nil && err != sql.ErrNoRows {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if lastSync.Valid {
		if t, err := time.Parse(time.RFC3339, lastSync.String); err == nil {
			resp.LastPriceSync = t.Format("2006-01-02 15:04")
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}
