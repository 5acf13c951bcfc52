package server

import (
	"net/http"
	"strings"
)

// handleListHoldings returns an account's holdings joined with share
// counts, prices and portfolio names
// GET /api/accounts/{accountID}/holdings
func (s *Server) handleListHoldings(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	views, err := s.views.GetHoldingViews(accountID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, views)
}

type overrideIdentifierRequest struct {
	Identifier string `json:"identifier"`
}

// handleOverrideIdentifier records a user identifier correction. The
// override is protected from future imports.
// PUT /api/holdings/{holdingID}/identifier
func (s *Server) handleOverrideIdentifier(w http.ResponseWriter, r *http.Request) {
	holdingID, ok := s.idParam(w, r, "holdingID")
	if !ok {
		return
	}

	var req overrideIdentifierRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	req.Identifier = strings.ToUpper(strings.TrimSpace(req.Identifier))
	if req.Identifier == "" {
		s.writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	if err := s.holdings.OverrideIdentifier(holdingID, req.Identifier); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type setCategoryRequest struct {
	Category string `json:"category"`
}

// handleSetCategory tags a holding with a free-text category
// PUT /api/holdings/{holdingID}/category
func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	holdingID, ok := s.idParam(w, r, "holdingID")
	if !ok {
		return
	}

	var req setCategoryRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.holdings.SetCategory(holdingID, strings.TrimSpace(req.Category)); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type moveHoldingRequest struct {
	PortfolioID int64 `json:"portfolio_id"`
}

// handleMoveHolding reassigns a holding to another portfolio. The
// assignment survives re-imports.
// PUT /api/holdings/{holdingID}/portfolio
func (s *Server) handleMoveHolding(w http.ResponseWriter, r *http.Request) {
	holdingID, ok := s.idParam(w, r, "holdingID")
	if !ok {
		return
	}

	var req moveHoldingRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.PortfolioID == 0 {
		s.writeError(w, http.StatusBadRequest, "portfolio_id is required")
		return
	}

	if err := s.holdings.MoveToPortfolio(holdingID, req.PortfolioID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

type overrideSharesRequest struct {
	Shares float64 `json:"shares"`
}

// handleOverrideShares records a user share-count correction that
// future imports reconcile against instead of overwriting
// PUT /api/holdings/{holdingID}/shares
func (s *Server) handleOverrideShares(w http.ResponseWriter, r *http.Request) {
	holdingID, ok := s.idParam(w, r, "holdingID")
	if !ok {
		return
	}

	var req overrideSharesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Shares < 0 {
		s.writeError(w, http.StatusBadRequest, "shares must not be negative")
		return
	}

	if err := s.lots.SetManualOverride(holdingID, req.Shares); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handleClearShareOverride reverts a holding to its CSV-derived share
// count
// DELETE /api/holdings/{holdingID}/shares
func (s *Server) handleClearShareOverride(w http.ResponseWriter, r *http.Request) {
	holdingID, ok := s.idParam(w, r, "holdingID")
	if !ok {
		return
	}

	if err := s.lots.ClearManualOverride(holdingID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
