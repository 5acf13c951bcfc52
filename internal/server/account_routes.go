package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type createAccountRequest struct {
	Username string `json:"username"`
}

// handleCreateAccount creates a new account
// POST /api/accounts
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		s.writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	if existing, err := s.accounts.GetByUsername(req.Username); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if existing != nil {
		s.writeError(w, http.StatusConflict, "username already exists")
		return
	}

	account, err := s.accounts.Create(req.Username)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, account)
}

// handleGetAccount returns one account
// GET /api/accounts/{accountID}
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	account, err := s.accounts.GetByID(accountID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if account == nil {
		s.writeError(w, http.StatusNotFound, "account not found")
		return
	}

	s.writeJSON(w, http.StatusOK, account)
}

// handleDeleteAccount removes an account and everything it owns
// DELETE /api/accounts/{accountID}
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	if err := s.accounts.Delete(accountID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListPortfolios returns an account's portfolios
// GET /api/accounts/{accountID}/portfolios
func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	portfolios, err := s.portfolios.ListByAccount(accountID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, portfolios)
}

type createPortfolioRequest struct {
	Name string `json:"name"`
}

// handleCreatePortfolio creates a named portfolio within an account
// POST /api/accounts/{accountID}/portfolios
func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	var req createPortfolioRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p, err := s.portfolios.Create(accountID, req.Name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, p)
}

type upsertMappingRequest struct {
	CSVIdentifier       string  `json:"csv_identifier"`
	PreferredIdentifier string  `json:"preferred_identifier"`
	CompanyName         *string `json:"company_name"`
}

// handleUpsertMapping records a per-account identifier preference
// POST /api/accounts/{accountID}/mappings
func (s *Server) handleUpsertMapping(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	var req upsertMappingRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	req.CSVIdentifier = strings.ToUpper(strings.TrimSpace(req.CSVIdentifier))
	req.PreferredIdentifier = strings.ToUpper(strings.TrimSpace(req.PreferredIdentifier))
	if req.CSVIdentifier == "" || req.PreferredIdentifier == "" {
		s.writeError(w, http.StatusBadRequest, "csv_identifier and preferred_identifier are required")
		return
	}

	if err := s.mappings.Upsert(accountID, req.CSVIdentifier, req.PreferredIdentifier, req.CompanyName); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handleDeleteMapping drops a per-account identifier preference
// DELETE /api/accounts/{accountID}/mappings/{csvIdentifier}
func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	csvIdentifier := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "csvIdentifier")))
	if csvIdentifier == "" {
		s.writeError(w, http.StatusBadRequest, "csv identifier is required")
		return
	}

	if err := s.mappings.Delete(accountID, csvIdentifier); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
