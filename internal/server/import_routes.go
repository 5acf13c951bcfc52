package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type startImportRequest struct {
	CSV string `json:"csv"`
}

// handleStartImport launches a background CSV import for an account and
// returns the run id for progress polling.
// POST /api/accounts/{accountID}/import
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
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

	var req startImportRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CSV) == "" {
		s.writeError(w, http.StatusBadRequest, "csv is required")
		return
	}

	// Concurrent imports for the same account are rejected up front so
	// the client gets an immediate 409 instead of a failed run.
	if s.imports.Busy(accountID) {
		s.writeError(w, http.StatusConflict, "an import for this account is already in progress")
		return
	}

	runID, err := s.imports.StartBackground(accountID, req.CSV)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// handleImportStatus returns the progress of an import run
// GET /api/imports/{runID}
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.runs.Get(runID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "import run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}
