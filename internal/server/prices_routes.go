package server

import (
	"net/http"
)

// handleRefreshPrices refreshes the stored price of every identifier in
// use. Per-identifier failures are reported, not fatal.
// POST /api/prices/refresh
func (s *Server) handleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	identifiers, err := s.priceRepo.ListIdentifiersInUse()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	failed := s.updater.UpdateBatch(r.Context(), identifiers)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":  len(identifiers),
		"failed": failed,
	})
}
