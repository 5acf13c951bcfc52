package server

import (
	"net/http"

	"github.com/aristath/folio-tracker/internal/modules/allocation"
)

// builderPage is the default page key for stored allocation state
const builderPage = "builder"

func pageParam(r *http.Request) string {
	if page := r.URL.Query().Get("page"); page != "" {
		return page
	}
	return builderPage
}

// handleAllocationPlan computes the rebalancing plan from current
// holdings, the stored builder state and the configured rules
// GET /api/accounts/{accountID}/allocation/plan
func (s *Server) handleAllocationPlan(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	views, err := s.views.GetHoldingViews(accountID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	state, err := s.states.Get(accountID, pageParam(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	plan := s.allocation.ComputePlan(views, state, s.rules)
	s.writeJSON(w, http.StatusOK, plan)
}

// handleAllocationCapacity reports remaining headroom under the
// advisory limits
// GET /api/accounts/{accountID}/allocation/capacity
func (s *Server) handleAllocationCapacity(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	views, err := s.views.GetHoldingViews(accountID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rules := s.rules
	if state, err := s.states.Get(accountID, pageParam(r)); err == nil && state != nil && state.Rules != nil {
		rules = *state.Rules
	}

	report := s.allocation.ComputeCapacity(views, rules)
	s.writeJSON(w, http.StatusOK, report)
}

// handleGetBuilderState returns the stored allocation page state
// GET /api/accounts/{accountID}/allocation/state
func (s *Server) handleGetBuilderState(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	state, err := s.states.Get(accountID, pageParam(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if state == nil {
		state = &allocation.BuilderState{}
	}

	s.writeJSON(w, http.StatusOK, state)
}

// handleSaveBuilderState stores the allocation page state
// PUT /api/accounts/{accountID}/allocation/state
func (s *Server) handleSaveBuilderState(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.idParam(w, r, "accountID")
	if !ok {
		return
	}

	var state allocation.BuilderState
	if !s.decodeJSON(w, r, &state) {
		return
	}

	if err := s.states.Save(accountID, pageParam(r), &state); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
