package httpapi

import (
	"net/http"
)

// adminConfigUpdate is the partial-update body for POST /admin/config
// (spec §4.11 "live-tunable operator settings"). An omitted or null field
// leaves the current value unchanged; an explicit zero is applied.
type adminConfigUpdate struct {
	OffloadThreshold *float64 `json:"offloadThreshold,omitempty"`
	FeeBps           *int     `json:"feeBps,omitempty"`
	WeightPrice      *float64 `json:"weightPrice,omitempty"`
	WeightLoad       *float64 `json:"weightLoad,omitempty"`
	WeightTrust      *float64 `json:"weightTrust,omitempty"`
}

// handleAdminConfig lets an operator adjust scheduling and offload
// tuning at runtime without a restart, guarded by a static bearer token
// (ROUTER_ADMIN_TOKEN) rather than full auth — this endpoint is meant to
// sit behind an operator-only network boundary.
func (s *Server) handleAdminConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if s.Cfg.AdminToken == "" || r.Header.Get("Authorization") != "Bearer "+s.Cfg.AdminToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var update adminConfigUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	s.adminMu.Lock()
	if update.OffloadThreshold != nil {
		s.Cfg.RouterOffloadThreshold = *update.OffloadThreshold
	}
	if update.FeeBps != nil {
		s.Cfg.RouterFeeBps = *update.FeeBps
	}
	if update.WeightPrice != nil {
		s.Weights.Price = *update.WeightPrice
	}
	if update.WeightLoad != nil {
		s.Weights.Load = *update.WeightLoad
	}
	if update.WeightTrust != nil {
		s.Weights.Trust = *update.WeightTrust
	}
	s.adminMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "config": s.safeConfig()})
}
