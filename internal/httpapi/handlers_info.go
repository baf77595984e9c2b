package httpapi

import (
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// safeConfig is the redacted subset of Config surfaced at GET /status and
// POST /admin/config (spec §4.11: "no private keys, no DSNs").
type safeConfig struct {
	RouterID         string  `json:"routerId"`
	RouterEndpoint   string  `json:"routerEndpoint"`
	RequirePayment   bool    `json:"requirePayment"`
	FeeBps           int     `json:"feeBps"`
	OffloadThreshold float64 `json:"offloadThreshold"`
	MaxOffloads      int     `json:"maxOffloads"`
	AuctionTimeoutMs int64   `json:"auctionTimeoutMs"`
	ReplayWindowMs   int64   `json:"replayWindowMs"`
}

func (s *Server) safeConfig() safeConfig {
	c := s.Cfg
	return safeConfig{
		RouterID:         c.RouterID,
		RouterEndpoint:   c.RouterEndpoint,
		RequirePayment:   c.RouterRequirePayment,
		FeeBps:           c.RouterFeeBps,
		OffloadThreshold: c.RouterOffloadThreshold,
		MaxOffloads:      c.RouterMaxOffloads,
		AuctionTimeoutMs: c.RouterAuctionTimeoutMs,
		ReplayWindowMs:   c.RouterReplayWindowMs,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	mode := s.Mode
	if mode == "" {
		mode = "lite"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"uptimeMs":  time.Since(s.startedAt).Milliseconds(),
		"mode":      mode,
		"config":    s.safeConfig(),
	})
}

// handleNodes dispatches by method: GET lists the registry (unchanged),
// POST is signed manifest admission (see handlers_nodes.go).
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleNodesList(w, r)
	case http.MethodPost:
		s.handleNodeAdmit(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

func (s *Server) handleNodesList(w http.ResponseWriter, r *http.Request) {
	nowMs := s.nowMs()
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes":  s.Registry.List(),
		"active": s.Registry.Active(nowMs),
	})
}
