package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/imattau/fed-AI-sub001/internal/apierr"
	"github.com/imattau/fed-AI-sub001/internal/offload"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// inferRelayResult is the body a peer returns from /federation/infer-relay,
// the same shape /infer returns to a direct client (spec §4.8 "transparent
// mesh": the peer's response envelope forwards to the client unchanged).
type inferRelayResult struct {
	Response wire.Envelope[wire.InferenceResponse] `json:"response"`
	Metering wire.Envelope[wire.MeteringRecord]    `json:"metering"`
}

// tryOffload picks a peer by direct selection, or failing that by one RFB
// auction, then forwards the client's envelope to that peer and writes its
// response verbatim.
// It returns true if it fully handled the request (success or a federation
// failure worth surfacing); false means the caller should fall back to
// local scheduling (no bids, saturated, or no peer endpoint configured).
func (s *Server) tryOffload(ctx context.Context, w http.ResponseWriter, r *http.Request, env wire.Envelope[wire.InferenceRequest], req wire.InferenceRequest, nowMs int64) bool {
	maxPriceMsat := int64(1_000_000)
	if est, err := s.Runner.Estimate(ctx, req); err == nil && est.CostEstimate != nil {
		maxPriceMsat = int64(*est.CostEstimate * 1000)
	}
	rfb := wire.RequestForBid{
		JobID:          req.RequestID,
		JobHash:        jobHash(req),
		ModelID:        req.ModelID,
		DeadlineMs:     nowMs + 30_000,
		MaxPriceMsat:   maxPriceMsat,
		ValidationMode: "trust",
	}

	// Direct selection is a single directory lookup, no wire round trip:
	// try it before paying for an auction (spec §4.8 two peer-selection
	// modes).
	if peer, ok := s.Offload.SelectDirect(rfb, nowMs); ok {
		return s.forwardOffload(ctx, w, r, peer.RouterID, env)
	}

	award, err := s.Offload.Offload(ctx, rfb)
	if err != nil {
		// ErrSaturated / ErrAuctionNoBids / ctx cancellation: fall back to
		// local handling rather than fail the client outright.
		return false
	}
	return s.forwardOffload(ctx, w, r, award.RouterID, env)
}

// forwardOffload relays env to routerID and writes its response verbatim,
// the shared tail of both the direct and auction offload paths.
func (s *Server) forwardOffload(ctx context.Context, w http.ResponseWriter, r *http.Request, routerID string, env wire.Envelope[wire.InferenceRequest]) bool {
	if _, ok := s.Cfg.RouterPeerEndpoints[routerID]; !ok {
		return false // no endpoint for this peer: caller schedules locally
	}
	result, err := s.forwardToPeer(ctx, routerID, env)
	if err != nil {
		s.writeErr(w, r, apierr.PeerUnreachable, err.Error())
		return true
	}
	writeJSON(w, http.StatusOK, map[string]any{"response": result.Response, "metering": result.Metering})
	return true
}

// forwardToPeer POSTs env unchanged to the winning peer's relay endpoint,
// resolved from ROUTER_PEER_ENDPOINTS.
func (s *Server) forwardToPeer(ctx context.Context, peerRouterID string, env wire.Envelope[wire.InferenceRequest]) (inferRelayResult, error) {
	base, ok := s.Cfg.RouterPeerEndpoints[peerRouterID]
	if !ok {
		return inferRelayResult{}, fmt.Errorf("peer-unreachable: no endpoint configured for router %q", peerRouterID)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return inferRelayResult{}, fmt.Errorf("marshal relay envelope: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/federation/infer-relay", bytes.NewReader(data))
	if err != nil {
		return inferRelayResult{}, fmt.Errorf("build relay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(httpReq)
	if err != nil {
		return inferRelayResult{}, fmt.Errorf("peer-unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return inferRelayResult{}, fmt.Errorf("federation-failure: peer responded %d", resp.StatusCode)
	}
	var out inferRelayResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return inferRelayResult{}, fmt.Errorf("decode relay response: %w", err)
	}
	return out, nil
}

// Estimator builds an offload.BidEstimator bound to this server's registry
// and scheduler, used when wiring offload.New in cmd/router: this router
// plays the bidder role for peers' own RFBs using the same scheduling
// logic it uses for its own clients. Exported because cmd/router must
// build it before offload.Controller exists to populate Server.Offload.
func (s *Server) Estimator() offload.BidEstimator {
	return func(rfb wire.RequestForBid) (priceMsat, etaMs int64, canServe bool) {
		nowMs := s.nowMs()
		nodes := s.Registry.Active(nowMs)
		for _, n := range nodes {
			for _, cap := range n.Capabilities {
				if cap.ModelID != rfb.ModelID {
					continue
				}
				if n.Capacity.CurrentLoad >= n.Capacity.MaxConcurrent {
					continue
				}
				latencyMs := int64(50)
				if cap.LatencyEstimateMs != nil {
					latencyMs = *cap.LatencyEstimateMs
				}
				price := priceFor(n, rfb.ModelID, 0, 1) // rough per-call estimate
				return int64(price.Total * 1000), latencyMs, true
			}
		}
		return 0, 0, false
	}
}
