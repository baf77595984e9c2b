package httpapi

import (
	"net/http"
	"time"

	"github.com/imattau/fed-AI-sub001/internal/apierr"
	"github.com/imattau/fed-AI-sub001/internal/scheduler"
	"github.com/imattau/fed-AI-sub001/internal/validate"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// schedulerReasonCode maps a scheduler.Reason to its apierr taxonomy code
// (spec §7 "Scheduling" codes).
func schedulerReasonCode(reason scheduler.Reason) apierr.Code {
	switch reason {
	case scheduler.ReasonCapacityExhausted:
		return apierr.CapacityExhausted
	case scheduler.ReasonConstraintUnmet:
		return apierr.ConstraintUnmet
	default:
		return apierr.NoCapableNode
	}
}

// applyRegionPolicy folds the operator's RegionPolicy into a scheduling
// request: a denied region is excluded from candidate nodes outright
// (never overridable by the client), and an unset client region list
// defaults to the policy's allowed list (spec §4.5 "operator compliance
// constraints take precedence over an absent client preference").
func applyRegionPolicy(s *Server, nodes []wire.Node, constraints wire.Constraints) ([]wire.Node, wire.Constraints) {
	policy := s.Cfg.RegionPolicy
	if policy == nil {
		return nodes, constraints
	}
	filtered := nodes[:0:0]
	for _, n := range nodes {
		if !policy.Denied(n.Region) {
			filtered = append(filtered, n)
		}
	}
	if len(constraints.Regions) == 0 && len(policy.AllowedRegions) > 0 {
		constraints.Regions = policy.AllowedRegions
	}
	return filtered, constraints
}

// priceFor computes the cost breakdown of serving req on node n, mirroring
// scheduler's own (unexported) pricing formula (spec §4.5).
func priceFor(n wire.Node, modelID string, inputTokens, outputTokens int) wire.PriceBreakdown {
	for _, cap := range n.Capabilities {
		if cap.ModelID != modelID {
			continue
		}
		switch cap.Pricing.Unit {
		case wire.PricingUnitToken:
			input := cap.Pricing.InputRate * float64(inputTokens)
			output := cap.Pricing.OutputRate * float64(outputTokens)
			return wire.PriceBreakdown{Input: input, Output: output, Total: input + output, Currency: cap.Pricing.Currency}
		case wire.PricingUnitSecond:
			latencyMs := int64(0)
			if cap.LatencyEstimateMs != nil {
				latencyMs = *cap.LatencyEstimateMs
			}
			total := cap.Pricing.InputRate * (float64(latencyMs) / 1000.0)
			return wire.PriceBreakdown{Input: total, Total: total, Currency: cap.Pricing.Currency}
		}
	}
	return wire.PriceBreakdown{}
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var env wire.Envelope[wire.QuoteRequest]
	if !decodeJSON(w, r, &env) {
		return
	}
	nowMs, ok := acceptEnvelope(s, w, r, env, validate.QuoteRequest)
	if !ok {
		return
	}
	req := env.Payload

	nodes, constraints := applyRegionPolicy(s, s.Registry.Active(nowMs), req.Constraints)
	schedReq := scheduler.Request{
		ModelID:              req.ModelID,
		InputTokensEstimate:  req.InputTokensEstimate,
		OutputTokensEstimate: req.OutputTokensEstimate,
		Constraints:          constraints,
	}
	result := scheduler.Select(nodes, schedReq, s.Weights)
	if result.Selected == nil {
		s.writeErr(w, r, schedulerReasonCode(result.Reason), "no node available for model "+req.ModelID)
		return
	}

	price := priceFor(*result.Selected, req.ModelID, req.InputTokensEstimate, req.OutputTokensEstimate)
	resp := wire.QuoteResponse{
		RequestID:   req.RequestID,
		NodeID:      result.Selected.NodeID,
		Price:       price,
		ExpiresAtMs: nowMs + 30_000,
	}
	signed, err := sign(s, resp)
	if err != nil {
		s.writeErr(w, r, apierr.Internal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": signed})
}

// sign is a small wrapper so handlers don't import envelope.Sign's time
// argument at every call site.
func sign[T any](s *Server, payload T) (wire.Envelope[T], error) {
	return signAt(s, payload, time.Now())
}
