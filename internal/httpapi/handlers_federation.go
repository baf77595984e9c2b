package httpapi

import (
	"net/http"

	"github.com/imattau/fed-AI-sub001/internal/apierr"
	"github.com/imattau/fed-AI-sub001/internal/federation"
	"github.com/imattau/fed-AI-sub001/internal/scheduler"
	"github.com/imattau/fed-AI-sub001/internal/validate"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// federationRequired fails the route with federation-failure if this
// router was started without a federation engine (spec §6: routers may
// run standalone with federation disabled).
func (s *Server) federationRequired(w http.ResponseWriter, r *http.Request) bool {
	if s.Fed == nil {
		s.writeErr(w, r, apierr.FederationFailure, "federation is not enabled on this router")
		return false
	}
	return true
}

// handleFederationCaps accepts a CAPS_ANNOUNCE pushed directly over HTTP,
// an alternate transport to the relay pool for peers not reachable over
// Nostr relays.
func (s *Server) handleFederationCaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.federationRequired(w, r) {
		return
	}
	var msg wire.RouterControlMessage[wire.CapabilityProfile]
	if !decodeJSON(w, r, &msg) {
		return
	}
	if res := validate.ControlMessage(msg); !res.OK {
		s.writeErr(w, r, apierr.EnvelopeMalformed, detailOf(res.Errors))
		return
	}
	nowMs := s.nowMs()
	if err := federation.VerifyReceived(s.Verifier, msg, nowMs); err != nil {
		s.writeErr(w, r, apierr.EnvelopeSignatureInvalid, err.Error())
		return
	}
	s.Fed.Dir.Observe(msg.RouterID, msg.TimestampMs, func(p *wire.PeerRouter) {
		p.CapabilityProfile = msg.Payload
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleFederationPeers is a read-only introspection endpoint over the
// peer directory (SPEC_FULL §6 operational visibility, supplemental to
// spec.md's route table).
func (s *Server) handleFederationPeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	if !s.federationRequired(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"peers": s.Fed.Dir.Snapshot()})
}

// handleFederationPaymentRequest lets a peer router that offloaded a job
// to this one request the client-facing PaymentRequest be re-issued in
// its own name, for inter-router settlement reconciliation.
func (s *Server) handleFederationPaymentRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.federationRequired(w, r) {
		return
	}
	var msg wire.RouterControlMessage[wire.RouterReceipt]
	if !decodeJSON(w, r, &msg) {
		return
	}
	if res := validate.ControlMessage(msg); !res.OK {
		s.writeErr(w, r, apierr.EnvelopeMalformed, detailOf(res.Errors))
		return
	}
	nowMs := s.nowMs()
	if err := federation.VerifyReceived(s.Verifier, msg, nowMs); err != nil {
		s.writeErr(w, r, apierr.EnvelopeSignatureInvalid, err.Error())
		return
	}
	receipt := msg.Payload
	challenge, ok := s.Payment.Challenges()[receipt.RequestID]
	if !ok {
		s.writeErr(w, r, apierr.PaymentRequestExpired, "no outstanding payment request for "+receipt.RequestID)
		return
	}
	signed, err := sign(s, challenge)
	if err != nil {
		s.writeErr(w, r, apierr.Internal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment": signed})
}

// handleFederationPaymentReceipt is the inter-router twin of
// /payment-receipt: a peer settling its side of an offloaded job's
// payment reports the receipt back to the originating router's ledger.
func (s *Server) handleFederationPaymentReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.federationRequired(w, r) {
		return
	}
	var env wire.Envelope[wire.PaymentReceipt]
	if !decodeJSON(w, r, &env) {
		return
	}
	nowMs, ok := acceptEnvelope(s, w, r, env, validate.PaymentReceipt)
	if !ok {
		return
	}
	code, accepted := s.Payment.AcceptSignedReceipt(env, nowMs)
	if !accepted {
		s.writeErr(w, r, paymentFailureCode(code), string(code))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleFederationInferRelay is the peer-side receiver for a job another
// router offloaded to this one (spec §4.8 "transparent mesh"). It runs
// the identical envelope-accept, schedule, and dispatch path as /infer,
// but never re-offloads (an offloaded job terminates at its first hop).
func (s *Server) handleFederationInferRelay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.federationRequired(w, r) {
		return
	}
	var env wire.Envelope[wire.InferenceRequest]
	if !decodeJSON(w, r, &env) {
		return
	}
	nowMs, ok := acceptEnvelope(s, w, r, env, validate.InferenceRequest)
	if !ok {
		return
	}
	req := env.Payload
	ctx := r.Context()

	nodes, constraints := applyRegionPolicy(s, s.Registry.Active(nowMs), req.Constraints)
	schedReq := scheduler.Request{ModelID: req.ModelID, OutputTokensEstimate: req.MaxTokens, Constraints: constraints}
	result := scheduler.Select(nodes, schedReq, s.Weights)
	if result.Selected == nil {
		s.writeErr(w, r, schedulerReasonCode(result.Reason), "no node available for model "+req.ModelID)
		return
	}
	node := *result.Selected

	resp, err := s.dispatchWithRetry(ctx, nodes, node, req, nowMs)
	if err != nil {
		s.writeErr(w, r, apierr.RunnerUnavailable, err.Error())
		return
	}
	meteringRecord := wire.MeteringRecord{RequestID: req.RequestID, NodeID: resp.NodeID}
	signedResp, err := sign(s, resp)
	if err != nil {
		s.writeErr(w, r, apierr.Internal, err.Error())
		return
	}
	signedMetering, err := sign(s, meteringRecord)
	if err != nil {
		s.writeErr(w, r, apierr.Internal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"response": signedResp, "metering": signedMetering})
}
