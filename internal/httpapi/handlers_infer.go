package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/imattau/fed-AI-sub001/internal/apierr"
	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/payment"
	"github.com/imattau/fed-AI-sub001/internal/scheduler"
	"github.com/imattau/fed-AI-sub001/internal/validate"
	"github.com/imattau/fed-AI-sub001/internal/wire"
	"github.com/imattau/fed-AI-sub001/pkg/runner"
)

// paymentFailureCode maps a payment.FailureCode to its apierr taxonomy code.
func paymentFailureCode(code payment.FailureCode) apierr.Code {
	switch code {
	case payment.ErrInvoiceMismatch:
		return apierr.PaymentInvoiceMismatch
	case payment.ErrAmountMismatch:
		return apierr.PaymentAmountMismatch
	case payment.ErrSplitTotalMismatch:
		return apierr.PaymentSplitTotalMismatch
	default:
		return apierr.PaymentRequestExpired
	}
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
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

	for _, receiptEnv := range req.PaymentReceipts {
		if !envelope.Verify(s.Verifier, receiptEnv) {
			s.writeErr(w, r, apierr.PaymentSignatureInvalid, "payment receipt signature invalid")
			return
		}
		if code, accepted := s.Payment.AcceptSignedReceipt(receiptEnv, nowMs); !accepted {
			s.writeErr(w, r, paymentFailureCode(code), string(code))
			return
		}
	}

	if s.Offload != nil && s.Offload.ShouldOffload(s.LoadFactor(nowMs)) {
		if s.tryOffload(ctx, w, r, env, req, nowMs) {
			return
		}
	}

	nodes, constraints := applyRegionPolicy(s, s.Registry.Active(nowMs), req.Constraints)
	schedReq := scheduler.Request{ModelID: req.ModelID, OutputTokensEstimate: req.MaxTokens, Constraints: constraints}
	result := scheduler.Select(nodes, schedReq, s.Weights)
	if result.Selected == nil {
		s.writeErr(w, r, schedulerReasonCode(result.Reason), "no node available for model "+req.ModelID)
		return
	}
	node := *result.Selected

	if s.Cfg.RouterRequirePayment {
		if done := s.gatePayment(w, r, req, node, nowMs); done {
			return
		}
	}

	resp, err := s.dispatchWithRetry(ctx, nodes, node, req, nowMs)
	if err != nil {
		var clientErr *runner.ClientError
		if errors.As(err, &clientErr) {
			s.writeErr(w, r, apierr.RunnerClientError, err.Error())
			return
		}
		s.Log.Warn("infer dispatch failed", "requestId", requestIDFrom(ctx), "modelId", req.ModelID, "err", err)
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

// gatePayment implements the CHALLENGED/NONE/EXPIRED/PAID/CONSUMED state
// machine in front of /infer (spec §4.6, end-to-end scenario 2). It writes
// the 402 response itself when payment is still outstanding and reports
// done=true so the caller stops.
func (s *Server) gatePayment(w http.ResponseWriter, r *http.Request, req wire.InferenceRequest, node wire.Node, nowMs int64) (done bool) {
	state := s.Payment.State(req.RequestID, nowMs)
	switch state {
	case wire.PaymentStatePaid:
		s.Payment.ConsumeIfPaid(req.RequestID, nowMs)
		return false
	case wire.PaymentStateConsumed:
		return false
	default:
		// NONE, CHALLENGED (still outstanding — re-send the same
		// challenge so clients can retry idempotently), EXPIRED (reissue).
		var challenge wire.PaymentRequest
		if state == wire.PaymentStateChallenged {
			challenge = s.Payment.Challenges()[req.RequestID]
		} else {
			amountSats := s.estimateAmountSats(r.Context(), node, req)
			challenge = s.Payment.IssueChallenge(req.RequestID, amountSats, node.NodeID, s.Cfg.RouterID, nil, nowMs)
			if s.LN != nil {
				if inv, err := s.LN.Invoice(r.Context(), lnInvoiceRequest(req.RequestID, node.NodeID, amountSats)); err == nil {
					s.Payment.WithInvoice(req.RequestID, inv.Invoice, inv.PaymentHash)
					challenge.Invoice = inv.Invoice
					challenge.PaymentHash = inv.PaymentHash
				}
			}
		}
		signed, err := sign(s, challenge)
		if err != nil {
			s.writeErr(w, r, apierr.Internal, err.Error())
			return true
		}
		writeJSON(w, http.StatusPaymentRequired, map[string]any{"payment": signed})
		return true
	}
}

func (s *Server) estimateAmountSats(ctx context.Context, node wire.Node, req wire.InferenceRequest) int64 {
	if s.Runner != nil {
		inferReq := req
		est, err := s.Runner.Estimate(ctx, inferReq)
		if err == nil && est.CostEstimate != nil {
			return int64(math.Round(*est.CostEstimate))
		}
	}
	price := priceFor(node, req.ModelID, 0, req.MaxTokens)
	return int64(math.Round(price.Total))
}

// dispatchWithRetry runs one inference, retrying once against the same
// node then once against an alternate node on 5xx/timeout (spec §7
// propagation rule). A 4xx from the runner never retries.
func (s *Server) dispatchWithRetry(ctx context.Context, nodes []wire.Node, node wire.Node, req wire.InferenceRequest, nowMs int64) (wire.InferenceResponse, error) {
	resp, err := s.tryNode(ctx, node, req, nowMs)
	if err == nil {
		return resp, nil
	}
	var clientErr *runner.ClientError
	if errors.As(err, &clientErr) {
		return wire.InferenceResponse{}, err
	}

	resp, err = s.tryNode(ctx, node, req, nowMs)
	if err == nil {
		return resp, nil
	}
	if errors.As(err, &clientErr) {
		return wire.InferenceResponse{}, err
	}

	alt := alternateNode(nodes, node.NodeID)
	if alt == nil {
		return wire.InferenceResponse{}, fmt.Errorf("runner-unavailable: no alternate node")
	}
	resp, err = s.tryNode(ctx, *alt, req, nowMs)
	return resp, err
}

func (s *Server) tryNode(ctx context.Context, node wire.Node, req wire.InferenceRequest, nowMs int64) (wire.InferenceResponse, error) {
	s.Registry.AdjustLoad(node.NodeID, 1)
	defer s.Registry.AdjustLoad(node.NodeID, -1)

	end := func(error) {}
	if s.Tracer != nil {
		ctx, end = s.Tracer.TrackOperation(ctx, "runner.Infer")
	}
	resp, err := s.Runner.Infer(ctx, req)
	end(err)
	if err != nil {
		s.Registry.RecordFailure(node.NodeID, nowMs)
		return wire.InferenceResponse{}, fmt.Errorf("runner-unavailable: %w", err)
	}
	s.Registry.RecordSuccess(node.NodeID, nowMs)
	if resp.NodeID == "" {
		resp.NodeID = node.NodeID
	}
	return resp, nil
}

func alternateNode(nodes []wire.Node, excludeID string) *wire.Node {
	for i := range nodes {
		if nodes[i].NodeID != excludeID {
			n := nodes[i]
			return &n
		}
	}
	return nil
}

// LoadFactor is the router's own aggregate utilization across active
// nodes, compared against RouterOffloadThreshold (SPEC_FULL §4.8).
// Exported for cmd/router's federation STATUS_ANNOUNCE provider.
func (s *Server) LoadFactor(nowMs int64) float64 {
	nodes := s.Registry.Active(nowMs)
	if len(nodes) == 0 {
		return 1.0 // no local capacity at all looks fully saturated
	}
	var sum float64
	for _, n := range nodes {
		if n.Capacity.MaxConcurrent == 0 {
			sum += 1.0
			continue
		}
		sum += float64(n.Capacity.CurrentLoad) / float64(n.Capacity.MaxConcurrent)
	}
	return sum / float64(len(nodes))
}

func jobHash(req wire.InferenceRequest) string {
	digest := sha256.Sum256([]byte(req.RequestID + "|" + req.ModelID + "|" + req.Input))
	return hex.EncodeToString(digest[:])
}
