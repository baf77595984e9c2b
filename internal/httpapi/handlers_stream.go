package httpapi

import (
	"fmt"
	"net/http"

	"github.com/imattau/fed-AI-sub001/internal/apierr"
	"github.com/imattau/fed-AI-sub001/internal/scheduler"
	"github.com/imattau/fed-AI-sub001/internal/validate"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

const streamChunkSize = 64

// handleInferStream is the SSE variant of /infer (SPEC_FULL §4.10): the
// Runner contract has no incremental API, so the router runs one Infer
// call to completion and emits its output as a sequence of "chunk"
// events, closing with "final" carrying the signed response envelopes
// (or "error" on failure) — giving clients incremental delivery without
// requiring every Runner backend to support true token streaming.
func (s *Server) handleInferStream(w http.ResponseWriter, r *http.Request) {
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

	flusher, canFlush := w.(http.Flusher)
	writeEvent := func(event string, data any) {
		fmt.Fprintf(w, "event: %s\n", event)
		b, err := writeJSONLine(data)
		if err != nil {
			fmt.Fprintf(w, "data: {}\n\n")
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", b)
		if canFlush {
			flusher.Flush()
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

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	resp, err := s.dispatchWithRetry(ctx, nodes, node, req, nowMs)
	if err != nil {
		writeEvent("error", map[string]any{"detail": err.Error()})
		return
	}

	output := resp.Output
	for i := 0; i < len(output); i += streamChunkSize {
		end := i + streamChunkSize
		if end > len(output) {
			end = len(output)
		}
		writeEvent("chunk", wire.InferenceStreamChunk{RequestID: req.RequestID, Delta: output[i:end], Index: i / streamChunkSize})
	}

	meteringRecord := wire.MeteringRecord{RequestID: req.RequestID, NodeID: resp.NodeID}
	signedResp, err := sign(s, resp)
	if err != nil {
		writeEvent("error", map[string]any{"detail": err.Error()})
		return
	}
	signedMetering, err := sign(s, meteringRecord)
	if err != nil {
		writeEvent("error", map[string]any{"detail": err.Error()})
		return
	}
	writeEvent("final", map[string]any{"response": signedResp, "metering": signedMetering})
}
