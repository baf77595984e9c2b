package httpapi

import (
	"net/http"

	"github.com/imattau/fed-AI-sub001/internal/apierr"
	"github.com/imattau/fed-AI-sub001/internal/validate"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// handlePaymentReceipt accepts a client-signed PaymentReceipt out of band
// from /infer (spec §4.6: a receipt can arrive before the matching infer
// retry, or be resubmitted idempotently).
func (s *Server) handlePaymentReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
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
