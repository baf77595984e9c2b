package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/imattau/fed-AI-sub001/internal/apierr"
	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/replay"
	"github.com/imattau/fed-AI-sub001/internal/validate"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// acceptEnvelope runs the full inbound gate spec §4.1-4.3 requires of
// every signed envelope: structural shape, signature, then replay/ts
// window. On any failure it writes the RFC 7807 response itself and
// returns ok=false. The structural check and signature verify are
// CPU-bound and run on the worker pool (spec §4.11/§6 suspension point
// "submitting to worker pool") rather than the handler's own goroutine.
func acceptEnvelope[T any](s *Server, w http.ResponseWriter, r *http.Request, env wire.Envelope[T], inner validate.Validator[T]) (nowMs int64, ok bool) {
	validOK, sigOK, detail := validateAndVerify(s, r.Context(), env, inner)
	if !validOK {
		s.writeErr(w, r, apierr.EnvelopeMalformed, detail)
		return 0, false
	}
	if !sigOK {
		s.writeErr(w, r, apierr.EnvelopeSignatureInvalid, "signature does not match keyId")
		return 0, false
	}
	nowMs = s.nowMs()
	switch s.Replay.Check(env.Nonce, env.TsMs, nowMs) {
	case replay.NonceReused:
		s.writeErr(w, r, apierr.NonceReused, "nonce already consumed")
		return 0, false
	case replay.TsOutOfWindow:
		s.writeErr(w, r, apierr.TsOutOfWindow, "timestamp outside replay window")
		return 0, false
	}
	return nowMs, true
}

// envelopeCheckOutcome is what the pooled validate+verify task reports back.
type envelopeCheckOutcome struct {
	validOK bool
	sigOK   bool
	detail  string
}

func validateAndVerify[T any](s *Server, ctx context.Context, env wire.Envelope[T], inner validate.Validator[T]) (validOK, sigOK bool, detail string) {
	task := func() (any, error) {
		result := validate.Envelope(inner)(env)
		if !result.OK {
			return envelopeCheckOutcome{detail: detailOf(result.Errors)}, nil
		}
		return envelopeCheckOutcome{validOK: true, sigOK: envelope.Verify(s.Verifier, env)}, nil
	}
	if s.Pool == nil {
		out, _ := task()
		o := out.(envelopeCheckOutcome)
		return o.validOK, o.sigOK, o.detail
	}
	value, err := s.Pool.Submit(ctx, task)
	if err != nil {
		return false, false, "envelope check canceled: " + err.Error()
	}
	o := value.(envelopeCheckOutcome)
	return o.validOK, o.sigOK, o.detail
}

func detailOf(errs []validate.FieldError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}
