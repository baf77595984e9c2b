package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/imattau/fed-AI-sub001/internal/apierr"
)

// maxBodyBytes bounds every decoded request body (teacher convention,
// core/pkg/api/handlers.go).
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		apierr.Write(w, r, apierr.EnvelopeMalformed, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeErr renders an RFC 7807 error body and records it against the
// router_errors_total counter, by code (spec §4.11 RED metrics).
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, code apierr.Code, detail string) {
	apierr.Write(w, r, code, detail)
	if s.Metrics != nil {
		s.Metrics.ObserveError(string(code))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// methodNotAllowed is a plain 405: the apierr taxonomy is closed to the
// wire-level error codes spec §7 enumerates, and routing mismatches never
// reach a client speaking the protocol correctly.
func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

// writeJSONLine marshals v with no trailing newline, for embedding as one
// SSE "data:" line.
func writeJSONLine(v any) ([]byte, error) {
	return json.Marshal(v)
}
