// Package httpapi is the router's HTTP surface (spec §6 / SPEC_FULL §4.10):
// quote/infer/payment/federation routes over net/http + http.ServeMux,
// RFC 7807 error bodies via internal/apierr, and a per-IP rate limiter
// grounded on the teacher's core/pkg/api/middleware.go.
package httpapi

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/imattau/fed-AI-sub001/internal/config"
	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/federation"
	"github.com/imattau/fed-AI-sub001/internal/metrics"
	"github.com/imattau/fed-AI-sub001/internal/offload"
	"github.com/imattau/fed-AI-sub001/internal/payment"
	"github.com/imattau/fed-AI-sub001/internal/persistence"
	"github.com/imattau/fed-AI-sub001/internal/registry"
	"github.com/imattau/fed-AI-sub001/internal/replay"
	"github.com/imattau/fed-AI-sub001/internal/scheduler"
	"github.com/imattau/fed-AI-sub001/internal/workerpool"
	"github.com/imattau/fed-AI-sub001/pkg/lnadapter"
	"github.com/imattau/fed-AI-sub001/pkg/runner"
)

// Server wires every component the HTTP surface depends on. All fields
// are safe for concurrent use by multiple handler goroutines; Server
// itself holds no mutable state beyond what its collaborators own.
type Server struct {
	Cfg      *config.Config
	Signer   envelope.Signer
	Verifier envelope.Verifier
	Replay   replay.Store
	Registry *registry.Registry
	Weights  scheduler.Weights
	Payment  *payment.Engine
	Fed      *federation.Engine // nil disables federation routes
	Offload  *offload.Controller // nil disables auction offload
	Runner   runner.Runner
	LN       lnadapter.Adapter // nil: challenges carry no invoice; receipts are never verified through it
	Metrics  *metrics.Registry
	Tracer   *metrics.Provider // nil: spans are skipped, not fatal
	Pool     *workerpool.Pool
	Store    *persistence.Store // nil: in-memory only, no crash recovery
	Mode     string             // "lite" or "postgres", surfaced at GET /status

	HTTPClient *http.Client // used to forward offloaded jobs to peers
	Log        *slog.Logger

	startedAt time.Time
	limiter   *rateLimiter
	adminMu   sync.Mutex // serializes POST /admin/config writers
}

// NewServer constructs a Server, starting its per-IP rate limiter.
func NewServer(cfg *config.Config, deps Server) *Server {
	s := deps
	s.Cfg = cfg
	if s.Log == nil {
		s.Log = slog.Default()
	}
	if s.HTTPClient == nil {
		s.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	s.startedAt = time.Now()
	s.limiter = newRateLimiter(50, 100)
	return &s
}

// Routes builds the router's http.Handler, every route rate-limited and
// every route except /metrics itself RED-metric-observed (spec
// §4.10/§4.11).
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	route := func(path string, h http.HandlerFunc) {
		mux.HandleFunc(path, observe(s.Metrics, path, h))
	}

	route("/health", s.handleHealth)
	route("/status", s.handleStatus)
	route("/nodes", s.handleNodes)
	mux.Handle("/metrics", s.Metrics.Handler())

	route("/quote", s.handleQuote)
	route("/infer", s.handleInfer)
	route("/infer/stream", s.handleInferStream)
	route("/payment-receipt", s.handlePaymentReceipt)

	route("/federation/caps", s.handleFederationCaps)
	route("/federation/payment-request", s.handleFederationPaymentRequest)
	route("/federation/payment-receipt", s.handleFederationPaymentReceipt)
	route("/federation/peers", s.handleFederationPeers)
	route("/federation/infer-relay", s.handleFederationInferRelay)

	route("/admin/config", s.handleAdminConfig)

	return requestIDMiddleware(s.limiter.middleware(mux))
}

func (s *Server) nowMs() int64 { return time.Now().UnixMilli() }
