package metrics_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/metrics"
)

func TestRegistry_HandlerServesPrometheusText(t *testing.T) {
	r := metrics.NewRegistry()
	r.ObserveRequest("/infer", 200, 10*time.Millisecond)
	r.ObserveError("nonce-reused")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "router_requests_total")
	require.Contains(t, rec.Body.String(), "router_errors_total")
}

func TestProvider_TrackOperationAcceptsSuccessAndError(t *testing.T) {
	p := metrics.NewProvider("test-router")
	defer p.Shutdown(context.Background())

	_, done := p.TrackOperation(context.Background(), "test-op")
	done(nil)

	_, done2 := p.TrackOperation(context.Background(), "test-op-failed")
	done2(require.AnError)
}
