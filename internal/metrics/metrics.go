// Package metrics wires the router's RED (Rate, Errors, Duration) metrics
// to a Prometheus registry for the /metrics text endpoint, and carries an
// OpenTelemetry meter/tracer scaffold in the teacher's style
// (core/pkg/observability/observability.go) — without an OTLP exporter,
// since this router has nowhere to push spans/metrics to; the Prometheus
// registry is the one ecosystem library the teacher doesn't already carry
// for this concern (see DESIGN.md).
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Registry holds the router's Prometheus collectors.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal           *prometheus.CounterVec
	ErrorsTotal              *prometheus.CounterVec
	RequestDuration          *prometheus.HistogramVec
	PaymentChallengesTotal   prometheus.Counter
	FederationAuctionsTotal  *prometheus.CounterVec
	NodeCooldownsTotal       prometheus.Counter
}

// NewRegistry builds and registers the router's metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_requests_total",
			Help: "Total HTTP requests handled, by route and status.",
		}, []string{"route", "status"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_errors_total",
			Help: "Total errors returned to clients, by error code.",
		}, []string{"code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "router_request_duration_seconds",
			Help:    "Request handling duration in seconds, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		PaymentChallengesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_payment_challenges_total",
			Help: "Total payment challenges issued.",
		}),
		FederationAuctionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_federation_auctions_total",
			Help: "Total offload auctions, by outcome.",
		}, []string{"outcome"}),
		NodeCooldownsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_node_cooldowns_total",
			Help: "Total times a node entered cooldown.",
		}),
	}
	reg.MustRegister(
		r.RequestsTotal,
		r.ErrorsTotal,
		r.RequestDuration,
		r.PaymentChallengesTotal,
		r.FederationAuctionsTotal,
		r.NodeCooldownsTotal,
	)
	return r
}

// Handler serves the Prometheus text exposition format (spec §6 GET /metrics).
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed request for the RED dashboard.
func (r *Registry) ObserveRequest(route string, status int, duration time.Duration) {
	r.RequestsTotal.WithLabelValues(route, http.StatusText(status)).Inc()
	r.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveError records one error response by its apierr code.
func (r *Registry) ObserveError(code string) {
	r.ErrorsTotal.WithLabelValues(code).Inc()
}

// Provider is the OTel tracer/meter scaffold, mirroring the teacher's
// Provider shape but with no OTLP exporter wired: spans and instruments
// are created and recorded in-process only, ready for an exporter to be
// added later without touching call sites.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
}

// NewProvider builds an in-process-only OTel provider for serviceName.
func NewProvider(serviceName string) *Provider {
	tp := sdktrace.NewTracerProvider()
	mp := sdkmetric.NewMeterProvider()
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	return &Provider{
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         tp.Tracer(serviceName),
	}
}

// Tracer returns the router's tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// TrackOperation starts a span for name and returns a closer that ends it,
// recording an error on the span if one occurred.
func (p *Provider) TrackOperation(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := p.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// Shutdown releases the providers (no exporters to flush, but keeps the
// call site symmetry with the teacher's Provider.Shutdown).
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.meterProvider.Shutdown(ctx)
}
