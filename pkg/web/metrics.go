package web

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Analyze outcomes, used as the "outcome" metric attribute.
const (
	OutcomeOK           = "ok"
	OutcomeBadRequest   = "bad_request"
	OutcomeUpstream     = "upstream_error"
	OutcomeInternal     = "internal_error"
	OutcomeUnconfigured = "unconfigured"
)

// Metrics records analyze traffic and serves it in Prometheus format.
// Each instance has its own registry.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	requests metric.Int64Counter
	latency  metric.Float64Histogram
	frames   metric.Int64Counter
}

// NewMetrics wires an OpenTelemetry meter to a Prometheus exporter.
func NewMetrics(service string) (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
	)
	meter := provider.Meter("github.com/teslashibe/go-visionassist/pkg/web")

	requests, err := meter.Int64Counter("visionassist.analyze.requests",
		metric.WithDescription("Analyze requests by outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("visionassist.analyze.duration",
		metric.WithDescription("Analyze request latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	frames, err := meter.Int64Counter("visionassist.preview.frames",
		metric.WithDescription("Preview frames broadcast to dashboard clients"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		provider: provider,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requests: requests,
		latency:  latency,
		frames:   frames,
	}, nil
}

// ObserveAnalyze records one analyze request.
func (m *Metrics) ObserveAnalyze(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, elapsed.Seconds(), attrs)
}

// ObserveFrame records one preview frame.
func (m *Metrics) ObserveFrame() {
	m.frames.Add(context.Background(), 1)
}

// Handler serves the Prometheus exposition.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
