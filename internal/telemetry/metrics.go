package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider creates a Prometheus-backed MeterProvider on its own
// registry and sets it as the global provider. It returns the /metrics
// handler, the provider and its shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, metric.MeterProvider, func(context.Context) error, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(newResource(serviceName, serviceVersion)),
	)
	otel.SetMeterProvider(mp)

	if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to start runtime metrics: %w", err)
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return handler, mp, mp.Shutdown, nil
}

// Outcome labels shared by the counters.
const (
	OutcomeSuccess      = "success"
	OutcomeRejected     = "rejected"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
	OutcomeDuplicate    = "duplicate"
	OutcomeInconclusive = "inconclusive"
)

// Metrics holds the checkout and payment instruments. A nil *Metrics
// records nothing.
type Metrics struct {
	checkoutAttempts metric.Int64Counter
	paymentCallbacks metric.Int64Counter
	gatewayRequests  metric.Int64Counter
	gatewayLatency   metric.Float64Histogram
}

// NewMetrics registers the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("kart-checkout")

	checkoutAttempts, err := meter.Int64Counter("checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"))
	if err != nil {
		return nil, err
	}
	paymentCallbacks, err := meter.Int64Counter("payment.callbacks",
		metric.WithDescription("Gateway callbacks by gateway and outcome"))
	if err != nil {
		return nil, err
	}
	gatewayRequests, err := meter.Int64Counter("gateway.requests",
		metric.WithDescription("Outbound gateway calls by gateway, operation and outcome"))
	if err != nil {
		return nil, err
	}
	gatewayLatency, err := meter.Float64Histogram("gateway.request.duration",
		metric.WithDescription("Outbound gateway call latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checkoutAttempts: checkoutAttempts,
		paymentCallbacks: paymentCallbacks,
		gatewayRequests:  gatewayRequests,
		gatewayLatency:   gatewayLatency,
	}, nil
}

func (m *Metrics) CheckoutAttempt(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.checkoutAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) PaymentCallback(ctx context.Context, gateway, outcome string) {
	if m == nil {
		return
	}
	m.paymentCallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", gateway),
		attribute.String("outcome", outcome),
	))
}

// GatewayRequest records one outbound call started at start.
func (m *Metrics) GatewayRequest(ctx context.Context, gateway, operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("gateway", gateway),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.gatewayRequests.Add(ctx, 1, attrs)
	m.gatewayLatency.Record(ctx, time.Since(start).Seconds(), attrs)
}
