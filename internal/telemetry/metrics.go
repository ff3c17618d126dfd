package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/recipes"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Session lifecycle metrics
	SessionLoginsTotal            metric.Int64Counter
	SessionLogoutsTotal           metric.Int64Counter
	SessionExpiriesTotal          metric.Int64Counter
	SessionExpirySuppressedTotal  metric.Int64Counter
	SessionStoreErrorsTotal       metric.Int64Counter
	SessionCorruptUserRecordTotal metric.Int64Counter

	// Gateway metrics
	GatewayRequestsTotal        metric.Int64Counter
	GatewayUnauthorizedTotal    metric.Int64Counter
	GatewayTransportErrorsTotal metric.Int64Counter
	GatewayRequestDuration      metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = NewMetrics(otel.GetMeterProvider().Meter(meterName))
	})
	return metrics
}

// NewMetrics creates all metric instruments from the given meter.
// Tests pass a meter from an SDK provider with a manual reader.
func NewMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.SessionLoginsTotal, _ = meter.Int64Counter(
		"recipes.session.logins.total",
		metric.WithDescription("Total number of successful logins"),
		metric.WithUnit("{login}"),
	)

	m.SessionLogoutsTotal, _ = meter.Int64Counter(
		"recipes.session.logouts.total",
		metric.WithDescription("Total number of logouts, including those caused by expiry"),
		metric.WithUnit("{logout}"),
	)

	m.SessionExpiriesTotal, _ = meter.Int64Counter(
		"recipes.session.expiries.total",
		metric.WithDescription("Total number of expiry notifications fired"),
		metric.WithUnit("{expiry}"),
	)

	m.SessionExpirySuppressedTotal, _ = meter.Int64Counter(
		"recipes.session.expiries.suppressed.total",
		metric.WithDescription("Total number of expiry signals ignored because one was already pending"),
		metric.WithUnit("{expiry}"),
	)

	m.SessionStoreErrorsTotal, _ = meter.Int64Counter(
		"recipes.session.store.errors.total",
		metric.WithDescription("Total number of token store read or write failures"),
		metric.WithUnit("{error}"),
	)

	m.SessionCorruptUserRecordTotal, _ = meter.Int64Counter(
		"recipes.session.store.corrupt_user.total",
		metric.WithDescription("Total number of stored user records discarded as unparseable"),
		metric.WithUnit("{record}"),
	)

	m.GatewayRequestsTotal, _ = meter.Int64Counter(
		"recipes.gateway.requests.total",
		metric.WithDescription("Total number of requests sent through the gateway"),
		metric.WithUnit("{request}"),
	)

	m.GatewayUnauthorizedTotal, _ = meter.Int64Counter(
		"recipes.gateway.unauthorized.total",
		metric.WithDescription("Total number of responses rejected with 401"),
		metric.WithUnit("{response}"),
	)

	m.GatewayTransportErrorsTotal, _ = meter.Int64Counter(
		"recipes.gateway.transport_errors.total",
		metric.WithDescription("Total number of requests that failed before a response arrived"),
		metric.WithUnit("{error}"),
	)

	m.GatewayRequestDuration, _ = meter.Float64Histogram(
		"recipes.gateway.request.duration",
		metric.WithDescription("Duration of gateway requests"),
		metric.WithUnit("ms"),
	)

	return m
}
