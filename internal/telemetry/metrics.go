package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/taskflow"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Tenant connection registry
	TenantConnectsTotal      metric.Int64Counter
	TenantConnectErrorsTotal metric.Int64Counter
	TenantCacheHitsTotal     metric.Int64Counter
	TenantConnectDuration    metric.Float64Histogram
	TenantStoresDroppedTotal metric.Int64Counter

	// Provisioning saga
	ProvisioningStartedTotal    metric.Int64Counter
	ProvisioningSucceededTotal  metric.Int64Counter
	ProvisioningFailedTotal     metric.Int64Counter
	CompensationFailuresTotal   metric.Int64Counter
	ProvisioningDurationSeconds metric.Float64Histogram

	// Access control
	AuthFailuresTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments come from the global meter provider, which is a no-op until
// InitTelemetry installs a real one.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.TenantConnectsTotal, _ = meter.Int64Counter(
		"taskflow.tenant.connects.total",
		metric.WithDescription("Total number of tenant store connections established"),
		metric.WithUnit("{connection}"),
	)

	m.TenantConnectErrorsTotal, _ = meter.Int64Counter(
		"taskflow.tenant.connect.errors.total",
		metric.WithDescription("Total number of failed tenant store connection attempts"),
		metric.WithUnit("{error}"),
	)

	m.TenantCacheHitsTotal, _ = meter.Int64Counter(
		"taskflow.tenant.cache.hits.total",
		metric.WithDescription("Total number of tenant store resolutions served from the registry cache"),
		metric.WithUnit("{hit}"),
	)

	m.TenantConnectDuration, _ = meter.Float64Histogram(
		"taskflow.tenant.connect.duration",
		metric.WithDescription("Duration of tenant store connection attempts"),
		metric.WithUnit("ms"),
	)

	m.TenantStoresDroppedTotal, _ = meter.Int64Counter(
		"taskflow.tenant.dropped.total",
		metric.WithDescription("Total number of tenant stores destroyed"),
		metric.WithUnit("{store}"),
	)

	m.ProvisioningStartedTotal, _ = meter.Int64Counter(
		"taskflow.provisioning.started.total",
		metric.WithDescription("Total number of provisioning sagas started"),
		metric.WithUnit("{saga}"),
	)

	m.ProvisioningSucceededTotal, _ = meter.Int64Counter(
		"taskflow.provisioning.succeeded.total",
		metric.WithDescription("Total number of provisioning sagas completed"),
		metric.WithUnit("{saga}"),
	)

	m.ProvisioningFailedTotal, _ = meter.Int64Counter(
		"taskflow.provisioning.failed.total",
		metric.WithDescription("Total number of provisioning sagas that failed"),
		metric.WithUnit("{saga}"),
	)

	m.CompensationFailuresTotal, _ = meter.Int64Counter(
		"taskflow.provisioning.compensation.failures.total",
		metric.WithDescription("Total number of compensating actions that failed after retries"),
		metric.WithUnit("{error}"),
	)

	m.ProvisioningDurationSeconds, _ = meter.Float64Histogram(
		"taskflow.provisioning.duration",
		metric.WithDescription("Duration of provisioning sagas"),
		metric.WithUnit("s"),
	)

	m.AuthFailuresTotal, _ = meter.Int64Counter(
		"taskflow.auth.failures.total",
		metric.WithDescription("Total number of requests rejected by the access control gate"),
		metric.WithUnit("{request}"),
	)

	return m
}
