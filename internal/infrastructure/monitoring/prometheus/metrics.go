package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the service-level metrics. Pipeline metrics are
// registered separately against the same registry.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Models
	ModelsLoaded GaugeVec

	// System Health
	BuildInfo         GaugeVec
	ServiceStartTime  GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// DefaultHTTPDurationBuckets covers single-row requests up to large batches.
var DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests")

	// Models
	m.ModelsLoaded = collector.RegisterGauge("models_loaded", "Resident models by property and version (1=loaded)", "property", "version")

	// System Health
	m.BuildInfo = collector.RegisterGauge("build_info", "Build information", "version", "commit")
	m.ServiceStartTime = collector.RegisterGauge("start_time_seconds", "Unix time the service started")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors returned to clients", "component", "code")

	m.ServiceStartTime.WithLabelValues().Set(float64(time.Now().Unix()))
	return m
}

// Helpers

// RecordHTTPRequest records one finished request. route is the matched
// route pattern, not the raw path.
func RecordHTTPRequest(metrics *AppMetrics, method, route string, statusCode int, duration time.Duration) {
	metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError counts an error response by code.
func RecordError(metrics *AppMetrics, component, code string) {
	metrics.ErrorsTotal.WithLabelValues(component, code).Inc()
}

// SetHealth records a component's health.
func SetHealth(metrics *AppMetrics, component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	metrics.HealthCheckStatus.WithLabelValues(component).Set(v)
}

// SetModelLoaded marks a model version as resident.
func SetModelLoaded(metrics *AppMetrics, property, version string) {
	metrics.ModelsLoaded.WithLabelValues(property, version).Set(1)
}

// SetBuildInfo publishes the binary's version.
func SetBuildInfo(metrics *AppMetrics, version, commit string) {
	metrics.BuildInfo.WithLabelValues(version, commit).Set(1)
}
