package common

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// PredictionMetrics is the telemetry API of the prediction pipeline. Model
// loading, per-row predictions, batches and the result cache all report
// through it so the backend (Prometheus, in-memory, noop) can be swapped
// without touching pipeline code.
type PredictionMetrics interface {
	// RecordModelLoad records one artifact load attempt.
	RecordModelLoad(ctx context.Context, modelName, version string, durationMs float64, success bool)

	// RecordInference records one row passing (or failing) a pipeline stage.
	RecordInference(ctx context.Context, params *InferenceMetricParams)

	// RecordBatchProcessing records a finished batch.
	RecordBatchProcessing(ctx context.Context, params *BatchMetricParams)

	// RecordCacheAccess records a prediction cache hit or miss.
	RecordCacheAccess(ctx context.Context, hit bool, property string)
}

// ---------------------------------------------------------------------------
// Parameter structs
// ---------------------------------------------------------------------------

// Pipeline stages reported in InferenceMetricParams.Stage.
const (
	StageValidate = "validate"
	StageExtract  = "extract"
	StagePredict  = "predict"
)

// InferenceMetricParams carries the data for one row stage.
type InferenceMetricParams struct {
	Property     string  `json:"property"`
	ModelVersion string  `json:"model_version"`
	Stage        string  `json:"stage"`
	DurationMs   float64 `json:"duration_ms"`
	Success      bool    `json:"success"`
	ErrorCode    string  `json:"error_code,omitempty"`
}

// BatchMetricParams carries the data for a batch.
type BatchMetricParams struct {
	Property        string  `json:"property"`
	TotalRows       int     `json:"total_rows"`
	Aborted         bool    `json:"aborted"`
	ErrorCode       string  `json:"error_code,omitempty"`
	TotalDurationMs float64 `json:"total_duration_ms"`
	Concurrency     int     `json:"concurrency"`
}

// ---------------------------------------------------------------------------
// Prometheus implementation
// ---------------------------------------------------------------------------

var defaultLatencyBuckets = []float64{0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

type prometheusPredictionMetrics struct {
	stageDuration     *prometheus.HistogramVec
	stageTotal        *prometheus.CounterVec
	batchDuration     *prometheus.HistogramVec
	batchRowsTotal    *prometheus.CounterVec
	batchTotal        *prometheus.CounterVec
	cacheAccessTotal  *prometheus.CounterVec
	modelLoadDuration *prometheus.HistogramVec
}

// NewPrometheusPredictionMetrics creates a Prometheus-backed implementation
// and registers its collectors with registerer under namespace.
func NewPrometheusPredictionMetrics(registerer prometheus.Registerer, namespace string) (PredictionMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &prometheusPredictionMetrics{}

	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_milliseconds",
		Help:      "Per-row pipeline stage latency in milliseconds.",
		Buckets:   defaultLatencyBuckets,
	}, []string{"property", "stage"})

	m.stageTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_total",
		Help:      "Per-row pipeline stage executions by outcome.",
	}, []string{"property", "stage", "status", "code"})

	m.batchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "batch_duration_milliseconds",
		Help:      "Batch latency in milliseconds.",
		Buckets:   defaultLatencyBuckets,
	}, []string{"property"})

	m.batchRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "batch_rows_total",
		Help:      "Rows submitted in batches.",
	}, []string{"property"})

	m.batchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "batch_total",
		Help:      "Batches by outcome; aborted batches carry the failing error code.",
	}, []string{"property", "status", "code"})

	m.cacheAccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "access_total",
		Help:      "Prediction cache lookups.",
	}, []string{"property", "result"})

	m.modelLoadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "models",
		Name:      "load_duration_milliseconds",
		Help:      "Model artifact load latency in milliseconds.",
		Buckets:   defaultLatencyBuckets,
	}, []string{"model_name", "version", "status"})

	collectors := []prometheus.Collector{
		m.stageDuration,
		m.stageTotal,
		m.batchDuration,
		m.batchRowsTotal,
		m.batchTotal,
		m.cacheAccessTotal,
		m.modelLoadDuration,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *prometheusPredictionMetrics) RecordModelLoad(_ context.Context, modelName, version string, durationMs float64, success bool) {
	m.modelLoadDuration.WithLabelValues(modelName, version, statusLabel(success)).Observe(durationMs)
}

func (m *prometheusPredictionMetrics) RecordInference(_ context.Context, p *InferenceMetricParams) {
	if p == nil {
		return
	}
	m.stageDuration.WithLabelValues(p.Property, p.Stage).Observe(p.DurationMs)
	m.stageTotal.WithLabelValues(p.Property, p.Stage, statusLabel(p.Success), p.ErrorCode).Inc()
}

func (m *prometheusPredictionMetrics) RecordBatchProcessing(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	status := "success"
	if p.Aborted {
		status = "aborted"
	}
	m.batchDuration.WithLabelValues(p.Property).Observe(p.TotalDurationMs)
	m.batchRowsTotal.WithLabelValues(p.Property).Add(float64(p.TotalRows))
	m.batchTotal.WithLabelValues(p.Property, status, p.ErrorCode).Inc()
}

func (m *prometheusPredictionMetrics) RecordCacheAccess(_ context.Context, hit bool, property string) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheAccessTotal.WithLabelValues(property, result).Inc()
}

// ---------------------------------------------------------------------------
// Noop implementation
// ---------------------------------------------------------------------------

type noopPredictionMetrics struct{}

// NewNoopPredictionMetrics returns a no-op metrics implementation.
func NewNoopPredictionMetrics() PredictionMetrics {
	return noopPredictionMetrics{}
}

func (noopPredictionMetrics) RecordModelLoad(context.Context, string, string, float64, bool) {}
func (noopPredictionMetrics) RecordInference(context.Context, *InferenceMetricParams)        {}
func (noopPredictionMetrics) RecordBatchProcessing(context.Context, *BatchMetricParams)      {}
func (noopPredictionMetrics) RecordCacheAccess(context.Context, bool, string)                {}

// ---------------------------------------------------------------------------
// In-memory implementation (for testing)
// ---------------------------------------------------------------------------

// ModelLoadRecord is one RecordModelLoad call captured by InMemoryMetrics.
type ModelLoadRecord struct {
	ModelName  string
	Version    string
	DurationMs float64
	Success    bool
	Timestamp  time.Time
}

// InMemoryMetrics keeps every recorded event for assertions in tests.
type InMemoryMetrics struct {
	mu sync.Mutex

	inferences  []InferenceMetricParams
	batches     []BatchMetricParams
	modelLoads  []ModelLoadRecord
	cacheHits   int64
	cacheMisses int64
}

// NewInMemoryPredictionMetrics returns an empty in-memory recorder.
func NewInMemoryPredictionMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

func (m *InMemoryMetrics) RecordModelLoad(_ context.Context, modelName, version string, durationMs float64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelLoads = append(m.modelLoads, ModelLoadRecord{
		ModelName:  modelName,
		Version:    version,
		DurationMs: durationMs,
		Success:    success,
		Timestamp:  time.Now(),
	})
}

func (m *InMemoryMetrics) RecordInference(_ context.Context, p *InferenceMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inferences = append(m.inferences, *p)
}

func (m *InMemoryMetrics) RecordBatchProcessing(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, *p)
}

func (m *InMemoryMetrics) RecordCacheAccess(_ context.Context, hit bool, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

// Inferences returns a copy of the recorded stage events.
func (m *InMemoryMetrics) Inferences() []InferenceMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]InferenceMetricParams(nil), m.inferences...)
}

// Batches returns a copy of the recorded batches.
func (m *InMemoryMetrics) Batches() []BatchMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BatchMetricParams(nil), m.batches...)
}

// ModelLoads returns a copy of the recorded model loads.
func (m *InMemoryMetrics) ModelLoads() []ModelLoadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelLoadRecord(nil), m.modelLoads...)
}

// CacheCounts returns the recorded cache hits and misses.
func (m *InMemoryMetrics) CacheCounts() (hits, misses int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheHits, m.cacheMisses
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// compile-time interface checks
var (
	_ PredictionMetrics = (*prometheusPredictionMetrics)(nil)
	_ PredictionMetrics = noopPredictionMetrics{}
	_ PredictionMetrics = (*InMemoryMetrics)(nil)
)
