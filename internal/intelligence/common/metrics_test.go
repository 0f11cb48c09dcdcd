package common

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheusPredictionMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPrometheusPredictionMetrics(registry, "fluoric")
	require.NoError(t, err)

	_, err = NewPrometheusPredictionMetrics(registry, "fluoric")
	assert.Error(t, err)
}

func TestPrometheus_RecordsPipelineEvents(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPrometheusPredictionMetrics(registry, "fluoric")
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordInference(ctx, &InferenceMetricParams{Property: "logP", Stage: StageExtract, DurationMs: 12, Success: true})
	m.RecordInference(ctx, &InferenceMetricParams{Property: "logP", Stage: StageValidate, Success: false, ErrorCode: "MOL_001"})
	m.RecordInference(ctx, nil)
	m.RecordBatchProcessing(ctx, &BatchMetricParams{Property: "logP", TotalRows: 3, Aborted: true, ErrorCode: "MOL_001"})
	m.RecordCacheAccess(ctx, true, "logP")
	m.RecordModelLoad(ctx, "fluoric-logp", "1.0.0", 3, true)

	pm := m.(*prometheusPredictionMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.stageTotal.WithLabelValues("logP", StageValidate, "failure", "MOL_001")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.batchRowsTotal.WithLabelValues("logP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.batchTotal.WithLabelValues("logP", "aborted", "MOL_001")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.cacheAccessTotal.WithLabelValues("logP", "hit")))

	expected := `
# HELP fluoric_cache_access_total Prediction cache lookups.
# TYPE fluoric_cache_access_total counter
fluoric_cache_access_total{property="logP",result="hit"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "fluoric_cache_access_total"))
}

func TestInMemory_Records(t *testing.T) {
	m := NewInMemoryPredictionMetrics()
	ctx := context.Background()

	m.RecordInference(ctx, &InferenceMetricParams{Property: "pKa", Stage: StagePredict, Success: true})
	m.RecordBatchProcessing(ctx, &BatchMetricParams{Property: "pKa", TotalRows: 1})
	m.RecordModelLoad(ctx, "fluoric-pka", "1.0.0", 2, false)
	m.RecordCacheAccess(ctx, true, "pKa")
	m.RecordCacheAccess(ctx, false, "pKa")

	require.Len(t, m.Inferences(), 1)
	assert.Equal(t, StagePredict, m.Inferences()[0].Stage)
	require.Len(t, m.Batches(), 1)
	require.Len(t, m.ModelLoads(), 1)
	assert.False(t, m.ModelLoads()[0].Success)
	hits, misses := m.CacheCounts()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestNoop_AllMethods_NoPanic(t *testing.T) {
	m := NewNoopPredictionMetrics()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordInference(ctx, &InferenceMetricParams{})
		m.RecordBatchProcessing(ctx, &BatchMetricParams{})
		m.RecordCacheAccess(ctx, true, "logP")
		m.RecordModelLoad(ctx, "model", "v1", 100, true)
	})
}

func TestParseProperty(t *testing.T) {
	for in, want := range map[string]Property{"logP": PropertyLogP, "LOGP": PropertyLogP, "pka": PropertyPKa} {
		got, err := ParseProperty(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
		assert.True(t, got.Valid())
	}

	_, err := ParseProperty("logD")
	assert.Error(t, err)
	assert.False(t, Property("logD").Valid())
	assert.Equal(t, []Property{PropertyLogP, PropertyPKa}, Properties())
}
