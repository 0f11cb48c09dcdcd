package prediction

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/internal/intelligence/descriptors"
	"github.com/turtacn/fluoric/internal/intelligence/regression"
	"github.com/turtacn/fluoric/pkg/errors"
)

const cf3Benzene = "FC(F)(F)c1ccccc1"

func smilesTable(values ...*string) *InputTable {
	t := &InputTable{Columns: []string{"SMILES"}}
	for _, v := range values {
		if v == nil {
			t.Rows = append(t.Rows, []sql.NullString{{}})
			continue
		}
		t.Rows = append(t.Rows, []sql.NullString{cell(*v)})
	}
	return t
}

// memCache is an in-memory Cache that can be told to fail.
type memCache struct {
	mu        sync.Mutex
	values    map[string]float64
	lookups   int
	stores    int
	lookupErr error
}

func newMemCache() *memCache { return &memCache{values: make(map[string]float64)} }

func (c *memCache) Lookup(_ context.Context, key string) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.lookupErr != nil {
		return 0, false, c.lookupErr
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *memCache) Store(_ context.Context, key string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	c.values[key] = value
	return nil
}

type failingModels struct{ err error }

func (f failingModels) Get(context.Context, common.Property) (*regression.Model, error) {
	return nil, f.err
}

type ServiceTestSuite struct {
	suite.Suite
	models  *regression.ModelContext
	metrics *common.InMemoryMetrics
	logs    *observer.ObservedLogs
	logger  logging.Logger
	ctx     context.Context
}

func (s *ServiceTestSuite) SetupSuite() {
	mc, err := regression.NewModelContext(regression.NewEmbeddedSource(), regression.DefaultSpecs(),
		descriptors.DefaultOptions(), nil, nil)
	s.Require().NoError(err)
	s.models = mc
	s.ctx = context.Background()
}

func (s *ServiceTestSuite) TearDownSuite() {
	s.NoError(s.models.Close())
}

func (s *ServiceTestSuite) SetupTest() {
	core, logs := observer.New(zapcore.DebugLevel)
	s.logs = logs
	s.logger = logging.NewLoggerFromCore(core)
	s.metrics = common.NewInMemoryPredictionMetrics()
}

func (s *ServiceTestSuite) newService(opts ...Option) *Service {
	opts = append([]Option{WithMetrics(s.metrics)}, opts...)
	svc, err := NewService(s.models, s.logger, opts...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceTestSuite) TestRun_CF3BenzeneBothProperties() {
	svc := s.newService()
	smiles := cf3Benzene

	logP := svc.Run(s.ctx, common.PropertyLogP, smilesTable(&smiles))
	s.Require().True(logP.OK(), "%v", logP.Err())
	s.Nil(logP.Failure)
	s.NotEmpty(logP.BatchID)
	s.Equal([]string{"SMILES", "logP"}, logP.Output.Columns)
	s.Require().Len(logP.Output.Rows, 1)
	s.Equal(cf3Benzene, logP.Output.Rows[0].SMILES)
	s.False(math.IsNaN(logP.Output.Rows[0].Value))
	s.Greater(logP.Output.Rows[0].Value, 2.0)
	s.Less(logP.Output.Rows[0].Value, 4.5)

	pKa := svc.Run(s.ctx, common.PropertyPKa, smilesTable(&smiles))
	s.Require().True(pKa.OK(), "%v", pKa.Err())
	s.Equal([]string{"SMILES", "pKa"}, pKa.Output.Columns)
	s.Require().Len(pKa.Output.Rows, 1)
	s.False(math.IsInf(pKa.Output.Rows[0].Value, 0))
}

func (s *ServiceTestSuite) TestRun_SulfonylCompounds() {
	svc := s.newService()
	in := []string{
		"FC(F)(F)S(=O)(=O)O",
		"CS(C)(=O)=O",
		"FC(F)(F)S(=O)(=O)N",
		"FC(F)(F)S(=O)(=O)OC",
		"CC1=CC=C(C=C1)C1=CC(=NN1C1=CC=C(C=C1)S(N)(=O)=O)C(F)(F)F",
	}
	cells := make([]*string, len(in))
	for i := range in {
		cells[i] = &in[i]
	}

	for _, property := range common.Properties() {
		res := svc.Run(s.ctx, property, smilesTable(cells...))
		s.Require().True(res.OK(), "%s: %v", property, res.Err())
		s.Require().Len(res.Output.Rows, len(in))
		for i, row := range res.Output.Rows {
			s.Equal(in[i], row.SMILES)
			s.False(math.IsNaN(row.Value) || math.IsInf(row.Value, 0), "%s %s", property, in[i])
		}
	}
}

func (s *ServiceTestSuite) TestRun_AceticAcidPKa() {
	smiles := "CC(=O)O"
	res := s.newService().Run(s.ctx, common.PropertyPKa, smilesTable(&smiles))
	s.Require().True(res.OK(), "%v", res.Err())
	s.InDelta(4.6, res.Output.Rows[0].Value, 1e-9)
}

func (s *ServiceTestSuite) TestRun_NullSMILES() {
	res := s.newService().Run(s.ctx, common.PropertyLogP, smilesTable(nil))

	s.False(res.OK())
	s.Nil(res.Output)
	s.Equal(0, res.Failure.Row)
	s.True(errors.IsMissingValue(res.Err()))
	var ae *errors.AppError
	s.Require().True(errors.As(res.Err(), &ae))
	s.Equal("SMILES cannot be NaN.", ae.Message)
	s.Equal(1, s.logs.FilterMessage("SMILES value cannot be NaN.").Len())
}

func (s *ServiceTestSuite) TestRun_InvalidSMILES() {
	bad := "not_a_smiles"
	res := s.newService().Run(s.ctx, common.PropertyLogP, smilesTable(&bad))

	s.False(res.OK())
	s.Nil(res.Output)
	s.Equal(bad, res.Failure.SMILES)
	s.True(errors.IsInvalidSMILES(res.Failure.Cause))
	s.True(errors.IsInvalidSMILES(res.Err()))
	s.Equal(errors.ErrCodeInvalidSMILES, res.Failure.Code())

	var ae *errors.AppError
	s.Require().True(errors.As(res.Err(), &ae))
	s.Equal("Inappropriate SMILES format: not_a_smiles", ae.Message)

	entries := s.logs.FilterLevelExact(zapcore.ErrorLevel).All()
	s.Require().NotEmpty(entries)
	s.Contains(entries[0].Message, "Error predicting logP for SMILES 'not_a_smiles'")
}

func (s *ServiceTestSuite) TestRun_MissingColumn() {
	table := &InputTable{Columns: []string{"smiles"}, Rows: [][]sql.NullString{{cell("C")}}}
	res := s.newService().Run(s.ctx, common.PropertyLogP, table)

	s.False(res.OK())
	s.Equal(BatchRow, res.Failure.Row)
	s.True(errors.IsSchemaError(res.Err()))
	s.Equal(1, s.logs.FilterMessage("SMILES column is not represented in the input table.").Len())
}

func (s *ServiceTestSuite) TestRun_WholeBatchAborts() {
	a, b, c := "CCO", "C1CC", "FC(F)F"
	res := s.newService().Run(s.ctx, common.PropertyLogP, smilesTable(&a, &b, &c))

	s.False(res.OK())
	s.Nil(res.Output)
	s.Equal(1, res.Failure.Row)
	s.Equal("C1CC", res.Failure.SMILES)

	batches := s.metrics.Batches()
	s.Require().Len(batches, 1)
	s.True(batches[0].Aborted)
	s.Equal(3, batches[0].TotalRows)
	s.Equal(errors.ErrCodeInvalidSMILES.String(), batches[0].ErrorCode)
}

func (s *ServiceTestSuite) TestRun_EmptyTable() {
	res := s.newService().Run(s.ctx, common.PropertyPKa, &InputTable{Columns: []string{"SMILES"}})
	s.True(res.OK())
	s.Equal([]string{"SMILES", "pKa"}, res.Output.Columns)
	s.Empty(res.Output.Rows)
}

func (s *ServiceTestSuite) TestRun_RowAlignedOutput() {
	in := []string{"CCO", "FC(F)(F)C(=O)O", "c1ccccc1F", "CC(F)(F)C"}
	ptrs := make([]*string, len(in))
	for i := range in {
		ptrs[i] = &in[i]
	}
	res := s.newService().Run(s.ctx, common.PropertyLogP, smilesTable(ptrs...))
	s.Require().True(res.OK(), "%v", res.Err())
	s.Require().Len(res.Output.Rows, len(in))
	for i, row := range res.Output.Rows {
		s.Equal(in[i], row.SMILES)
	}
}

func (s *ServiceTestSuite) TestRun_DeterministicAcrossRunsAndConcurrency() {
	in := []string{"CCO", cf3Benzene, "FC(F)(F)C(=O)O", "OC(=O)c1ccc(F)cc1", "CCCC(F)(F)F", "c1ccncc1"}
	ptrs := make([]*string, len(in))
	for i := range in {
		ptrs[i] = &in[i]
	}

	seq := s.newService().Run(s.ctx, common.PropertyPKa, smilesTable(ptrs...))
	again := s.newService().Run(s.ctx, common.PropertyPKa, smilesTable(ptrs...))
	par := s.newService(WithConcurrency(4)).Run(s.ctx, common.PropertyPKa, smilesTable(ptrs...))

	s.Require().True(seq.OK(), "%v", seq.Err())
	s.Require().True(par.OK(), "%v", par.Err())
	s.Equal(seq.Output, again.Output)
	s.Equal(seq.Output, par.Output)
	s.NotEqual(seq.BatchID, again.BatchID)
}

func (s *ServiceTestSuite) TestRun_ConcurrentReportsLowestFailure() {
	in := []string{"CCO", "CCC", "C1CC", "CCN", "CCCl", "CCBr", "not_a_smiles", "CC"}
	ptrs := make([]*string, len(in))
	for i := range in {
		ptrs[i] = &in[i]
	}
	svc := s.newService(WithConcurrency(4))
	s.Equal(4, svc.Concurrency())

	for i := 0; i < 5; i++ {
		res := svc.Run(s.ctx, common.PropertyLogP, smilesTable(ptrs...))
		s.Require().False(res.OK())
		s.Nil(res.Output)
		s.Equal(2, res.Failure.Row)
		s.Equal("C1CC", res.Failure.SMILES)
	}
}

func (s *ServiceTestSuite) TestRun_Cache() {
	cache := newMemCache()
	svc := s.newService(WithCache(cache))
	smiles := cf3Benzene

	first := svc.Run(s.ctx, common.PropertyLogP, smilesTable(&smiles))
	s.Require().True(first.OK())
	s.Equal(1, cache.stores)
	hits, misses := s.metrics.CacheCounts()
	s.Equal(int64(0), hits)
	s.Equal(int64(1), misses)

	model, err := s.models.Get(s.ctx, common.PropertyLogP)
	s.Require().NoError(err)
	key := CacheKey(model, smiles)
	s.Equal(first.Output.Rows[0].Value, cache.values[key])

	cache.values[key] = 42.5
	second := svc.Run(s.ctx, common.PropertyLogP, smilesTable(&smiles))
	s.Require().True(second.OK())
	s.Equal(42.5, second.Output.Rows[0].Value)
	hits, _ = s.metrics.CacheCounts()
	s.Equal(int64(1), hits)
}

func (s *ServiceTestSuite) TestRun_CacheKeyedByFeatureOptions() {
	cache := newMemCache()
	smiles := cf3Benzene

	fine := s.newService(WithCache(cache)).Run(s.ctx, common.PropertyLogP, smilesTable(&smiles))
	s.Require().True(fine.OK())

	opts := descriptors.DefaultOptions()
	opts.GridSpacing = 1.0
	coarseModels, err := regression.NewModelContext(regression.NewEmbeddedSource(), regression.DefaultSpecs(), opts, nil, nil)
	s.Require().NoError(err)
	defer coarseModels.Close()
	coarseSvc, err := NewService(coarseModels, s.logger, WithCache(cache))
	s.Require().NoError(err)

	coarse := coarseSvc.Run(s.ctx, common.PropertyLogP, smilesTable(&smiles))
	s.Require().True(coarse.OK())
	s.Equal(2, cache.stores, "a different grid spacing must not reuse the cached value")
	s.Len(cache.values, 2)

	uncached, err := NewService(coarseModels, s.logger)
	s.Require().NoError(err)
	direct := uncached.Run(s.ctx, common.PropertyLogP, smilesTable(&smiles))
	s.Require().True(direct.OK())
	s.Equal(direct.Output.Rows[0].Value, coarse.Output.Rows[0].Value)
}

func (s *ServiceTestSuite) TestRun_CacheFailureFallsBackToCompute() {
	cache := newMemCache()
	cache.lookupErr = fmt.Errorf("connection refused")
	smiles := "CCO"

	res := s.newService(WithCache(cache)).Run(s.ctx, common.PropertyLogP, smilesTable(&smiles))
	s.Require().True(res.OK(), "%v", res.Err())
	s.Equal(1, s.logs.FilterMessage("prediction cache lookup failed").Len())
}

func (s *ServiceTestSuite) TestRun_InvalidProperty() {
	smiles := "CCO"
	res := s.newService().Run(s.ctx, common.Property("logD"), smilesTable(&smiles))
	s.False(res.OK())
	s.Equal(BatchRow, res.Failure.Row)
	s.True(errors.IsCode(res.Err(), errors.ErrCodeBadRequest))
}

func (s *ServiceTestSuite) TestRun_CancelledContext() {
	_, err := s.models.Get(s.ctx, common.PropertyLogP)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	smiles := "CCO"
	res := s.newService().Run(ctx, common.PropertyLogP, smilesTable(&smiles))
	s.False(res.OK())
	s.ErrorIs(res.Err(), context.Canceled)
	s.False(errors.IsInvalidSMILES(res.Err()))
}

func (s *ServiceTestSuite) TestRun_StageMetrics() {
	smiles := "CCO"
	res := s.newService().Run(s.ctx, common.PropertyLogP, smilesTable(&smiles))
	s.Require().True(res.OK())

	var stages []string
	for _, p := range s.metrics.Inferences() {
		stages = append(stages, p.Stage)
		s.True(p.Success)
		s.Equal("1.0.0", p.ModelVersion)
	}
	s.Equal([]string{common.StageValidate, common.StageExtract, common.StagePredict}, stages)
}

func (s *ServiceTestSuite) TestFeatures() {
	svc := s.newService()
	vec, model, err := svc.Features(s.ctx, common.PropertyPKa, "FC(F)(F)C(=O)O")
	s.Require().NoError(err)
	s.True(vec.SameSchema(model.Features()))
	v, ok := vec.Get(descriptors.CF3GroupCount)
	s.True(ok)
	s.Equal(1.0, v)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func TestRun_ModelUnavailable(t *testing.T) {
	svc, err := NewService(failingModels{err: errors.New(errors.ErrCodeModelNotLoaded, "model context is closed")}, nil)
	require.NoError(t, err)

	smiles := "CCO"
	res := svc.Run(context.Background(), common.PropertyLogP, smilesTable(&smiles))
	assert.False(t, res.OK())
	assert.Equal(t, BatchRow, res.Failure.Row)
	assert.True(t, errors.IsCode(res.Err(), errors.ErrCodeModelNotLoaded))
}

func TestCacheKey_DependsOnOptions(t *testing.T) {
	ctx := context.Background()
	keyFor := func(opts descriptors.Options) string {
		mc, err := regression.NewModelContext(regression.NewEmbeddedSource(), regression.DefaultSpecs(), opts, nil, nil)
		require.NoError(t, err)
		defer mc.Close()
		m, err := mc.Get(ctx, common.PropertyLogP)
		require.NoError(t, err)
		return CacheKey(m, cf3Benzene)
	}

	base := keyFor(descriptors.DefaultOptions())
	assert.Equal(t, base, keyFor(descriptors.DefaultOptions()))

	grid := descriptors.DefaultOptions()
	grid.GridSpacing = 1.0
	attempts := descriptors.DefaultOptions()
	attempts.Embed.MaxAttempts++
	iterations := descriptors.DefaultOptions()
	iterations.Embed.MaxIterations++
	for name, opts := range map[string]descriptors.Options{"grid": grid, "attempts": attempts, "iterations": iterations} {
		assert.NotEqual(t, base, keyFor(opts), name)
	}
}

func TestNewService_RequiresModels(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}
