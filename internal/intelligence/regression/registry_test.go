package regression

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/internal/intelligence/descriptors"
	"github.com/turtacn/fluoric/pkg/errors"
)

// countingSource wraps a Source and counts fetches.
type countingSource struct {
	Source
	fetches atomic.Int64
}

func (s *countingSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	s.fetches.Add(1)
	return s.Source.Fetch(ctx, name)
}

type ModelContextSuite struct {
	suite.Suite
	source  *countingSource
	metrics *common.InMemoryMetrics
	models  *ModelContext
}

func (s *ModelContextSuite) SetupTest() {
	s.source = &countingSource{Source: NewEmbeddedSource()}
	s.metrics = common.NewInMemoryPredictionMetrics()
	mc, err := NewModelContext(s.source, DefaultSpecs(), descriptors.DefaultOptions(), s.metrics, logging.NewNopLogger())
	s.Require().NoError(err)
	s.models = mc
}

func (s *ModelContextSuite) TearDownTest() {
	s.NoError(s.models.Close())
}

func (s *ModelContextSuite) TestGet_LoadsOnce() {
	ctx := context.Background()
	first, err := s.models.Get(ctx, common.PropertyLogP)
	s.Require().NoError(err)
	second, err := s.models.Get(ctx, common.PropertyLogP)
	s.Require().NoError(err)

	s.Same(first, second)
	s.Equal(int64(1), s.source.fetches.Load())
	s.Equal(int64(1), s.models.LoadCount())
	s.Equal("fluoric-logp", first.Name())
	s.Equal(KindGLM, first.Kind())

	loads := s.metrics.ModelLoads()
	s.Require().Len(loads, 1)
	s.True(loads[0].Success)
	s.Equal("1.0.0", loads[0].Version)
}

func (s *ModelContextSuite) TestGet_ConcurrentCallersShareOneLoad() {
	ctx := context.Background()
	var wg sync.WaitGroup
	got := make([]*Model, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := s.models.Get(ctx, common.PropertyPKa)
			s.NoError(err)
			got[i] = m
		}(i)
	}
	wg.Wait()

	for _, m := range got {
		s.Same(got[0], m)
	}
	s.Equal(int64(1), s.models.LoadCount())
}

func (s *ModelContextSuite) TestLoadAllAndLoaded() {
	s.Require().NoError(s.models.LoadAll(context.Background()))

	loaded := s.models.Loaded()
	s.Require().Len(loaded, 2)
	s.Equal(common.PropertyLogP, loaded[0].Property())
	s.Equal(common.PropertyPKa, loaded[1].Property())
	s.Equal([]common.Property{common.PropertyLogP, common.PropertyPKa}, s.models.Properties())
}

func (s *ModelContextSuite) TestClose() {
	_, err := s.models.Get(context.Background(), common.PropertyLogP)
	s.Require().NoError(err)
	s.Require().NoError(s.models.Close())

	s.Empty(s.models.Loaded())
	_, err = s.models.Get(context.Background(), common.PropertyLogP)
	s.True(errors.IsCode(err, errors.ErrCodeModelNotLoaded))
}

func TestModelContextSuite(t *testing.T) {
	suite.Run(t, new(ModelContextSuite))
}

func TestModelContext_ChecksumMismatch(t *testing.T) {
	specs := []ModelSpec{{Property: common.PropertyLogP, Artifact: "logp.json", Checksum: "00"}}
	metrics := common.NewInMemoryPredictionMetrics()
	mc, err := NewModelContext(NewEmbeddedSource(), specs, descriptors.DefaultOptions(), metrics, nil)
	require.NoError(t, err)

	_, err = mc.Get(context.Background(), common.PropertyLogP)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeChecksumMismatch))
	require.Len(t, metrics.ModelLoads(), 1)
	assert.False(t, metrics.ModelLoads()[0].Success)
}

func TestModelContext_ChecksumMatch(t *testing.T) {
	data, err := NewEmbeddedSource().Fetch(context.Background(), "pka.json")
	require.NoError(t, err)

	specs := []ModelSpec{{Property: common.PropertyPKa, Artifact: "pka.json", Checksum: Checksum(data)}}
	mc, err := NewModelContext(NewEmbeddedSource(), specs, descriptors.DefaultOptions(), nil, nil)
	require.NoError(t, err)

	m, err := mc.Get(context.Background(), common.PropertyPKa)
	require.NoError(t, err)
	assert.Equal(t, Checksum(data), m.Checksum())
}

func TestModelContext_PropertyMismatch(t *testing.T) {
	specs := []ModelSpec{{Property: common.PropertyLogP, Artifact: "pka.json"}}
	mc, err := NewModelContext(NewEmbeddedSource(), specs, descriptors.DefaultOptions(), nil, nil)
	require.NoError(t, err)

	_, err = mc.Get(context.Background(), common.PropertyLogP)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelArtifactInvalid))
}

func TestModelContext_UnconfiguredProperty(t *testing.T) {
	specs := []ModelSpec{{Property: common.PropertyLogP, Artifact: "logp.json"}}
	mc, err := NewModelContext(NewEmbeddedSource(), specs, descriptors.DefaultOptions(), nil, nil)
	require.NoError(t, err)

	_, err = mc.Get(context.Background(), common.PropertyPKa)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotFound))
}

func TestModelContext_FailedLoadIsRetried(t *testing.T) {
	dir := t.TempDir()
	specs := []ModelSpec{{Property: common.PropertyLogP, Artifact: "logp.json"}}
	mc, err := NewModelContext(NewDirSource(dir), specs, descriptors.DefaultOptions(), nil, nil)
	require.NoError(t, err)

	_, err = mc.Get(context.Background(), common.PropertyLogP)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotFound))

	data, err := NewEmbeddedSource().Fetch(context.Background(), "logp.json")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logp.json"), data, 0o644))

	m, err := mc.Get(context.Background(), common.PropertyLogP)
	require.NoError(t, err)
	assert.Equal(t, common.PropertyLogP, m.Property())
}

func TestNewModelContext_Invalid(t *testing.T) {
	_, err := NewModelContext(nil, DefaultSpecs(), descriptors.DefaultOptions(), nil, nil)
	assert.Error(t, err)

	_, err = NewModelContext(NewEmbeddedSource(), []ModelSpec{{Property: "logD", Artifact: "x.json"}}, descriptors.DefaultOptions(), nil, nil)
	assert.Error(t, err)

	_, err = NewModelContext(NewEmbeddedSource(), []ModelSpec{{Property: common.PropertyLogP}}, descriptors.DefaultOptions(), nil, nil)
	assert.Error(t, err)
}

func TestDirSource_RejectsEscapes(t *testing.T) {
	src := NewDirSource(t.TempDir())
	for _, name := range []string{"../etc/passwd", "a/../../b", ""} {
		_, err := src.Fetch(context.Background(), name)
		assert.Error(t, err, name)
	}
	assert.Contains(t, src.Describe(), "file:")
}

func TestEmbeddedSource_Missing(t *testing.T) {
	_, err := NewEmbeddedSource().Fetch(context.Background(), "logd.json")
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotFound))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewEmbeddedSource().Fetch(ctx, "logp.json")
	assert.ErrorIs(t, err, context.Canceled)
}
