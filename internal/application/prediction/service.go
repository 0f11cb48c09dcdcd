package prediction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/internal/intelligence/descriptors"
	"github.com/turtacn/fluoric/internal/intelligence/regression"
	"github.com/turtacn/fluoric/pkg/errors"
)

// ModelProvider resolves the resident model for a property.
type ModelProvider interface {
	Get(ctx context.Context, property common.Property) (*regression.Model, error)
}

// Cache stores predicted values by key. A miss is (0, false, nil).
type Cache interface {
	Lookup(ctx context.Context, key string) (float64, bool, error)
	Store(ctx context.Context, key string, value float64) error
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the prediction cache.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m common.PredictionMetrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithConcurrency sets how many rows are processed at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Service is the row orchestrator. It is safe for concurrent use.
type Service struct {
	models      ModelProvider
	cache       Cache
	metrics     common.PredictionMetrics
	logger      logging.Logger
	concurrency int
	fills       singleflight.Group
}

// NewService creates a Service over models.
func NewService(models ModelProvider, log logging.Logger, opts ...Option) (*Service, error) {
	if models == nil {
		return nil, errors.New(errors.ErrCodeInternal, "model provider is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &Service{
		models:      models,
		metrics:     common.NewNoopPredictionMetrics(),
		logger:      log.Named("prediction"),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Concurrency returns the configured row parallelism.
func (s *Service) Concurrency() int { return s.concurrency }

// Run predicts property for every row of table. The first failing row
// aborts the batch and no partial output is returned. With concurrency
// above one the reported failure is still the lowest failing row index.
func (s *Service) Run(ctx context.Context, property common.Property, table *InputTable) *BatchResult {
	start := time.Now()
	res := &BatchResult{BatchID: uuid.NewString(), Property: property}
	log := s.logger.With(
		logging.String("batch_id", res.BatchID),
		logging.String("property", property.String()),
	)

	finish := func() *BatchResult {
		res.Duration = time.Since(start)
		p := &common.BatchMetricParams{
			Property:        property.String(),
			TotalRows:       table.NumRows(),
			Aborted:         !res.OK(),
			TotalDurationMs: float64(res.Duration.Milliseconds()),
			Concurrency:     s.concurrency,
		}
		if res.Failure != nil {
			p.ErrorCode = res.Failure.Code().String()
			log.Warn("batch aborted",
				logging.Int("row", res.Failure.Row),
				logging.String("code", p.ErrorCode),
				logging.Duration("duration", res.Duration))
		} else {
			log.Info("batch completed",
				logging.Int("rows", table.NumRows()),
				logging.Duration("duration", res.Duration))
		}
		s.metrics.RecordBatchProcessing(ctx, p)
		return res
	}

	if !property.Valid() {
		_, err := common.ParseProperty(property.String())
		res.Failure = batchFailure(err)
		return finish()
	}
	col, err := CheckSchema(table, log)
	if err != nil {
		res.Failure = batchFailure(err)
		return finish()
	}
	model, err := s.models.Get(ctx, property)
	if err != nil {
		log.Error("model unavailable", logging.Err(err))
		res.Failure = batchFailure(err)
		return finish()
	}

	out := newOutputTable(property, table.NumRows())
	if s.concurrency <= 1 || table.NumRows() <= 1 {
		for i := 0; i < table.NumRows(); i++ {
			row, failure := s.processRow(ctx, log, model, table, col, i)
			if failure != nil {
				res.Failure = failure
				return finish()
			}
			out.Rows[i] = row
		}
	} else if failure := s.runConcurrent(ctx, log, model, table, col, out); failure != nil {
		res.Failure = failure
		return finish()
	}

	res.Output = out
	return finish()
}

// runConcurrent fills out using up to s.concurrency goroutines. Rows above
// the lowest failure seen so far are skipped; rows below it always run so
// the lowest failing index is found.
func (s *Service) runConcurrent(ctx context.Context, log logging.Logger, model *regression.Model, table *InputTable, col int, out *OutputTable) *RowFailure {
	n := table.NumRows()
	failures := make([]*RowFailure, n)
	var lowest atomic.Int64
	lowest.Store(int64(n))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := 0; i < n; i++ {
		if int64(i) > lowest.Load() {
			break
		}
		g.Go(func() error {
			if int64(i) > lowest.Load() {
				return nil
			}
			row, failure := s.processRow(ctx, log, model, table, col, i)
			if failure == nil {
				out.Rows[i] = row
				return nil
			}
			failures[i] = failure
			for {
				cur := lowest.Load()
				if int64(i) >= cur || lowest.CompareAndSwap(cur, int64(i)) {
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failures {
		if f != nil {
			return f
		}
	}
	return nil
}

// processRow runs validate, extract and predict for one row.
func (s *Service) processRow(ctx context.Context, log logging.Logger, model *regression.Model, table *InputTable, col, i int) (OutputRow, *RowFailure) {
	stageStart := time.Now()
	rec, err := recordAt(table, col, i)
	s.recordStage(ctx, model, common.StageValidate, stageStart, err)
	if err != nil {
		log.Error("SMILES value cannot be NaN.", logging.Int("row", i))
		return OutputRow{}, rowFailure(i, "", err)
	}
	if err := ctx.Err(); err != nil {
		return OutputRow{}, cancelledFailure(i, rec.SMILES, err)
	}

	value, err := s.predict(ctx, model, rec.SMILES)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return OutputRow{}, cancelledFailure(i, rec.SMILES, ctxErr)
		}
		if errors.IsFeatureSchemaMismatch(err) {
			log.Error("feature schema contract violated",
				logging.Int("row", i),
				logging.String("model", model.Name()),
				logging.Err(err))
		} else {
			log.Error(fmt.Sprintf("Error predicting %s for SMILES '%s': %s", model.Property(), rec.SMILES, err),
				logging.Int("row", i))
		}
		return OutputRow{}, rowFailure(i, rec.SMILES, err)
	}
	return OutputRow{SMILES: rec.SMILES, Value: value}, nil
}

// predict consults the cache around compute. Cache failures are logged and
// never fail the row.
func (s *Service) predict(ctx context.Context, model *regression.Model, smiles string) (float64, error) {
	if s.cache == nil {
		return s.compute(ctx, model, smiles)
	}

	key := CacheKey(model, smiles)
	if v, ok, err := s.cache.Lookup(ctx, key); err != nil {
		s.logger.Warn("prediction cache lookup failed", logging.String("key", key), logging.Err(err))
	} else if ok {
		s.metrics.RecordCacheAccess(ctx, true, model.Property().String())
		return v, nil
	}
	s.metrics.RecordCacheAccess(ctx, false, model.Property().String())

	v, err, _ := s.fills.Do(key, func() (interface{}, error) {
		y, err := s.compute(ctx, model, smiles)
		if err != nil {
			return 0.0, err
		}
		if err := s.cache.Store(ctx, key, y); err != nil {
			s.logger.Warn("prediction cache store failed", logging.String("key", key), logging.Err(err))
		}
		return y, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (s *Service) compute(ctx context.Context, model *regression.Model, smiles string) (float64, error) {
	start := time.Now()
	vec, err := model.Extract(ctx, smiles)
	s.recordStage(ctx, model, common.StageExtract, start, err)
	if err != nil {
		return 0, err
	}

	start = time.Now()
	y, err := model.Predict(vec)
	s.recordStage(ctx, model, common.StagePredict, start, err)
	return y, err
}

func (s *Service) recordStage(ctx context.Context, model *regression.Model, stage string, start time.Time, err error) {
	p := &common.InferenceMetricParams{
		Property:     model.Property().String(),
		ModelVersion: model.Version(),
		Stage:        stage,
		DurationMs:   float64(time.Since(start).Microseconds()) / 1000,
		Success:      err == nil,
	}
	if err != nil {
		p.ErrorCode = errors.GetCode(err).String()
	}
	s.metrics.RecordInference(ctx, p)
}

// Features returns the feature vector the property's model would see for
// smiles, together with that model.
func (s *Service) Features(ctx context.Context, property common.Property, smiles string) (descriptors.FeatureVector, *regression.Model, error) {
	model, err := s.models.Get(ctx, property)
	if err != nil {
		return descriptors.FeatureVector{}, nil, err
	}
	vec, err := model.Extract(ctx, smiles)
	if err != nil {
		return descriptors.FeatureVector{}, model, err
	}
	return vec, model, nil
}

// CacheKey identifies a prediction by model artifact, feature options and
// input. Any change to the artifact bytes or to an extraction option yields a
// new key.
func CacheKey(model *regression.Model, smiles string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", model.Checksum(), model.Extractor().Options().Fingerprint())
	h.Write([]byte(smiles))
	return model.Property().String() + ":" + model.Name() + ":" + model.Version() + ":" +
		hex.EncodeToString(h.Sum(nil))
}
