package regression

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/internal/intelligence/descriptors"
	"github.com/turtacn/fluoric/pkg/errors"
)

// ModelSpec binds a property to an artifact in a Source.
type ModelSpec struct {
	Property common.Property
	Artifact string
	// Checksum is the expected hex SHA-256 of the artifact bytes; empty
	// disables verification.
	Checksum string
}

// DefaultSpecs returns the embedded logP and pKa artifacts.
func DefaultSpecs() []ModelSpec {
	return []ModelSpec{
		{Property: common.PropertyLogP, Artifact: "logp.json"},
		{Property: common.PropertyPKa, Artifact: "pka.json"},
	}
}

// ModelContext owns the process's loaded models. Each model is loaded on
// first use, at most once even under concurrent callers, and stays resident
// until Close.
type ModelContext struct {
	source   Source
	specs    map[common.Property]ModelSpec
	features descriptors.Options
	metrics  common.PredictionMetrics
	logger   logging.Logger

	group  singleflight.Group
	models sync.Map // common.Property -> *Model
	loads  atomic.Int64
	closed atomic.Bool
}

// NewModelContext creates an empty context. Nothing is loaded until Get or
// LoadAll.
func NewModelContext(source Source, specs []ModelSpec, features descriptors.Options, metrics common.PredictionMetrics, logger logging.Logger) (*ModelContext, error) {
	if source == nil {
		return nil, errors.New(errors.ErrCodeInternal, "model source cannot be nil")
	}
	if metrics == nil {
		metrics = common.NewNoopPredictionMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	byProperty := make(map[common.Property]ModelSpec, len(specs))
	for _, s := range specs {
		if !s.Property.Valid() {
			return nil, errors.New(errors.ErrCodeInternal, "unsupported property in model spec").WithDetail(string(s.Property))
		}
		if s.Artifact == "" {
			return nil, errors.New(errors.ErrCodeInternal, "model spec has no artifact").WithDetail(string(s.Property))
		}
		byProperty[s.Property] = s
	}
	return &ModelContext{
		source:   source,
		specs:    byProperty,
		features: features,
		metrics:  metrics,
		logger:   logger.Named("models"),
	}, nil
}

// Get returns the model for property, loading it on first use. Failed
// loads are not cached; the next Get tries again.
func (c *ModelContext) Get(ctx context.Context, property common.Property) (*Model, error) {
	if c.closed.Load() {
		return nil, errors.New(errors.ErrCodeModelNotLoaded, "model context is closed")
	}
	if v, ok := c.models.Load(property); ok {
		return v.(*Model), nil
	}
	spec, ok := c.specs[property]
	if !ok {
		return nil, errors.New(errors.ErrCodeModelNotFound, "no model configured for property").WithDetail(string(property))
	}

	v, err, _ := c.group.Do(string(property), func() (interface{}, error) {
		if v, ok := c.models.Load(property); ok {
			return v, nil
		}
		m, err := c.load(ctx, spec)
		if err != nil {
			return nil, err
		}
		c.models.Store(property, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// LoadAll loads every configured model. It is the readiness check of the
// server.
func (c *ModelContext) LoadAll(ctx context.Context) error {
	for _, p := range c.Properties() {
		if _, err := c.Get(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Properties lists the configured properties in stable order.
func (c *ModelContext) Properties() []common.Property {
	out := make([]common.Property, 0, len(c.specs))
	for p := range c.specs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Loaded returns the resident models ordered by property.
func (c *ModelContext) Loaded() []*Model {
	var out []*Model
	c.models.Range(func(_, v interface{}) bool {
		out = append(out, v.(*Model))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Property() < out[j].Property() })
	return out
}

// LoadCount returns the number of successful artifact loads so far.
func (c *ModelContext) LoadCount() int64 { return c.loads.Load() }

// Close releases every model. Get fails afterwards.
func (c *ModelContext) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.models.Range(func(k, _ interface{}) bool {
		c.models.Delete(k)
		return true
	})
	c.logger.Info("model context closed")
	return nil
}

func (c *ModelContext) load(ctx context.Context, spec ModelSpec) (*Model, error) {
	start := time.Now()
	m, err := c.fetchAndCompile(ctx, spec)
	elapsed := time.Since(start)
	ms := float64(elapsed.Microseconds()) / 1000

	if err != nil {
		c.metrics.RecordModelLoad(ctx, spec.Artifact, "", ms, false)
		c.logger.Error("model load failed",
			logging.String("property", spec.Property.String()),
			logging.String("artifact", spec.Artifact),
			logging.String("source", c.source.Describe()),
			logging.Err(err))
		return nil, err
	}

	c.loads.Add(1)
	c.metrics.RecordModelLoad(ctx, m.Name(), m.Version(), ms, true)
	c.logger.Info("model loaded",
		logging.String("property", spec.Property.String()),
		logging.String("model", m.Name()),
		logging.String("version", m.Version()),
		logging.String("kind", string(m.Kind())),
		logging.Int("features", len(m.Features())),
		logging.String("source", c.source.Describe()),
		logging.Duration("duration", elapsed))
	return m, nil
}

func (c *ModelContext) fetchAndCompile(ctx context.Context, spec ModelSpec) (*Model, error) {
	data, err := c.source.Fetch(ctx, spec.Artifact)
	if err != nil {
		return nil, err
	}
	sum := Checksum(data)
	if spec.Checksum != "" && !strings.EqualFold(spec.Checksum, sum) {
		return nil, errors.New(errors.ErrCodeChecksumMismatch, "model artifact checksum mismatch").
			WithDetail(spec.Artifact + ": want " + spec.Checksum + ", got " + sum)
	}
	a, err := DecodeArtifact(data)
	if err != nil {
		return nil, err
	}
	if a.Property != spec.Property {
		return nil, errors.New(errors.ErrCodeModelArtifactInvalid, "artifact predicts a different property").
			WithDetail(spec.Artifact + ": " + string(a.Property) + ", want " + string(spec.Property))
	}
	return NewModel(a, sum, c.features)
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
