package regression

import (
	"context"
	"math"
	"time"

	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/internal/intelligence/descriptors"
	"github.com/turtacn/fluoric/pkg/errors"
)

// Model is a loaded, read-only regression model together with the
// extractor for its feature schema. It is safe for concurrent use.
type Model struct {
	artifact  *Artifact
	checksum  string
	loadedAt  time.Time
	extractor *descriptors.Extractor
	eval      func(x []float64) float64
}

// NewModel compiles a validated artifact. The extractor is built from the
// artifact's feature list so vectors always come out in trained order.
func NewModel(a *Artifact, checksum string, opts descriptors.Options) (*Model, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	ext, err := descriptors.NewExtractor(a.Features, opts)
	if err != nil {
		return nil, err
	}
	m := &Model{
		artifact:  a,
		checksum:  checksum,
		loadedAt:  time.Now().UTC(),
		extractor: ext,
	}
	switch a.Kind {
	case KindGLM:
		m.eval = a.GLM.predict
	case KindGBM:
		m.eval = a.GBM.predict
	}
	return m, nil
}

func (m *Model) Name() string              { return m.artifact.Name }
func (m *Model) Version() string           { return m.artifact.Version }
func (m *Model) Property() common.Property { return m.artifact.Property }
func (m *Model) Kind() Kind                { return m.artifact.Kind }
func (m *Model) Checksum() string          { return m.checksum }
func (m *Model) LoadedAt() time.Time       { return m.loadedAt }

// Features returns a copy of the trained feature schema.
func (m *Model) Features() []string {
	return append([]string(nil), m.artifact.Features...)
}

// Extractor returns the extractor bound to this model's schema.
func (m *Model) Extractor() *descriptors.Extractor { return m.extractor }

// Extract computes the feature vector for smiles in this model's schema.
func (m *Model) Extract(ctx context.Context, smiles string) (descriptors.FeatureVector, error) {
	return m.extractor.Extract(ctx, smiles)
}

// Predict evaluates the model. A vector whose names, order or count differ
// from the trained schema is a FeatureSchemaMismatch error; a non-finite
// output is a PredictionFailed error. Neither is retried.
func (m *Model) Predict(vec descriptors.FeatureVector) (float64, error) {
	if !vec.SameSchema(m.artifact.Features) {
		return 0, errors.FeatureSchemaMismatchError(m.artifact.Name, m.artifact.Features, vec.Names)
	}
	y := m.eval(vec.Values)
	if !finite(y) {
		return 0, errors.Newf(errors.ErrCodePredictionFailed, "model %s produced a non-finite value", m.artifact.Name).
			WithDetail(vec.String())
	}
	return y, nil
}

// Info is the public description of a loaded model.
type Info struct {
	Name        string             `json:"name"`
	Property    common.Property    `json:"property"`
	Version     string             `json:"version"`
	Kind        Kind               `json:"kind"`
	Description string             `json:"description,omitempty"`
	TrainedAt   string             `json:"trained_at,omitempty"`
	Features    []string           `json:"features"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Checksum    string             `json:"checksum"`
	LoadedAt    time.Time          `json:"loaded_at"`
}

// Info returns the model's metadata.
func (m *Model) Info() Info {
	metrics := make(map[string]float64, len(m.artifact.Metrics))
	for k, v := range m.artifact.Metrics {
		metrics[k] = v
	}
	return Info{
		Name:        m.artifact.Name,
		Property:    m.artifact.Property,
		Version:     m.artifact.Version,
		Kind:        m.artifact.Kind,
		Description: m.artifact.Description,
		TrainedAt:   m.artifact.TrainedAt,
		Features:    m.Features(),
		Metrics:     metrics,
		Checksum:    m.checksum,
		LoadedAt:    m.loadedAt,
	}
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

func (p *GLMParams) predict(x []float64) float64 {
	y := p.Intercept
	for i, c := range p.Coefficients {
		v := x[i]
		if len(p.Means) > 0 {
			v -= p.Means[i]
		}
		if len(p.Scales) > 0 {
			v /= p.Scales[i]
		}
		y += c * v
	}
	return y
}

func (p *GBMParams) predict(x []float64) float64 {
	sum := 0.0
	for i := range p.Trees {
		sum += p.Trees[i].predict(x)
	}
	return p.InitValue + p.LearningRate*sum
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		v := x[n.Feature]
		switch {
		case math.IsNaN(v):
			if n.NALeft {
				i = n.Left
			} else {
				i = n.Right
			}
		case v < n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}
