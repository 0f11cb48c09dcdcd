// Package regression loads the pre-trained logP and pKa regression
// artifacts and evaluates them on descriptor feature vectors.
package regression

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/internal/intelligence/descriptors"
	"github.com/turtacn/fluoric/pkg/errors"
)

// Kind is the model family of an artifact.
type Kind string

const (
	// KindGLM is a Gaussian GLM: intercept plus a weighted sum of
	// (optionally standardized) features.
	KindGLM Kind = "glm"
	// KindGBM is a gradient boosted regression tree ensemble.
	KindGBM Kind = "gbm"
)

// Artifact is the serialized form of a trained model. Features is the
// trained feature schema: the exact names and order the model expects.
type Artifact struct {
	Name        string             `json:"name"`
	Property    common.Property    `json:"property"`
	Version     string             `json:"version"`
	Kind        Kind               `json:"kind"`
	Description string             `json:"description,omitempty"`
	TrainedAt   string             `json:"trained_at,omitempty"`
	Features    []string           `json:"features"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	GLM         *GLMParams         `json:"glm,omitempty"`
	GBM         *GBMParams         `json:"gbm,omitempty"`
}

// GLMParams are the coefficients of a linear model. Means and Scales are
// either empty or one per feature; feature i contributes
// Coefficients[i] * (x[i] - Means[i]) / Scales[i].
type GLMParams struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Means        []float64 `json:"means,omitempty"`
	Scales       []float64 `json:"scales,omitempty"`
}

// GBMParams hold a boosted tree ensemble. The prediction is
// InitValue + LearningRate * sum(tree outputs).
type GBMParams struct {
	InitValue    float64 `json:"init_value"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []Tree  `json:"trees"`
}

// Tree is a flattened binary tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split or a leaf. A split sends a row left when
// x[Feature] < Threshold, and missing (NaN) values go left when NALeft is
// set. Child indices always point forward in Nodes.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	NALeft    bool    `json:"na_left,omitempty"`
}

// DecodeArtifact parses and validates a JSON artifact. Unknown fields are
// rejected so a newer artifact format fails loudly.
func DecodeArtifact(data []byte) (*Artifact, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var a Artifact
	if err := dec.Decode(&a); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelArtifactInvalid, "cannot decode model artifact")
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks the artifact for internal consistency and checks that
// every feature is a known descriptor.
func (a *Artifact) Validate() error {
	if a.Name == "" || a.Version == "" {
		return invalidArtifact(a.Name, "name and version are required")
	}
	if !a.Property.Valid() {
		return invalidArtifact(a.Name, fmt.Sprintf("unsupported property %q", a.Property))
	}
	if len(a.Features) == 0 {
		return invalidArtifact(a.Name, "feature schema is empty")
	}
	seen := make(map[string]bool, len(a.Features))
	for _, f := range a.Features {
		if _, ok := descriptors.Lookup(f); !ok {
			return invalidArtifact(a.Name, fmt.Sprintf("unknown feature %q", f))
		}
		if seen[f] {
			return invalidArtifact(a.Name, fmt.Sprintf("duplicate feature %q", f))
		}
		seen[f] = true
	}

	switch a.Kind {
	case KindGLM:
		if a.GLM == nil || a.GBM != nil {
			return invalidArtifact(a.Name, "glm artifact must carry only glm parameters")
		}
		return a.GLM.validate(a.Name, len(a.Features))
	case KindGBM:
		if a.GBM == nil || a.GLM != nil {
			return invalidArtifact(a.Name, "gbm artifact must carry only gbm parameters")
		}
		return a.GBM.validate(a.Name, len(a.Features))
	default:
		return invalidArtifact(a.Name, fmt.Sprintf("unsupported kind %q", a.Kind))
	}
}

func (p *GLMParams) validate(name string, n int) error {
	if len(p.Coefficients) != n {
		return invalidArtifact(name, fmt.Sprintf("%d coefficients for %d features", len(p.Coefficients), n))
	}
	if len(p.Means) != 0 && len(p.Means) != n {
		return invalidArtifact(name, fmt.Sprintf("%d means for %d features", len(p.Means), n))
	}
	if len(p.Scales) != 0 && len(p.Scales) != n {
		return invalidArtifact(name, fmt.Sprintf("%d scales for %d features", len(p.Scales), n))
	}
	if !finite(p.Intercept) || !allFinite(p.Coefficients) || !allFinite(p.Means) || !allFinite(p.Scales) {
		return invalidArtifact(name, "glm parameters must be finite")
	}
	for i, s := range p.Scales {
		if s == 0 {
			return invalidArtifact(name, fmt.Sprintf("zero scale for feature %d", i))
		}
	}
	return nil
}

func (p *GBMParams) validate(name string, n int) error {
	if !finite(p.InitValue) {
		return invalidArtifact(name, "init_value must be finite")
	}
	if !finite(p.LearningRate) || p.LearningRate <= 0 {
		return invalidArtifact(name, "learning_rate must be positive")
	}
	if len(p.Trees) == 0 {
		return invalidArtifact(name, "gbm has no trees")
	}
	for ti, t := range p.Trees {
		if len(t.Nodes) == 0 {
			return invalidArtifact(name, fmt.Sprintf("tree %d is empty", ti))
		}
		for ni, node := range t.Nodes {
			if node.Leaf {
				if !finite(node.Value) {
					return invalidArtifact(name, fmt.Sprintf("tree %d node %d: leaf value must be finite", ti, ni))
				}
				continue
			}
			switch {
			case node.Feature < 0 || node.Feature >= n:
				return invalidArtifact(name, fmt.Sprintf("tree %d node %d: feature index %d out of range", ti, ni, node.Feature))
			case !finite(node.Threshold):
				return invalidArtifact(name, fmt.Sprintf("tree %d node %d: threshold must be finite", ti, ni))
			case node.Left <= ni || node.Left >= len(t.Nodes) || node.Right <= ni || node.Right >= len(t.Nodes):
				return invalidArtifact(name, fmt.Sprintf("tree %d node %d: children must point forward", ti, ni))
			}
		}
	}
	return nil
}

func invalidArtifact(name, reason string) error {
	if name == "" {
		name = "<unnamed>"
	}
	return errors.New(errors.ErrCodeModelArtifactInvalid, "invalid model artifact").
		WithDetail(name + ": " + reason)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if !finite(v) {
			return false
		}
	}
	return true
}
