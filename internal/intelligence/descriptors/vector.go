package descriptors

import (
	"fmt"
	"math"
	"strings"
)

// FeatureVector is an ordered, fixed-length sequence of named descriptor
// values. Names and Values always have the same length.
type FeatureVector struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Len returns the number of features.
func (v FeatureVector) Len() int { return len(v.Names) }

// Get returns the value of the named feature.
func (v FeatureVector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// SameSchema reports whether names matches the vector's names in count and
// order.
func (v FeatureVector) SameSchema(names []string) bool {
	if len(names) != len(v.Names) || len(v.Values) != len(v.Names) {
		return false
	}
	for i := range names {
		if names[i] != v.Names[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two vectors have the same schema and bit-identical
// values.
func (v FeatureVector) Equal(o FeatureVector) bool {
	if !v.SameSchema(o.Names) || len(v.Values) != len(o.Values) {
		return false
	}
	for i := range v.Values {
		if math.Float64bits(v.Values[i]) != math.Float64bits(o.Values[i]) {
			return false
		}
	}
	return true
}

// Map returns the vector as name → value.
func (v FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.Names))
	for i, n := range v.Names {
		out[n] = v.Values[i]
	}
	return out
}

func (v FeatureVector) String() string {
	parts := make([]string, len(v.Names))
	for i, n := range v.Names {
		parts[i] = fmt.Sprintf("%s=%.4g", n, v.Values[i])
	}
	return "[" + strings.Join(parts, " ") + "]"
}
