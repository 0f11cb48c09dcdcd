// Package common holds the types and telemetry shared by the descriptor
// and regression layers.
package common

import (
	"strings"

	"github.com/turtacn/fluoric/pkg/errors"
)

// Property is a predicted physicochemical property. Its string value is the
// output column name.
type Property string

const (
	PropertyLogP Property = "logP"
	PropertyPKa  Property = "pKa"
)

// Properties lists every supported property in a stable order.
func Properties() []Property {
	return []Property{PropertyLogP, PropertyPKa}
}

func (p Property) String() string { return string(p) }

// Valid reports whether p is a supported property.
func (p Property) Valid() bool {
	return p == PropertyLogP || p == PropertyPKa
}

// ParseProperty accepts a property name in any case ("logp", "PKA").
func ParseProperty(s string) (Property, error) {
	for _, p := range Properties() {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", errors.New(errors.ErrCodeBadRequest, "unsupported property").
		WithDetail(s + " (want logP or pKa)")
}
