package descriptors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/turtacn/fluoric/internal/domain/molecule"
	"github.com/turtacn/fluoric/pkg/errors"
)

// Options configures an Extractor.
type Options struct {
	Embed molecule.EmbedOptions
	// GridSpacing is the volume integration step in Å.
	GridSpacing float64
}

// DefaultOptions returns the extraction settings used when none are
// configured.
func DefaultOptions() Options {
	return Options{Embed: molecule.DefaultEmbedOptions(), GridSpacing: 0.25}
}

// Fingerprint digests every option that can change a feature value. Two
// option sets with equal fingerprints produce identical vectors.
func (o Options) Fingerprint() string {
	e := o.Embed
	raw := fmt.Sprintf("seed=%d;attempts=%d;iterations=%d;heavy=%d;grid=%s",
		e.Seed, e.MaxAttempts, e.MaxIterations, e.MaxHeavyAtoms,
		strconv.FormatFloat(o.GridSpacing, 'g', -1, 64))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

// Extractor computes one feature schema. It is immutable and safe for
// concurrent use.
type Extractor struct {
	schema    []string
	descs     []Descriptor
	geometric bool
	opts      Options
}

// NewExtractor builds an extractor for schema, normally the feature list of
// a model artifact. Names outside the catalog, duplicates and an empty
// schema are feature schema mismatches.
func NewExtractor(schema []string, opts Options) (*Extractor, error) {
	if len(schema) == 0 {
		return nil, errors.New(errors.ErrCodeFeatureSchemaMismatch, "feature schema is empty")
	}
	if opts.GridSpacing <= 0 {
		opts.GridSpacing = DefaultOptions().GridSpacing
	}
	e := &Extractor{opts: opts}
	seen := make(map[string]bool, len(schema))
	for _, name := range schema {
		d, ok := Lookup(name)
		if !ok {
			return nil, errors.New(errors.ErrCodeFeatureSchemaMismatch, "unknown descriptor in feature schema").
				WithDetail(name)
		}
		if seen[name] {
			return nil, errors.New(errors.ErrCodeFeatureSchemaMismatch, "duplicate descriptor in feature schema").
				WithDetail(name)
		}
		seen[name] = true
		e.descs = append(e.descs, d)
		e.geometric = e.geometric || d.Geometric
	}
	e.schema = append([]string(nil), schema...)
	return e, nil
}

// Schema returns a copy of the feature names in output order.
func (e *Extractor) Schema() []string {
	return append([]string(nil), e.schema...)
}

// Options returns the extraction settings.
func (e *Extractor) Options() Options { return e.opts }

// Extract parses smiles and computes the feature vector. Parse failures are
// InvalidSMILES errors and embedding failures ConformerGeneration errors.
func (e *Extractor) Extract(ctx context.Context, smiles string) (FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return FeatureVector{}, err
	}
	mol, err := molecule.Parse(smiles)
	if err != nil {
		return FeatureVector{}, err
	}
	return e.ExtractMolecule(mol)
}

// ExtractMolecule computes the feature vector of an already parsed molecule.
func (e *Extractor) ExtractMolecule(mol *molecule.Molecule) (FeatureVector, error) {
	in := &input{mol: mol, spacing: e.opts.GridSpacing}
	if e.geometric {
		conf, err := molecule.Embed(mol, e.opts.Embed)
		if err != nil {
			return FeatureVector{}, err
		}
		in.conf = conf
		in.torsion = summarizeTorsions(mol, conf)
	}

	vec := FeatureVector{
		Names:  append([]string(nil), e.schema...),
		Values: make([]float64, len(e.descs)),
	}
	for i, d := range e.descs {
		v := d.compute(in)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if d.Geometric {
				return FeatureVector{}, errors.ConformerGenerationError(mol.SMILES(),
					fmt.Sprintf("descriptor %s is not finite", d.Name))
			}
			return FeatureVector{}, errors.Newf(errors.ErrCodeInternal, "descriptor %s is not finite for %q", d.Name, mol.SMILES())
		}
		vec.Values[i] = v
	}
	return vec, nil
}
