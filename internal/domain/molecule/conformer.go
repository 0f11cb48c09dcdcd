package molecule

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/fluoric/pkg/errors"
)

// EmbedOptions controls conformer generation.
type EmbedOptions struct {
	// Seed makes the embedding reproducible. Attempt k uses a seed derived
	// from Seed and k.
	Seed int64
	// MaxAttempts bounds the number of restarts from fresh coordinates.
	MaxAttempts int
	// MaxIterations bounds the relaxation sweeps per attempt.
	MaxIterations int
	// MaxHeavyAtoms rejects molecules too large to embed.
	MaxHeavyAtoms int
}

// DefaultEmbedOptions returns the options used when none are configured.
func DefaultEmbedOptions() EmbedOptions {
	return EmbedOptions{Seed: 42, MaxAttempts: 5, MaxIterations: 600, MaxHeavyAtoms: 120}
}

const (
	bondTolerance     = 0.25 // Å
	angleTolerance    = 0.45 // Å on 1-3 distances
	contactTolerance  = 0.60 // Å below the non-bonded lower bound
	convergedMaxError = 0.01 // Å
)

type constraintKind int

const (
	kindBond constraintKind = iota
	kindAngle
	kindContact
)

type constraint struct {
	i, j   int
	target float64
	weight float64
	kind   constraintKind
}

// Conformer is one 3D geometry of a Molecule with hydrogens made explicit.
// Indices below Molecule.NumAtoms() refer to graph atoms; the hydrogens
// implied by Atom.Hydrogens follow in atom order.
type Conformer struct {
	mol       *Molecule
	elements  []*Element
	parent    []int
	positions []r3.Vec
	seed      int64
}

// Molecule returns the embedded molecule.
func (c *Conformer) Molecule() *Molecule { return c.mol }

// NumAtoms returns the number of embedded atoms including hydrogens.
func (c *Conformer) NumAtoms() int { return len(c.positions) }

// Position returns the coordinates of atom i in Å.
func (c *Conformer) Position(i int) r3.Vec { return c.positions[i] }

// Element returns the element of embedded atom i.
func (c *Conformer) Element(i int) *Element { return c.elements[i] }

// HydrogenParent returns the graph atom an added hydrogen is attached to,
// or -1 for graph atoms.
func (c *Conformer) HydrogenParent(i int) int { return c.parent[i] }

// Seed returns the seed of the successful attempt.
func (c *Conformer) Seed() int64 { return c.seed }

// Distance returns the distance between atoms i and j in Å.
func (c *Conformer) Distance(i, j int) float64 {
	return r3.Norm(r3.Sub(c.positions[j], c.positions[i]))
}

// Dihedral returns the signed torsion angle a-b-c-d in degrees, in
// (-180, 180].
func (c *Conformer) Dihedral(a, b, cc, d int) float64 {
	return dihedral(c.positions[a], c.positions[b], c.positions[cc], c.positions[d])
}

func dihedral(p0, p1, p2, p3 r3.Vec) float64 {
	b1 := r3.Sub(p1, p0)
	b2 := r3.Sub(p2, p1)
	b3 := r3.Sub(p3, p2)
	n1 := r3.Cross(b1, b2)
	n2 := r3.Cross(b2, b3)
	y := r3.Norm(b2) * r3.Dot(b1, n2)
	x := r3.Dot(n1, n2)
	return math.Atan2(y, x) * 180 / math.Pi
}

// Embed generates a 3D conformer for mol. The geometry comes from iterative
// projection onto distance constraints: bond lengths from covalent radii,
// 1-3 distances from hybridization (or small-ring) angles, and van der Waals
// lower bounds between the remaining pairs.
func Embed(mol *Molecule, opts EmbedOptions) (*Conformer, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultEmbedOptions().MaxIterations
	}
	if opts.MaxHeavyAtoms > 0 && mol.HeavyAtomCount() > opts.MaxHeavyAtoms {
		return nil, errors.ConformerGenerationError(mol.SMILES(),
			fmt.Sprintf("%d heavy atoms exceeds the embedding limit of %d", mol.HeavyAtomCount(), opts.MaxHeavyAtoms))
	}

	c := expandHydrogens(mol)
	bonded := c.bondList()
	constraints := c.buildConstraints(bonded)

	var lastReason string
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		seed := opts.Seed + int64(attempt)*7919
		rng := rand.New(rand.NewSource(seed))
		c.initialPositions(bonded, rng)
		c.relax(constraints, opts.MaxIterations, rng)

		reason := c.check(constraints)
		if reason == "" {
			c.seed = seed
			return c, nil
		}
		lastReason = reason
	}
	return nil, errors.ConformerGenerationError(mol.SMILES(),
		fmt.Sprintf("no plausible embedding after %d attempts: %s", opts.MaxAttempts, lastReason))
}

func expandHydrogens(mol *Molecule) *Conformer {
	n := mol.NumAtoms()
	c := &Conformer{mol: mol}
	for i := 0; i < n; i++ {
		c.elements = append(c.elements, mol.atoms[i].Element)
		c.parent = append(c.parent, -1)
	}
	for i := 0; i < n; i++ {
		for h := 0; h < mol.atoms[i].Hydrogens; h++ {
			c.elements = append(c.elements, elements["H"])
			c.parent = append(c.parent, i)
		}
	}
	c.positions = make([]r3.Vec, len(c.elements))
	return c
}

type embedBond struct {
	i, j  int
	order BondOrder
}

// bondList returns graph bonds followed by the added X-H bonds.
func (c *Conformer) bondList() []embedBond {
	out := make([]embedBond, 0, len(c.mol.bonds)+len(c.elements))
	for _, b := range c.mol.bonds {
		out = append(out, embedBond{b.Begin, b.End, b.Order})
	}
	for i, p := range c.parent {
		if p >= 0 {
			out = append(out, embedBond{p, i, BondSingle})
		}
	}
	return out
}

func bondLength(a, b *Element, order BondOrder) float64 {
	l := a.CovalentRad + b.CovalentRad
	switch order {
	case BondDouble:
		l *= 0.87
	case BondTriple, BondQuadruple:
		l *= 0.78
	case BondAromatic:
		l *= 0.93
	}
	return l
}

func (c *Conformer) hybridization(i int) Hybridization {
	if c.parent[i] >= 0 || c.elements[i].Number == 1 {
		return SP3
	}
	return c.mol.Hybridization(i)
}

func idealAngle(h Hybridization) float64 {
	switch h {
	case SP:
		return 180
	case SP2:
		return 120
	default:
		return 109.47
	}
}

func (c *Conformer) buildConstraints(bonded []embedBond) []constraint {
	n := len(c.positions)
	adj := make([][]int, n)
	length := make(map[[2]int]float64, len(bonded))
	pairKind := make(map[[2]int]constraintKind)

	var out []constraint
	for _, b := range bonded {
		d := bondLength(c.elements[b.i], c.elements[b.j], b.order)
		adj[b.i] = append(adj[b.i], b.j)
		adj[b.j] = append(adj[b.j], b.i)
		length[pairKey(b.i, b.j)] = d
		pairKind[pairKey(b.i, b.j)] = kindBond
		out = append(out, constraint{i: b.i, j: b.j, target: d, weight: 1, kind: kindBond})
	}

	for center := 0; center < n; center++ {
		nb := adj[center]
		// Hypervalent centers (SF5, PF6) get no angle targets; the contact
		// bounds below keep their ligands apart.
		if len(nb) > 4 {
			continue
		}
		for x := 0; x < len(nb); x++ {
			for y := x + 1; y < len(nb); y++ {
				a, b := nb[x], nb[y]
				key := pairKey(a, b)
				if _, done := pairKind[key]; done {
					continue
				}
				theta := idealAngle(c.hybridization(center))
				if k := c.smallRingSize(adj, center, a, b); k > 0 {
					theta = 180 * float64(k-2) / float64(k)
				}
				d1, d2 := length[pairKey(center, a)], length[pairKey(center, b)]
				rad := theta * math.Pi / 180
				d := math.Sqrt(d1*d1 + d2*d2 - 2*d1*d2*math.Cos(rad))
				pairKind[key] = kindAngle
				out = append(out, constraint{i: a, j: b, target: d, weight: 0.5, kind: kindAngle})
			}
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if _, done := pairKind[pairKey(i, j)]; done {
				continue
			}
			lb := 0.8 * (c.elements[i].VdWRadius + c.elements[j].VdWRadius)
			if c.parent[i] >= 0 || c.parent[j] >= 0 {
				lb = 0.65 * (c.elements[i].VdWRadius + c.elements[j].VdWRadius)
			}
			out = append(out, constraint{i: i, j: j, target: lb, weight: 0.5, kind: kindContact})
		}
	}
	return out
}

// smallRingSize returns the size of the smallest ring of at most five atoms
// containing a-center-b, or 0.
func (c *Conformer) smallRingSize(adj [][]int, center, a, b int) int {
	if c.parent[a] >= 0 || c.parent[b] >= 0 {
		return 0
	}
	// Breadth-first search from a to b avoiding center, depth <= 3.
	depth := map[int]int{a: 0}
	queue := []int{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depth[cur] >= 3 {
			continue
		}
		for _, nx := range adj[cur] {
			if nx == center {
				continue
			}
			if _, ok := depth[nx]; ok {
				continue
			}
			depth[nx] = depth[cur] + 1
			if nx == b {
				return depth[nx] + 2
			}
			queue = append(queue, nx)
		}
	}
	return 0
}

func pairKey(i, j int) [2]int {
	if i > j {
		return [2]int{j, i}
	}
	return [2]int{i, j}
}

func randomUnit(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1}
		if n := r3.Norm(v); n > 0.1 && n <= 1 {
			return r3.Scale(1/n, v)
		}
	}
}

// initialPositions grows each component outward from its first atom so that
// bonded atoms start near their target separation.
func (c *Conformer) initialPositions(bonded []embedBond, rng *rand.Rand) {
	n := len(c.positions)
	adj := make([][]embedBond, n)
	for _, b := range bonded {
		adj[b.i] = append(adj[b.i], b)
		adj[b.j] = append(adj[b.j], embedBond{b.j, b.i, b.order})
	}
	placed := make([]bool, n)
	offset := 0.0
	for root := 0; root < n; root++ {
		if placed[root] {
			continue
		}
		c.positions[root] = r3.Vec{X: offset}
		placed[root] = true
		maxX := offset
		queue := []int{root}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, b := range adj[cur] {
				if placed[b.j] {
					continue
				}
				d := bondLength(c.elements[cur], c.elements[b.j], b.order)
				c.positions[b.j] = r3.Add(c.positions[cur], r3.Scale(d, randomUnit(rng)))
				placed[b.j] = true
				if c.positions[b.j].X > maxX {
					maxX = c.positions[b.j].X
				}
				queue = append(queue, b.j)
			}
		}
		offset = maxX + 5
	}
}

// relax sweeps the constraints, moving each pair half way toward its target
// separation scaled by the constraint weight.
func (c *Conformer) relax(cs []constraint, iterations int, rng *rand.Rand) {
	for it := 0; it < iterations; it++ {
		worst := 0.0
		for _, k := range cs {
			delta := r3.Sub(c.positions[k.j], c.positions[k.i])
			d := r3.Norm(delta)
			if d < 1e-6 {
				delta = r3.Scale(1e-3, randomUnit(rng))
				d = r3.Norm(delta)
			}
			diff := d - k.target
			if k.kind == kindContact && diff >= 0 {
				continue
			}
			if ad := math.Abs(diff); ad > worst {
				worst = ad
			}
			corr := r3.Scale(0.5*k.weight*diff/d, delta)
			c.positions[k.i] = r3.Add(c.positions[k.i], corr)
			c.positions[k.j] = r3.Sub(c.positions[k.j], corr)
		}
		if worst < convergedMaxError {
			return
		}
	}
}

// check returns a non-empty reason when the geometry is not plausible.
func (c *Conformer) check(cs []constraint) string {
	for i, p := range c.positions {
		if math.IsNaN(p.X+p.Y+p.Z) || math.IsInf(p.X+p.Y+p.Z, 0) {
			return fmt.Sprintf("non-finite coordinates on atom %d", i)
		}
	}
	for _, k := range cs {
		d := c.Distance(k.i, k.j)
		switch k.kind {
		case kindBond:
			if math.Abs(d-k.target) > bondTolerance {
				return fmt.Sprintf("bond %d-%d length %.2f Å, expected %.2f Å", k.i, k.j, d, k.target)
			}
		case kindAngle:
			if math.Abs(d-k.target) > angleTolerance {
				return fmt.Sprintf("angle around %d-%d distorted (%.2f Å, expected %.2f Å)", k.i, k.j, d, k.target)
			}
		case kindContact:
			if k.target-d > contactTolerance {
				return fmt.Sprintf("atoms %d and %d overlap (%.2f Å)", k.i, k.j, d)
			}
		}
	}
	return ""
}
