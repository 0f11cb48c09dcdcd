// Package molecule parses SMILES strings into immutable molecular graphs and
// embeds them in three dimensions. A *Molecule only exists for input that is
// both syntactically and chemically valid; every construction failure is an
// InvalidSMILES error and never a partially built graph.
package molecule

import (
	"fmt"
	"sort"
	"strings"
)

// BondOrder is the multiplicity of a bond.
type BondOrder int

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
	BondQuadruple
	BondAromatic
)

// Valence returns the bond's contribution to an atom's valence. Aromatic
// bonds count as 1 here; the extra pi electron is added per atom.
func (o BondOrder) Valence() int {
	switch o {
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	case BondQuadruple:
		return 4
	default:
		return 1
	}
}

// Multiplicity returns the effective bond order used for geometry, 1.5 for
// aromatic bonds.
func (o BondOrder) Multiplicity() float64 {
	if o == BondAromatic {
		return 1.5
	}
	return float64(o.Valence())
}

func (o BondOrder) String() string {
	switch o {
	case BondSingle:
		return "single"
	case BondDouble:
		return "double"
	case BondTriple:
		return "triple"
	case BondQuadruple:
		return "quadruple"
	case BondAromatic:
		return "aromatic"
	default:
		return fmt.Sprintf("BondOrder(%d)", int(o))
	}
}

// Hybridization is the geometric hybridization inferred from bond orders.
type Hybridization int

const (
	SP3 Hybridization = iota
	SP2
	SP
)

// Atom is one heavy atom (or explicit bracket hydrogen) of the graph.
type Atom struct {
	Element  *Element
	Aromatic bool
	Charge   int
	Isotope  int
	// Hydrogens is the number of attached hydrogens, implicit for organic
	// subset atoms and explicit for bracket atoms.
	Hydrogens int
	Bracket   bool
}

// Symbol returns the element symbol.
func (a Atom) Symbol() string { return a.Element.Symbol }

// Mass returns the atomic mass including attached hydrogens.
func (a Atom) Mass() float64 {
	return a.Element.Mass + float64(a.Hydrogens)*elements["H"].Mass
}

// Bond connects two atoms by index.
type Bond struct {
	Begin, End int
	Order      BondOrder
	InRing     bool
}

// Other returns the atom at the opposite end from i.
func (b Bond) Other(i int) int {
	if b.Begin == i {
		return b.End
	}
	return b.Begin
}

// Molecule is an immutable molecular graph.
type Molecule struct {
	smiles     string
	atoms      []Atom
	bonds      []Bond
	adj        [][]int // bond indices per atom
	rings      int
	components int
}

// SMILES returns the string the molecule was parsed from, unchanged.
func (m *Molecule) SMILES() string { return m.smiles }

// NumAtoms returns the number of graph atoms (hydrogens excluded unless
// written as bracket atoms).
func (m *Molecule) NumAtoms() int { return len(m.atoms) }

// NumBonds returns the number of graph bonds.
func (m *Molecule) NumBonds() int { return len(m.bonds) }

// Atom returns a copy of atom i.
func (m *Molecule) Atom(i int) Atom { return m.atoms[i] }

// Bond returns a copy of bond i.
func (m *Molecule) Bond(i int) Bond { return m.bonds[i] }

// Neighbors returns the atom indices bonded to atom i in ascending order.
func (m *Molecule) Neighbors(i int) []int {
	out := make([]int, 0, len(m.adj[i]))
	for _, bi := range m.adj[i] {
		out = append(out, m.bonds[bi].Other(i))
	}
	sort.Ints(out)
	return out
}

// Degree returns the number of graph neighbors of atom i.
func (m *Molecule) Degree(i int) int { return len(m.adj[i]) }

// HeavyDegree returns the number of non-hydrogen neighbors of atom i.
func (m *Molecule) HeavyDegree(i int) int {
	n := 0
	for _, bi := range m.adj[i] {
		if m.atoms[m.bonds[bi].Other(i)].Element.Number > 1 {
			n++
		}
	}
	return n
}

// BondBetween returns the bond joining i and j.
func (m *Molecule) BondBetween(i, j int) (Bond, bool) {
	for _, bi := range m.adj[i] {
		if m.bonds[bi].Other(i) == j {
			return m.bonds[bi], true
		}
	}
	return Bond{}, false
}

// AtomInRing reports whether atom i has at least one ring bond.
func (m *Molecule) AtomInRing(i int) bool {
	for _, bi := range m.adj[i] {
		if m.bonds[bi].InRing {
			return true
		}
	}
	return false
}

// RingCount returns the cyclomatic number (number of independent rings).
func (m *Molecule) RingCount() int { return m.rings }

// Components returns the number of disconnected fragments.
func (m *Molecule) Components() int { return m.components }

// TotalHydrogens counts implicit, explicit-count and bracket hydrogens.
func (m *Molecule) TotalHydrogens() int {
	n := 0
	for _, a := range m.atoms {
		n += a.Hydrogens
		if a.Element.Number == 1 {
			n++
		}
	}
	return n
}

// CountElement returns the number of graph atoms with the given symbol.
func (m *Molecule) CountElement(symbol string) int {
	if symbol == "H" {
		return m.TotalHydrogens()
	}
	n := 0
	for _, a := range m.atoms {
		if a.Element.Symbol == symbol {
			n++
		}
	}
	return n
}

// HeavyAtomCount returns the number of non-hydrogen atoms.
func (m *Molecule) HeavyAtomCount() int {
	n := 0
	for _, a := range m.atoms {
		if a.Element.Number > 1 {
			n++
		}
	}
	return n
}

// MolecularWeight returns the average molecular weight in g/mol.
func (m *Molecule) MolecularWeight() float64 {
	w := 0.0
	for _, a := range m.atoms {
		w += a.Mass()
	}
	return w
}

// FormalCharge returns the net formal charge.
func (m *Molecule) FormalCharge() int {
	q := 0
	for _, a := range m.atoms {
		q += a.Charge
	}
	return q
}

// Formula returns the Hill-order molecular formula, e.g. C7H5F3.
func (m *Molecule) Formula() string {
	counts := map[string]int{}
	for _, a := range m.atoms {
		if a.Element.Number > 1 {
			counts[a.Element.Symbol]++
		}
	}
	if h := m.TotalHydrogens(); h > 0 {
		counts["H"] = h
	}

	var order []string
	if _, ok := counts["C"]; ok {
		order = append(order, "C")
		if _, ok := counts["H"]; ok {
			order = append(order, "H")
		}
	}
	rest := make([]string, 0, len(counts))
	for sym := range counts {
		if len(order) > 0 && (sym == "C" || sym == "H") {
			continue
		}
		rest = append(rest, sym)
	}
	sort.Strings(rest)
	order = append(order, rest...)

	var sb strings.Builder
	for _, sym := range order {
		sb.WriteString(sym)
		if counts[sym] > 1 {
			fmt.Fprintf(&sb, "%d", counts[sym])
		}
	}
	return sb.String()
}

// Hybridization infers the hybridization of atom i from its bonds and its
// neighbor count, hydrogens included. Only two-coordinate atoms with a
// triple bond or two double bonds are linear (nitriles, allenes, CO2);
// sulfonyl and phosphoryl centers with four neighbors stay tetrahedral.
func (m *Molecule) Hybridization(i int) Hybridization {
	doubles, triple := 0, false
	for _, bi := range m.adj[i] {
		switch m.bonds[bi].Order {
		case BondTriple, BondQuadruple:
			triple = true
		case BondDouble:
			doubles++
		}
	}
	neighbors := len(m.adj[i]) + m.atoms[i].Hydrogens
	switch {
	case neighbors <= 2 && (triple || doubles >= 2):
		return SP
	case neighbors >= 4:
		return SP3
	case triple || doubles > 0 || m.atoms[i].Aromatic:
		return SP2
	default:
		return SP3
	}
}

// IsRotatable reports whether bond bi is a rotatable bond: a non-ring single
// bond between two atoms that each have another heavy neighbor, excluding
// bonds to sp carbons whose torsion is undefined.
func (m *Molecule) IsRotatable(bi int) bool {
	b := m.bonds[bi]
	if b.Order != BondSingle || b.InRing {
		return false
	}
	if m.atoms[b.Begin].Element.Number == 1 || m.atoms[b.End].Element.Number == 1 {
		return false
	}
	if m.HeavyDegree(b.Begin) < 2 || m.HeavyDegree(b.End) < 2 {
		return false
	}
	return m.Hybridization(b.Begin) != SP && m.Hybridization(b.End) != SP
}

// finalize computes ring membership and ring/component counts. It runs once
// from the parser before the molecule is handed out.
func (m *Molecule) finalize() {
	n := len(m.atoms)
	m.adj = make([][]int, n)
	for bi, b := range m.bonds {
		m.adj[b.Begin] = append(m.adj[b.Begin], bi)
		m.adj[b.End] = append(m.adj[b.End], bi)
	}

	// A bond is a ring bond iff it is not a bridge.
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	timer := 0
	type frame struct{ atom, parentBond, next int }
	for root := 0; root < n; root++ {
		if disc[root] >= 0 {
			continue
		}
		m.components++
		disc[root], low[root] = timer, timer
		timer++
		stack := []frame{{atom: root, parentBond: -1}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(m.adj[top.atom]) {
				bi := m.adj[top.atom][top.next]
				top.next++
				if bi == top.parentBond {
					continue
				}
				nb := m.bonds[bi].Other(top.atom)
				if disc[nb] < 0 {
					disc[nb], low[nb] = timer, timer
					timer++
					stack = append(stack, frame{atom: nb, parentBond: bi})
				} else if disc[nb] < low[top.atom] {
					low[top.atom] = disc[nb]
				}
				continue
			}
			done := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if done.parentBond >= 0 {
				parent := m.bonds[done.parentBond].Other(done.atom)
				if low[done.atom] < low[parent] {
					low[parent] = low[done.atom]
				}
				if low[done.atom] <= disc[parent] {
					m.bonds[done.parentBond].InRing = true
				}
			}
		}
	}
	m.rings = len(m.bonds) - n + m.components
}
