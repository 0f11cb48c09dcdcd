// Package descriptors turns SMILES strings into the fixed-order numeric
// feature vectors consumed by the regression models. The feature schema of
// a model artifact selects which catalog descriptors are computed and in
// which order.
package descriptors

import (
	"github.com/turtacn/fluoric/internal/domain/molecule"
)

// Descriptor names. The order of Catalog is the default feature order.
const (
	MolecularWeight         = "molecular_weight"
	MolecularVolume         = "molecular_volume"
	HeavyAtomCount          = "heavy_atom_count"
	CarbonCount             = "carbon_count"
	FluorineCount           = "fluorine_count"
	HalogenCount            = "halogen_count"
	CF3GroupCount           = "cf3_group_count"
	CF2GroupCount           = "cf2_group_count"
	AromaticAtomCount       = "aromatic_atom_count"
	RingCount               = "ring_count"
	RotatableBondCount      = "rotatable_bond_count"
	HBondDonorCount         = "hbond_donor_count"
	HBondAcceptorCount      = "hbond_acceptor_count"
	FormalCharge            = "formal_charge"
	FluorineFraction        = "fluorine_fraction"
	DihedralCount           = "dihedral_count"
	DihedralMeanAbs         = "dihedral_mean_abs"
	DihedralMaxAbs          = "dihedral_max_abs"
	FluorineDihedralMeanAbs = "fluorine_dihedral_mean_abs"
)

// input is what a descriptor is computed from. conf is nil for extractors
// whose schema has no geometric descriptor.
type input struct {
	mol     *molecule.Molecule
	conf    *molecule.Conformer
	spacing float64
	torsion *torsionSummary
}

// Descriptor is one entry of the catalog.
type Descriptor struct {
	Name        string
	Description string
	// Geometric descriptors need a 3D conformer.
	Geometric bool
	compute   func(in *input) float64
}

var catalog = []Descriptor{
	{Name: MolecularWeight, Description: "average molecular weight, g/mol",
		compute: func(in *input) float64 { return in.mol.MolecularWeight() }},
	{Name: MolecularVolume, Description: "van der Waals volume of the conformer, Å³", Geometric: true,
		compute: func(in *input) float64 { return vdwVolume(in.conf, in.spacing) }},
	{Name: HeavyAtomCount, Description: "number of non-hydrogen atoms",
		compute: func(in *input) float64 { return float64(in.mol.HeavyAtomCount()) }},
	{Name: CarbonCount, Description: "number of carbon atoms",
		compute: func(in *input) float64 { return float64(in.mol.CountElement("C")) }},
	{Name: FluorineCount, Description: "number of fluorine atoms",
		compute: func(in *input) float64 { return float64(in.mol.CountElement("F")) }},
	{Name: HalogenCount, Description: "number of F, Cl, Br and I atoms",
		compute: func(in *input) float64 { return float64(halogens(in.mol)) }},
	{Name: CF3GroupCount, Description: "carbons bearing exactly three fluorines",
		compute: func(in *input) float64 { return float64(fluorinatedCarbons(in.mol, 3)) }},
	{Name: CF2GroupCount, Description: "carbons bearing exactly two fluorines",
		compute: func(in *input) float64 { return float64(fluorinatedCarbons(in.mol, 2)) }},
	{Name: AromaticAtomCount, Description: "atoms in aromatic rings",
		compute: func(in *input) float64 { return float64(len(in.mol.AromaticAtoms())) }},
	{Name: RingCount, Description: "number of independent rings",
		compute: func(in *input) float64 { return float64(in.mol.RingCount()) }},
	{Name: RotatableBondCount, Description: "non-ring single bonds between non-terminal heavy atoms",
		compute: func(in *input) float64 { return float64(rotatableBonds(in.mol)) }},
	{Name: HBondDonorCount, Description: "N and O atoms carrying hydrogen",
		compute: func(in *input) float64 { return float64(donors(in.mol)) }},
	{Name: HBondAcceptorCount, Description: "neutral or anionic N and O atoms",
		compute: func(in *input) float64 { return float64(acceptors(in.mol)) }},
	{Name: FormalCharge, Description: "net formal charge",
		compute: func(in *input) float64 { return float64(in.mol.FormalCharge()) }},
	{Name: FluorineFraction, Description: "fluorine atoms per heavy atom",
		compute: func(in *input) float64 {
			heavy := in.mol.HeavyAtomCount()
			if heavy == 0 {
				return 0
			}
			return float64(in.mol.CountElement("F")) / float64(heavy)
		}},
	{Name: DihedralCount, Description: "number of rotatable-bond torsions", Geometric: true,
		compute: func(in *input) float64 { return float64(in.torsion.count) }},
	{Name: DihedralMeanAbs, Description: "mean absolute rotatable-bond torsion, degrees", Geometric: true,
		compute: func(in *input) float64 { return in.torsion.meanAbs }},
	{Name: DihedralMaxAbs, Description: "largest absolute rotatable-bond torsion, degrees", Geometric: true,
		compute: func(in *input) float64 { return in.torsion.maxAbs }},
	{Name: FluorineDihedralMeanAbs, Description: "mean absolute F-C-X-Y torsion across rotatable bonds, degrees", Geometric: true,
		compute: func(in *input) float64 { return in.torsion.fluorineMeanAbs }},
}

var catalogIndex = func() map[string]int {
	m := make(map[string]int, len(catalog))
	for i, d := range catalog {
		m[d.Name] = i
	}
	return m
}()

// Catalog returns a copy of every supported descriptor in default order.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// DefaultSchema returns the names of every catalog descriptor in order.
func DefaultSchema() []string {
	out := make([]string, len(catalog))
	for i, d := range catalog {
		out[i] = d.Name
	}
	return out
}

// Lookup returns the catalog descriptor with the given name.
func Lookup(name string) (Descriptor, bool) {
	i, ok := catalogIndex[name]
	if !ok {
		return Descriptor{}, false
	}
	return catalog[i], true
}

// ---------------------------------------------------------------------------
// Topological helpers
// ---------------------------------------------------------------------------

func halogens(m *molecule.Molecule) int {
	n := 0
	for i := 0; i < m.NumAtoms(); i++ {
		if m.Atom(i).Element.Halogen {
			n++
		}
	}
	return n
}

func fluorinatedCarbons(m *molecule.Molecule, fluorines int) int {
	n := 0
	for i := 0; i < m.NumAtoms(); i++ {
		if m.Atom(i).Symbol() != "C" {
			continue
		}
		f := 0
		for _, nb := range m.Neighbors(i) {
			if m.Atom(nb).Symbol() == "F" {
				f++
			}
		}
		if f == fluorines {
			n++
		}
	}
	return n
}

func rotatableBonds(m *molecule.Molecule) int {
	n := 0
	for bi := 0; bi < m.NumBonds(); bi++ {
		if m.IsRotatable(bi) {
			n++
		}
	}
	return n
}

func donors(m *molecule.Molecule) int {
	n := 0
	for i := 0; i < m.NumAtoms(); i++ {
		a := m.Atom(i)
		if (a.Symbol() == "N" || a.Symbol() == "O") && a.Hydrogens > 0 {
			n++
		}
	}
	return n
}

func acceptors(m *molecule.Molecule) int {
	n := 0
	for i := 0; i < m.NumAtoms(); i++ {
		a := m.Atom(i)
		if (a.Symbol() == "N" || a.Symbol() == "O") && a.Charge <= 0 {
			n++
		}
	}
	return n
}
