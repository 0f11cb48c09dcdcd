package descriptors

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/fluoric/internal/domain/molecule"
)

// vdwVolume integrates the union of van der Waals spheres on a regular grid
// with the given spacing (Å). Each sphere marks the cell centres it covers,
// so the cost grows with atom count rather than box volume.
func vdwVolume(conf *molecule.Conformer, spacing float64) float64 {
	n := conf.NumAtoms()
	if n == 0 {
		return 0
	}
	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for i := 0; i < n; i++ {
		p, r := conf.Position(i), conf.Element(i).VdWRadius
		lo = r3.Vec{X: math.Min(lo.X, p.X-r), Y: math.Min(lo.Y, p.Y-r), Z: math.Min(lo.Z, p.Z-r)}
		hi = r3.Vec{X: math.Max(hi.X, p.X+r), Y: math.Max(hi.Y, p.Y+r), Z: math.Max(hi.Z, p.Z+r)}
	}

	nx := int(math.Ceil((hi.X-lo.X)/spacing)) + 1
	ny := int(math.Ceil((hi.Y-lo.Y)/spacing)) + 1
	nz := int(math.Ceil((hi.Z-lo.Z)/spacing)) + 1
	grid := make([]bool, nx*ny*nz)
	filled := 0

	for i := 0; i < n; i++ {
		p, r := conf.Position(i), conf.Element(i).VdWRadius
		r2 := r * r
		x0, x1 := cellRange(p.X-r, p.X+r, lo.X, spacing, nx)
		y0, y1 := cellRange(p.Y-r, p.Y+r, lo.Y, spacing, ny)
		z0, z1 := cellRange(p.Z-r, p.Z+r, lo.Z, spacing, nz)
		for ix := x0; ix <= x1; ix++ {
			dx := lo.X + (float64(ix)+0.5)*spacing - p.X
			for iy := y0; iy <= y1; iy++ {
				dy := lo.Y + (float64(iy)+0.5)*spacing - p.Y
				base := (ix*ny + iy) * nz
				for iz := z0; iz <= z1; iz++ {
					dz := lo.Z + (float64(iz)+0.5)*spacing - p.Z
					if dx*dx+dy*dy+dz*dz > r2 || grid[base+iz] {
						continue
					}
					grid[base+iz] = true
					filled++
				}
			}
		}
	}
	return float64(filled) * spacing * spacing * spacing
}

func cellRange(from, to, origin, spacing float64, n int) (int, int) {
	a := int(math.Floor((from - origin) / spacing))
	b := int(math.Ceil((to - origin) / spacing))
	if a < 0 {
		a = 0
	}
	if b > n-1 {
		b = n - 1
	}
	return a, b
}

// torsionSummary aggregates the torsions around rotatable bonds.
type torsionSummary struct {
	count           int
	meanAbs         float64
	maxAbs          float64
	fluorineMeanAbs float64
}

// summarizeTorsions measures, for every rotatable bond b-c, the torsion
// a-b-c-d where a and d are the lowest-index heavy neighbors of b and c.
// Torsions are also measured with a fluorine as the terminal atom whenever
// b or c carries one.
func summarizeTorsions(mol *molecule.Molecule, conf *molecule.Conformer) *torsionSummary {
	s := &torsionSummary{}
	var sum, fsum float64
	fcount := 0
	for bi := 0; bi < mol.NumBonds(); bi++ {
		if !mol.IsRotatable(bi) {
			continue
		}
		bond := mol.Bond(bi)
		b, c := bond.Begin, bond.End
		a, okA := firstNeighbor(mol, b, c, "")
		d, okD := firstNeighbor(mol, c, b, "")
		if !okA || !okD {
			continue
		}
		phi := math.Abs(conf.Dihedral(a, b, c, d))
		s.count++
		sum += phi
		if phi > s.maxAbs {
			s.maxAbs = phi
		}

		if f, ok := firstNeighbor(mol, b, c, "F"); ok {
			fsum += math.Abs(conf.Dihedral(f, b, c, d))
			fcount++
		}
		if f, ok := firstNeighbor(mol, c, b, "F"); ok {
			fsum += math.Abs(conf.Dihedral(a, b, c, f))
			fcount++
		}
	}
	if s.count > 0 {
		s.meanAbs = sum / float64(s.count)
	}
	if fcount > 0 {
		s.fluorineMeanAbs = fsum / float64(fcount)
	}
	return s
}

// firstNeighbor returns the lowest-index heavy neighbor of atom other than
// exclude, optionally restricted to one element.
func firstNeighbor(mol *molecule.Molecule, atom, exclude int, symbol string) (int, bool) {
	for _, nb := range mol.Neighbors(atom) {
		if nb == exclude {
			continue
		}
		sym := mol.Atom(nb).Symbol()
		if sym == "H" {
			continue
		}
		if symbol != "" && sym != symbol {
			continue
		}
		return nb, true
	}
	return 0, false
}
