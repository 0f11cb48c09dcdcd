package molecule

import (
	"fmt"
	"sort"

	"github.com/turtacn/fluoric/pkg/errors"
)

// needsPiBond reports whether aromatic atom i must take one double bond in a
// Kekulé structure of its ring system. Pyrrole-type nitrogens, furan oxygens,
// ring carbanions and atoms already carrying a double bond contribute a lone
// pair or nothing and stay single-bonded.
func (m *Molecule) needsPiBond(i int) bool {
	a := m.atoms[i]
	for _, bi := range m.adj[i] {
		if m.bonds[bi].Order == BondDouble {
			return false
		}
	}
	neighbors := len(m.adj[i]) + a.Hydrogens
	switch a.Element.Symbol {
	case "C":
		return a.Charge == 0
	case "N", "P", "As":
		switch a.Charge {
		case 0:
			return neighbors == 2
		case 1:
			return neighbors == 3
		default:
			return false
		}
	case "O", "S", "Se", "Te":
		return a.Charge == 1 && neighbors == 2
	default:
		return false
	}
}

// checkKekule verifies that the aromatic atoms needing a double bond can be
// paired along aromatic bonds. Rings such as c1cccc1 or c1ccnc1 have no
// Kekulé structure and are rejected.
func checkKekule(m *Molecule) error {
	need := make(map[int]bool)
	for i, a := range m.atoms {
		if a.Aromatic && m.needsPiBond(i) {
			need[i] = true
		}
	}
	if len(need) == 0 {
		return nil
	}

	partners := make(map[int][]int, len(need))
	for i := range need {
		for _, bi := range m.adj[i] {
			b := m.bonds[bi]
			if o := b.Other(i); b.Order == BondAromatic && need[o] {
				partners[i] = append(partners[i], o)
			}
		}
	}

	seen := make(map[int]bool, len(need))
	matched := make(map[int]bool, len(need))
	for i := range m.atoms {
		if !need[i] || seen[i] {
			continue
		}
		system := []int{i}
		seen[i] = true
		for k := 0; k < len(system); k++ {
			for _, o := range partners[system[k]] {
				if !seen[o] {
					seen[o] = true
					system = append(system, o)
				}
			}
		}
		if len(system)%2 == 1 || !pairAtoms(system, partners, matched) {
			return errors.InvalidSMILES(m.smiles, fmt.Sprintf("cannot kekulize aromatic system at atom %d", i))
		}
	}
	return nil
}

// pairAtoms searches for a perfect matching of system along partners.
func pairAtoms(system []int, partners map[int][]int, matched map[int]bool) bool {
	order := append([]int(nil), system...)
	// Fewest partners first.
	sort.Slice(order, func(x, y int) bool {
		px, py := len(partners[order[x]]), len(partners[order[y]])
		if px != py {
			return px < py
		}
		return order[x] < order[y]
	})

	var pair func(k int) bool
	pair = func(k int) bool {
		for k < len(order) && matched[order[k]] {
			k++
		}
		if k == len(order) {
			return true
		}
		i := order[k]
		matched[i] = true
		for _, o := range partners[i] {
			if matched[o] {
				continue
			}
			matched[o] = true
			if pair(k + 1) {
				return true
			}
			matched[o] = false
		}
		matched[i] = false
		return false
	}
	return pair(0)
}
