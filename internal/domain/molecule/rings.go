package molecule

import "sort"

// maxRingSize bounds ring enumeration; aromaticity is only perceived for
// five- and six-membered rings.
const maxRingSize = 8

// SmallRings returns every simple cycle of at most eight atoms as atom
// index lists, each starting at its lowest index. Order is deterministic.
func (m *Molecule) SmallRings() [][]int {
	var rings [][]int
	path := make([]int, 0, maxRingSize)
	onPath := make([]bool, len(m.atoms))

	var walk func(start, cur int)
	walk = func(start, cur int) {
		for _, bi := range m.adj[cur] {
			b := m.bonds[bi]
			if !b.InRing {
				continue
			}
			nx := b.Other(cur)
			if nx == start && len(path) >= 3 && path[1] < path[len(path)-1] {
				ring := make([]int, len(path))
				copy(ring, path)
				rings = append(rings, ring)
				continue
			}
			if nx <= start || onPath[nx] || len(path) >= maxRingSize {
				continue
			}
			onPath[nx] = true
			path = append(path, nx)
			walk(start, nx)
			path = path[:len(path)-1]
			onPath[nx] = false
		}
	}

	for s := range m.atoms {
		if !m.AtomInRing(s) {
			continue
		}
		path = append(path[:0], s)
		onPath[s] = true
		walk(s, s)
		onPath[s] = false
	}

	sort.SliceStable(rings, func(i, j int) bool {
		if len(rings[i]) != len(rings[j]) {
			return len(rings[i]) < len(rings[j])
		}
		for k := range rings[i] {
			if rings[i][k] != rings[j][k] {
				return rings[i][k] < rings[j][k]
			}
		}
		return false
	})
	return rings
}

// AromaticRings returns the five- and six-membered rings that are aromatic
// either by notation (all atoms written lowercase) or by a Kekulé pattern:
// six atoms each with one in-ring double bond, or five atoms of which four
// carry one in-ring double bond and the fifth is N, O or S.
func (m *Molecule) AromaticRings() [][]int {
	var out [][]int
	for _, ring := range m.SmallRings() {
		if len(ring) != 5 && len(ring) != 6 {
			continue
		}
		if m.isAromaticRing(ring) {
			out = append(out, ring)
		}
	}
	return out
}

func (m *Molecule) isAromaticRing(ring []int) bool {
	flagged := true
	for _, a := range ring {
		if !m.atoms[a].Aromatic {
			flagged = false
			break
		}
	}
	if flagged {
		return true
	}

	inRing := make(map[int]bool, len(ring))
	for _, a := range ring {
		inRing[a] = true
	}
	withDouble, donors := 0, 0
	for _, a := range ring {
		doubles := 0
		for _, bi := range m.adj[a] {
			b := m.bonds[bi]
			if b.Order == BondDouble && inRing[b.Other(a)] {
				doubles++
			}
		}
		switch {
		case doubles == 1:
			withDouble++
		case doubles == 0 && len(ring) == 5:
			switch m.atoms[a].Element.Symbol {
			case "N", "O", "S":
				donors++
			}
		}
	}
	if len(ring) == 6 {
		return withDouble == 6
	}
	return withDouble == 4 && donors == 1
}

// AromaticAtoms returns the set of atoms in aromatic rings or written as
// aromatic.
func (m *Molecule) AromaticAtoms() map[int]bool {
	out := make(map[int]bool)
	for i, a := range m.atoms {
		if a.Aromatic {
			out[i] = true
		}
	}
	for _, ring := range m.AromaticRings() {
		for _, a := range ring {
			out[a] = true
		}
	}
	return out
}
