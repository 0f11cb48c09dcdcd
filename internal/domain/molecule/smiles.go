package molecule

import (
	"fmt"

	"github.com/turtacn/fluoric/pkg/errors"
)

// Parse builds a Molecule from a SMILES string. The accepted grammar is the
// OpenSMILES organic subset plus bracket atoms, bonds, branches, ring
// closures (including %nn) and dot-separated components. Stereo markers are
// accepted and ignored.
func Parse(smiles string) (*Molecule, error) {
	if smiles == "" {
		return nil, errors.InvalidSMILES(smiles, "empty string")
	}
	p := &parser{
		src:   smiles,
		prev:  -1,
		rings: make(map[int]ringOpening),
		seen:  make(map[[2]int]bool),
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	mol := &Molecule{smiles: smiles, atoms: p.atoms, bonds: p.bonds}
	mol.finalize()
	if err := p.resolveAromaticBonds(mol); err != nil {
		return nil, err
	}
	if err := assignHydrogens(mol); err != nil {
		return nil, err
	}
	if err := checkKekule(mol); err != nil {
		return nil, err
	}
	return mol, nil
}

// MustParse is Parse for literals known to be valid; it panics otherwise.
func MustParse(smiles string) *Molecule {
	m, err := Parse(smiles)
	if err != nil {
		panic(err)
	}
	return m
}

type ringOpening struct {
	atom     int
	order    BondOrder
	explicit bool
	pos      int
}

type parser struct {
	src string
	pos int

	atoms []Atom
	bonds []Bond
	// explicit marks bonds whose order was written in the string.
	explicit []bool

	prev     int
	branches []int
	// atomSinceOpen is false right after '(' until an atom is read.
	atomSinceOpen bool

	pending         BondOrder
	pendingExplicit bool

	rings map[int]ringOpening
	seen  map[[2]int]bool
}

func (p *parser) fail(format string, args ...interface{}) error {
	return errors.InvalidSMILES(p.src, fmt.Sprintf(format, args...)).
		WithDetail(fmt.Sprintf("position %d", p.pos))
}

func (p *parser) parse() error {
	p.atomSinceOpen = true
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.fail("branch opened before any atom")
			}
			if p.pendingExplicit {
				return p.fail("bond symbol before branch")
			}
			p.branches = append(p.branches, p.prev)
			p.atomSinceOpen = false
			p.pos++
		case c == ')':
			if len(p.branches) == 0 {
				return p.fail("unbalanced parentheses")
			}
			if !p.atomSinceOpen {
				return p.fail("empty branch")
			}
			if p.pendingExplicit {
				return p.fail("bond symbol without following atom")
			}
			p.prev = p.branches[len(p.branches)-1]
			p.branches = p.branches[:len(p.branches)-1]
			p.pos++
		case isBondSymbol(c):
			if p.prev < 0 {
				return p.fail("bond symbol %q before any atom", c)
			}
			if p.pendingExplicit {
				return p.fail("consecutive bond symbols")
			}
			p.pending = bondOrderFor(c)
			p.pendingExplicit = true
			p.pos++
		case c == '.':
			if p.prev < 0 || p.pendingExplicit || len(p.branches) > 0 && !p.atomSinceOpen {
				return p.fail("misplaced component separator")
			}
			p.prev = -1
			p.pos++
		case c >= '0' && c <= '9' || c == '%':
			if err := p.ringBond(); err != nil {
				return err
			}
		case c == '[':
			if err := p.bracketAtom(); err != nil {
				return err
			}
		default:
			if err := p.organicAtom(); err != nil {
				return err
			}
		}
	}

	switch {
	case p.pendingExplicit:
		return p.fail("bond symbol without following atom")
	case len(p.branches) > 0:
		return p.fail("unbalanced parentheses")
	case p.prev < 0:
		return p.fail("trailing component separator")
	}
	if len(p.rings) > 0 {
		first := -1
		for num := range p.rings {
			if first < 0 || num < first {
				first = num
			}
		}
		p.pos = p.rings[first].pos
		return p.fail("unclosed ring bond %d", first)
	}
	if len(p.atoms) == 0 {
		return p.fail("no atoms")
	}
	return nil
}

func isBondSymbol(c byte) bool {
	switch c {
	case '-', '=', '#', '$', ':', '/', '\\':
		return true
	}
	return false
}

func bondOrderFor(c byte) BondOrder {
	switch c {
	case '=':
		return BondDouble
	case '#':
		return BondTriple
	case '$':
		return BondQuadruple
	case ':':
		return BondAromatic
	default:
		return BondSingle
	}
}

func (p *parser) addAtom(a Atom) error {
	idx := len(p.atoms)
	p.atoms = append(p.atoms, a)
	if p.prev >= 0 {
		if err := p.addBond(p.prev, idx, p.pending, p.pendingExplicit); err != nil {
			return err
		}
	}
	p.prev = idx
	p.pending, p.pendingExplicit = 0, false
	p.atomSinceOpen = true
	return nil
}

func (p *parser) addBond(a, b int, order BondOrder, explicit bool) error {
	if a == b {
		return p.fail("atom bonded to itself")
	}
	key := [2]int{a, b}
	if a > b {
		key = [2]int{b, a}
	}
	if p.seen[key] {
		return p.fail("duplicate bond between atoms %d and %d", a, b)
	}
	p.seen[key] = true
	if !explicit {
		order = BondSingle
		if p.atoms[a].Aromatic && p.atoms[b].Aromatic {
			order = BondAromatic
		}
	}
	p.bonds = append(p.bonds, Bond{Begin: a, End: b, Order: order})
	p.explicit = append(p.explicit, explicit)
	return nil
}

func (p *parser) ringBond() error {
	if p.prev < 0 {
		return p.fail("ring bond before any atom")
	}
	start := p.pos
	var num int
	if p.src[p.pos] == '%' {
		if p.pos+2 >= len(p.src) || !isDigit(p.src[p.pos+1]) || !isDigit(p.src[p.pos+2]) {
			return p.fail("%% must be followed by two digits")
		}
		num = int(p.src[p.pos+1]-'0')*10 + int(p.src[p.pos+2]-'0')
		p.pos += 3
	} else {
		num = int(p.src[p.pos] - '0')
		p.pos++
	}

	open, ok := p.rings[num]
	if !ok {
		p.rings[num] = ringOpening{atom: p.prev, order: p.pending, explicit: p.pendingExplicit, pos: start}
		p.pending, p.pendingExplicit = 0, false
		return nil
	}
	delete(p.rings, num)

	order, explicit := open.order, open.explicit
	if p.pendingExplicit {
		if explicit && order != p.pending {
			return p.fail("conflicting bond orders on ring bond %d", num)
		}
		order, explicit = p.pending, true
	}
	p.pending, p.pendingExplicit = 0, false
	return p.addBond(open.atom, p.prev, order, explicit)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *parser) organicAtom() error {
	c := p.src[p.pos]
	if c == '*' {
		return p.fail("wildcard atom is not supported")
	}
	sym := string(c)
	if p.pos+1 < len(p.src) {
		two := p.src[p.pos : p.pos+2]
		if two == "Cl" || two == "Br" {
			sym = two
		}
	}
	canonical, ok := organicSubset[sym]
	if !ok {
		return p.fail("unexpected character %q", c)
	}
	p.pos += len(sym)
	return p.addAtom(Atom{
		Element:  elements[canonical],
		Aromatic: sym[0] >= 'a' && sym[0] <= 'z',
	})
}

func (p *parser) bracketAtom() error {
	p.pos++ // '['
	a := Atom{Bracket: true}

	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		a.Isotope = a.Isotope*10 + int(p.src[p.pos]-'0')
		p.pos++
	}

	if p.pos >= len(p.src) {
		return p.fail("unterminated bracket atom")
	}
	switch {
	case p.pos+1 < len(p.src) && aromaticBracketSymbols[p.src[p.pos:p.pos+2]] != "":
		a.Element = elements[aromaticBracketSymbols[p.src[p.pos:p.pos+2]]]
		a.Aromatic = true
		p.pos += 2
	case aromaticBracketSymbols[p.src[p.pos:p.pos+1]] != "":
		a.Element = elements[aromaticBracketSymbols[p.src[p.pos:p.pos+1]]]
		a.Aromatic = true
		p.pos++
	case p.src[p.pos] >= 'A' && p.src[p.pos] <= 'Z':
		sym := p.src[p.pos : p.pos+1]
		if p.pos+1 < len(p.src) && p.src[p.pos+1] >= 'a' && p.src[p.pos+1] <= 'z' {
			if e, ok := LookupElement(p.src[p.pos : p.pos+2]); ok {
				a.Element = e
				sym = e.Symbol
			}
		}
		if a.Element == nil {
			e, ok := LookupElement(sym)
			if !ok {
				return p.fail("unknown element in bracket atom")
			}
			a.Element = e
		}
		p.pos += len(a.Element.Symbol)
	case p.src[p.pos] == '*':
		return p.fail("wildcard atom is not supported")
	default:
		return p.fail("invalid bracket atom symbol")
	}

	// Chirality: @, @@, @TH1, @AL2, @SP3, @TB12, @OH30.
	if p.pos < len(p.src) && p.src[p.pos] == '@' {
		p.pos++
		if p.pos < len(p.src) && p.src[p.pos] == '@' {
			p.pos++
		} else if p.pos+1 < len(p.src) && isUpper(p.src[p.pos]) && isUpper(p.src[p.pos+1]) {
			p.pos += 2
			for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
				p.pos++
			}
		}
	}

	if p.pos < len(p.src) && p.src[p.pos] == 'H' {
		p.pos++
		a.Hydrogens = 1
		if p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			a.Hydrogens = int(p.src[p.pos] - '0')
			p.pos++
		}
	}

	if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
		s := 1
		if p.src[p.pos] == '-' {
			s = -1
		}
		sc := p.src[p.pos]
		p.pos++
		switch {
		case p.pos < len(p.src) && isDigit(p.src[p.pos]):
			n := 0
			for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
				n = n*10 + int(p.src[p.pos]-'0')
				p.pos++
			}
			a.Charge = s * n
		default:
			a.Charge = s
			for p.pos < len(p.src) && p.src[p.pos] == sc {
				a.Charge += s
				p.pos++
			}
		}
	}

	if p.pos < len(p.src) && p.src[p.pos] == ':' {
		p.pos++
		if p.pos >= len(p.src) || !isDigit(p.src[p.pos]) {
			return p.fail("atom class must be numeric")
		}
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
		}
	}

	if p.pos >= len(p.src) || p.src[p.pos] != ']' {
		return p.fail("unterminated bracket atom")
	}
	p.pos++
	return p.addAtom(a)
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

// resolveAromaticBonds demotes implicit aromatic bonds that join two
// aromatic rings (biphenyl written without '-') to single bonds and rejects
// aromatic atoms outside rings.
func (p *parser) resolveAromaticBonds(m *Molecule) error {
	for bi := range m.bonds {
		if m.bonds[bi].Order == BondAromatic && !m.bonds[bi].InRing && !p.explicit[bi] {
			m.bonds[bi].Order = BondSingle
		}
	}
	for i, a := range m.atoms {
		if a.Aromatic && !m.AtomInRing(i) {
			return errors.InvalidSMILES(m.smiles, fmt.Sprintf("non-ring atom %d marked aromatic", i))
		}
	}
	return nil
}

// assignHydrogens fills implicit hydrogen counts for organic subset atoms
// and checks every atom against its maximum valence.
func assignHydrogens(m *Molecule) error {
	for i := range m.atoms {
		a := &m.atoms[i]
		used := 0
		hasDouble := false
		for _, bi := range m.adj[i] {
			used += m.bonds[bi].Order.Valence()
			if m.bonds[bi].Order == BondDouble {
				hasDouble = true
			}
		}
		// Aromatic C, N, B and P donate one electron to the pi system. A
		// three-coordinate pnictogen (N-methylpyrrole) donates its lone pair.
		if a.Aromatic && !hasDouble {
			switch a.Element.Symbol {
			case "C", "B":
				used++
			case "N", "P", "As":
				if len(m.adj[i]) < 3 {
					used++
				}
			}
		}

		if a.Bracket {
			if used+a.Hydrogens > a.Element.MaxValence(a.Charge) {
				return errors.InvalidSMILES(m.smiles, fmt.Sprintf("invalid valence on atom %d (%s)", i, a.Element.Symbol))
			}
			continue
		}

		h := -1
		for _, v := range a.Element.Valences {
			if v >= used {
				h = v - used
				break
			}
		}
		if h < 0 {
			return errors.InvalidSMILES(m.smiles, fmt.Sprintf("invalid valence on atom %d (%s)", i, a.Element.Symbol))
		}
		a.Hydrogens = h
	}
	return nil
}
