package molecule

// Element holds the per-element constants used by parsing, valence checking,
// conformer embedding and descriptor computation.
type Element struct {
	Symbol       string
	Number       int
	Mass         float64 // standard atomic weight, g/mol
	CovalentRad  float64 // single-bond covalent radius, Å
	VdWRadius    float64 // Bondi van der Waals radius, Å
	Electroneg   float64 // Pauling electronegativity
	Valences     []int   // allowed neutral valences, ascending
	Halogen      bool
	valenceShift int // sign applied to formal charge when adjusting the allowed valence
}

// MaxValence returns the largest allowed valence for the given formal
// charge. Charge raises the valence of N, O, S and the halogens (N+ makes
// four bonds) and lowers it for B, C and the metals, with boron anions
// (BF4-) as the exception.
func (e *Element) MaxValence(charge int) int {
	if len(e.Valences) == 0 {
		return 0
	}
	max := e.Valences[len(e.Valences)-1]
	switch {
	case charge == 0:
		return max
	case e.Symbol == "B":
		return max - charge
	case e.valenceShift > 0:
		return max + charge
	default:
		if charge < 0 {
			charge = -charge
		}
		return max - charge
	}
}

var elements = map[string]*Element{
	"H":  {Symbol: "H", Number: 1, Mass: 1.008, CovalentRad: 0.31, VdWRadius: 1.20, Electroneg: 2.20, Valences: []int{1}, valenceShift: -1},
	"Li": {Symbol: "Li", Number: 3, Mass: 6.94, CovalentRad: 1.28, VdWRadius: 1.82, Electroneg: 0.98, Valences: []int{1}, valenceShift: -1},
	"B":  {Symbol: "B", Number: 5, Mass: 10.81, CovalentRad: 0.84, VdWRadius: 1.92, Electroneg: 2.04, Valences: []int{3}, valenceShift: -1},
	"C":  {Symbol: "C", Number: 6, Mass: 12.011, CovalentRad: 0.76, VdWRadius: 1.70, Electroneg: 2.55, Valences: []int{4}, valenceShift: -1},
	"N":  {Symbol: "N", Number: 7, Mass: 14.007, CovalentRad: 0.71, VdWRadius: 1.55, Electroneg: 3.04, Valences: []int{3, 5}, valenceShift: 1},
	"O":  {Symbol: "O", Number: 8, Mass: 15.999, CovalentRad: 0.66, VdWRadius: 1.52, Electroneg: 3.44, Valences: []int{2}, valenceShift: 1},
	"F":  {Symbol: "F", Number: 9, Mass: 18.998, CovalentRad: 0.57, VdWRadius: 1.47, Electroneg: 3.98, Valences: []int{1}, Halogen: true, valenceShift: 1},
	"Na": {Symbol: "Na", Number: 11, Mass: 22.990, CovalentRad: 1.66, VdWRadius: 2.27, Electroneg: 0.93, Valences: []int{1}, valenceShift: -1},
	"Mg": {Symbol: "Mg", Number: 12, Mass: 24.305, CovalentRad: 1.41, VdWRadius: 1.73, Electroneg: 1.31, Valences: []int{2}, valenceShift: -1},
	"Si": {Symbol: "Si", Number: 14, Mass: 28.085, CovalentRad: 1.11, VdWRadius: 2.10, Electroneg: 1.90, Valences: []int{4}, valenceShift: -1},
	"P":  {Symbol: "P", Number: 15, Mass: 30.974, CovalentRad: 1.07, VdWRadius: 1.80, Electroneg: 2.19, Valences: []int{3, 5}, valenceShift: 1},
	"S":  {Symbol: "S", Number: 16, Mass: 32.06, CovalentRad: 1.05, VdWRadius: 1.80, Electroneg: 2.58, Valences: []int{2, 4, 6}, valenceShift: 1},
	"Cl": {Symbol: "Cl", Number: 17, Mass: 35.45, CovalentRad: 1.02, VdWRadius: 1.75, Electroneg: 3.16, Valences: []int{1}, Halogen: true, valenceShift: 1},
	"K":  {Symbol: "K", Number: 19, Mass: 39.098, CovalentRad: 2.03, VdWRadius: 2.75, Electroneg: 0.82, Valences: []int{1}, valenceShift: -1},
	"Ge": {Symbol: "Ge", Number: 32, Mass: 72.630, CovalentRad: 1.20, VdWRadius: 2.11, Electroneg: 2.01, Valences: []int{4}, valenceShift: -1},
	"As": {Symbol: "As", Number: 33, Mass: 74.922, CovalentRad: 1.19, VdWRadius: 1.85, Electroneg: 2.18, Valences: []int{3, 5}, valenceShift: 1},
	"Se": {Symbol: "Se", Number: 34, Mass: 78.971, CovalentRad: 1.20, VdWRadius: 1.90, Electroneg: 2.55, Valences: []int{2, 4, 6}, valenceShift: 1},
	"Br": {Symbol: "Br", Number: 35, Mass: 79.904, CovalentRad: 1.20, VdWRadius: 1.85, Electroneg: 2.96, Valences: []int{1}, Halogen: true, valenceShift: 1},
	"I":  {Symbol: "I", Number: 53, Mass: 126.904, CovalentRad: 1.39, VdWRadius: 1.98, Electroneg: 2.66, Valences: []int{1, 3, 5}, Halogen: true, valenceShift: 1},
}

// LookupElement returns the element for a capitalized symbol.
func LookupElement(symbol string) (*Element, bool) {
	e, ok := elements[symbol]
	return e, ok
}

// organicSubset lists the atoms that may appear outside brackets, with their
// aromatic spellings.
var organicSubset = map[string]string{
	"B": "B", "C": "C", "N": "N", "O": "O", "P": "P", "S": "S",
	"F": "F", "Cl": "Cl", "Br": "Br", "I": "I",
	"b": "B", "c": "C", "n": "N", "o": "O", "p": "P", "s": "S",
}

// aromaticBracketSymbols are the lowercase spellings accepted inside brackets.
var aromaticBracketSymbols = map[string]string{
	"b": "B", "c": "C", "n": "N", "o": "O", "p": "P", "s": "S",
	"se": "Se", "as": "As",
}
