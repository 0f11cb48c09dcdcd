package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmallRings(t *testing.T) {
	assert.Empty(t, MustParse("CCCC").SmallRings())
	assert.Equal(t, [][]int{{0, 1, 2}}, MustParse("C1CC1").SmallRings())

	naph := MustParse("c1ccc2ccccc2c1").SmallRings()
	// Two six-membered rings plus the ten-membered envelope, which exceeds
	// the enumeration bound.
	assert.Len(t, naph, 2)
	for _, r := range naph {
		assert.Len(t, r, 6)
	}
}

func TestAromaticRings(t *testing.T) {
	cases := []struct {
		smiles string
		rings  int
		atoms  int
	}{
		{"c1ccccc1", 1, 6},
		{"C1=CC=CC=C1", 1, 6},
		{"FC(F)(F)C1=CC=CC=C1", 1, 6},
		{"C1=COC=C1", 1, 5},
		{"c1ccc2ccccc2c1", 2, 10},
		{"C1CCCCC1", 0, 0},
		{"C1=CCCC=C1", 0, 0},
		{"OC(=O)C(F)(F)F", 0, 0},
	}
	for _, tc := range cases {
		m := MustParse(tc.smiles)
		assert.Len(t, m.AromaticRings(), tc.rings, tc.smiles)
		assert.Len(t, m.AromaticAtoms(), tc.atoms, tc.smiles)
	}
}
