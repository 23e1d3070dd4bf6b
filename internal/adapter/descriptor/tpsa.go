package descriptor

import (
	"math"

	"ilfeat/internal/adapter/chem"
)

// polarEnv describes the bonding environment of an N or O atom.
type polarEnv struct {
	aromatic                         bool
	charge, h                        int
	single, double, triple, aromBond int
}

type polarContribution struct {
	env   polarEnv
	value float64
}

// Ertl fragment contributions in Å².
var (
	nitrogenContributions = []polarContribution{
		{polarEnv{single: 3}, 3.24},
		{polarEnv{single: 1, double: 1}, 12.36},
		{polarEnv{triple: 1}, 23.79},
		{polarEnv{single: 1, double: 2}, 11.68},
		{polarEnv{double: 1, triple: 1}, 13.60},
		{polarEnv{h: 1, single: 2}, 12.03},
		{polarEnv{h: 1, double: 1}, 23.85},
		{polarEnv{h: 2, single: 1}, 26.02},
		{polarEnv{charge: 1, single: 4}, 0.00},
		{polarEnv{charge: 1, single: 2, double: 1}, 3.01},
		{polarEnv{charge: 1, single: 1, triple: 1}, 4.36},
		{polarEnv{charge: 1, h: 1, single: 3}, 4.44},
		{polarEnv{charge: 1, h: 1, single: 1, double: 1}, 13.97},
		{polarEnv{charge: 1, h: 2, single: 2}, 16.61},
		{polarEnv{charge: 1, h: 2, double: 1}, 25.59},
		{polarEnv{charge: 1, h: 3, single: 1}, 27.64},
		{polarEnv{aromatic: true, aromBond: 2}, 12.89},
		{polarEnv{aromatic: true, aromBond: 3}, 4.41},
		{polarEnv{aromatic: true, single: 1, aromBond: 2}, 4.93},
		{polarEnv{aromatic: true, double: 1, aromBond: 2}, 8.39},
		{polarEnv{aromatic: true, h: 1, aromBond: 2}, 15.79},
		{polarEnv{aromatic: true, charge: 1, aromBond: 3}, 4.10},
		{polarEnv{aromatic: true, charge: 1, single: 1, aromBond: 2}, 3.88},
		{polarEnv{aromatic: true, charge: 1, h: 1, aromBond: 2}, 14.14},
	}
	oxygenContributions = []polarContribution{
		{polarEnv{single: 2}, 9.23},
		{polarEnv{double: 1}, 17.07},
		{polarEnv{h: 1, single: 1}, 20.23},
		{polarEnv{charge: -1, single: 1}, 23.06},
		{polarEnv{aromatic: true, aromBond: 2}, 13.14},
	}
)

// tpsa sums the polar surface contributions of nitrogen and oxygen atoms.
// Environments without a tabulated value fall back to an estimate from the
// neighbour and hydrogen counts.
func tpsa(m *chem.Molecule) float64 {
	total := 0.0
	for i := range m.Atoms {
		a := &m.Atoms[i]
		var table []polarContribution
		var base, perNeighbour float64
		switch a.Element.Number {
		case 7:
			table, base, perNeighbour = nitrogenContributions, 30.5, 8.2
		case 8:
			table, base, perNeighbour = oxygenContributions, 28.5, 8.6
		default:
			continue
		}

		env := polarEnv{aromatic: a.Aromatic, charge: a.Charge, h: a.HCount}
		for _, bi := range m.BondsOf(i) {
			switch m.Bonds[bi].Order {
			case chem.BondSingle:
				env.single++
			case chem.BondDouble:
				env.double++
			case chem.BondTriple:
				env.triple++
			case chem.BondAromatic:
				env.aromBond++
			}
		}

		value, found := 0.0, false
		for _, c := range table {
			if c.env == env {
				value, found = c.value, true
				break
			}
		}
		if !found {
			value = math.Max(0, base-perNeighbour*float64(m.Degree(i))+1.5*float64(a.HCount))
		}
		total += value
	}
	return total
}
