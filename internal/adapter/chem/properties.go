package chem

import "sort"

const hydrogenMass = 1.008

func (m *Molecule) NetCharge() int {
	q := 0
	for i := range m.Atoms {
		q += m.Atoms[i].Charge
	}
	return q
}

// HeavyAtomCount counts non-hydrogen atoms.
func (m *Molecule) HeavyAtomCount() int {
	n := 0
	for i := range m.Atoms {
		if m.Atoms[i].Element.Number != 1 {
			n++
		}
	}
	return n
}

// AtomCount counts all atoms including implicit hydrogens.
func (m *Molecule) AtomCount() int {
	n := len(m.Atoms)
	for i := range m.Atoms {
		n += m.Atoms[i].HCount
	}
	return n
}

func (m *Molecule) HydrogenCount() int {
	n := 0
	for i := range m.Atoms {
		n += m.Atoms[i].HCount
		if m.Atoms[i].Element.Number == 1 {
			n++
		}
	}
	return n
}

// MolWeight is the average molecular weight in g/mol.
func (m *Molecule) MolWeight() float64 {
	w := 0.0
	for i := range m.Atoms {
		w += m.Atoms[i].Element.Mass + float64(m.Atoms[i].HCount)*hydrogenMass
	}
	return w
}

// ElementSet returns the sorted distinct element symbols, hydrogen included.
func (m *Molecule) ElementSet() []string {
	seen := map[string]bool{}
	for i := range m.Atoms {
		seen[m.Atoms[i].Symbol()] = true
		if m.Atoms[i].HCount > 0 {
			seen["H"] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// RotatableBonds counts acyclic single bonds between two non-terminal heavy atoms.
func (m *Molecule) RotatableBonds() int {
	n := 0
	for bi, b := range m.Bonds {
		if b.Order != BondSingle || m.BondInRing(bi) {
			continue
		}
		if m.heavyDegree(b.A) < 2 || m.heavyDegree(b.B) < 2 {
			continue
		}
		n++
	}
	return n
}

func (m *Molecule) heavyDegree(i int) int {
	d := 0
	for _, nb := range m.Neighbors(i) {
		if m.Atoms[nb].Element.Number != 1 {
			d++
		}
	}
	return d
}

func (m *Molecule) AromaticAtomCount() int {
	n := 0
	for i := range m.Atoms {
		if m.Atoms[i].Aromatic {
			n++
		}
	}
	return n
}
