package chem

import "ilfeat/internal/domain"

// AddHydrogens returns a copy of m with every implicit hydrogen turned into an
// atom. Heavy atoms keep their order and the new hydrogens follow them,
// grouped by parent atom in that same order.
func AddHydrogens(m *Molecule) *Molecule {
	out := m.Subgraph(allIndices(len(m.Atoms)))
	h, _ := LookupElement("H")
	heavy := len(out.Atoms)
	for i := 0; i < heavy; i++ {
		n := out.Atoms[i].HCount
		out.Atoms[i].HCount = 0
		for k := 0; k < n; k++ {
			idx := out.addAtom(Atom{Element: h})
			out.addBond(i, idx, BondSingle)
		}
	}
	return out
}

// ExplicitHydrogenMolecule parses a canonical identity and adds hydrogens, so
// the atom order is the canonical heavy-atom order followed by hydrogens.
func ExplicitHydrogenMolecule(id domain.MoleculeIdentity) (*Molecule, error) {
	m, err := ParseSMILES(id.Canonical)
	if err != nil {
		return nil, err
	}
	return AddHydrogens(m), nil
}

// AtomGraph converts m to the embedding input. Aromatic bonds have order 1.5.
func (m *Molecule) AtomGraph() domain.AtomGraph {
	g := domain.AtomGraph{
		Elements:      make([]string, len(m.Atoms)),
		FormalCharges: make([]int, len(m.Atoms)),
		Bonds:         make([]domain.ConformerBond, len(m.Bonds)),
	}
	for i := range m.Atoms {
		g.Elements[i] = m.Atoms[i].Symbol()
		g.FormalCharges[i] = m.Atoms[i].Charge
	}
	for i, b := range m.Bonds {
		g.Bonds[i] = domain.ConformerBond{From: b.A, To: b.B, Order: b.Order.Float()}
	}
	return g
}
