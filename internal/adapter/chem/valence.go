package chem

import (
	"fmt"

	"ilfeat/internal/domain"
)

// implicitHydrogens returns the hydrogen count an organic-subset atom receives
// from its bonds. ok is false when the bonds already exceed every allowed valence.
func implicitHydrogens(m *Molecule, i int) (int, bool) {
	a := &m.Atoms[i]
	vals, _ := allowedValences(a.Element, 0)
	sum := m.bondValenceSum(i)

	if a.Aromatic {
		target := vals[0]
		if sum+1 <= target {
			return target - sum - 1, true
		}
		return 0, true
	}

	for _, v := range vals {
		if v >= sum {
			return v - sum, true
		}
	}
	return 0, false
}

// resolveHydrogens fills in implicit hydrogen counts and rejects atoms whose
// valence is impossible for their element and charge.
func resolveHydrogens(m *Molecule, input string) error {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.HCount >= 0 {
			continue
		}
		h, ok := implicitHydrogens(m, i)
		if !ok {
			return &domain.InvalidStructureError{
				Input:  input,
				Pos:    -1,
				Reason: fmt.Sprintf("atom %d (%s) has valence %d, more than allowed", i+1, a.Symbol(), m.bondValenceSum(i)),
			}
		}
		a.HCount = h
	}

	for i := range m.Atoms {
		if err := checkValence(m, i, input); err != nil {
			return err
		}
	}
	return nil
}

func checkValence(m *Molecule, i int, input string) error {
	a := &m.Atoms[i]
	vals, ok := allowedValences(a.Element, a.Charge)
	if !ok {
		return nil
	}
	if len(vals) == 0 {
		return &domain.InvalidStructureError{
			Input:  input,
			Pos:    -1,
			Reason: fmt.Sprintf("atom %d (%s) cannot carry charge %+d", i+1, a.Symbol(), a.Charge),
		}
	}
	total := m.bondValenceSum(i) + a.HCount
	if limit := vals[len(vals)-1]; total > limit {
		return &domain.InvalidStructureError{
			Input:  input,
			Pos:    -1,
			Reason: fmt.Sprintf("atom %d (%s%s) has valence %d, maximum is %d", i+1, a.Symbol(), chargeSuffix(a.Charge), total, limit),
		}
	}
	return nil
}

func chargeSuffix(q int) string {
	switch {
	case q == 0:
		return ""
	case q == 1:
		return "+"
	case q == -1:
		return "-"
	case q > 0:
		return fmt.Sprintf("+%d", q)
	default:
		return fmt.Sprintf("%d", q)
	}
}

// foldExplicitHydrogens removes plain hydrogen atoms bonded to one heavy atom
// and adds them to that atom's hydrogen count.
func foldExplicitHydrogens(m *Molecule) {
	remove := make([]bool, len(m.Atoms))
	folded := false
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Element.Number != 1 || a.Isotope != 0 || a.Charge != 0 || a.HCount != 0 || m.Degree(i) != 1 {
			continue
		}
		b := m.Bonds[m.adj[i][0]]
		nb := b.Other(i)
		if m.Atoms[nb].Element.Number == 1 || b.Order != BondSingle {
			continue
		}
		remove[i] = true
		m.Atoms[nb].HCount++
		folded = true
	}
	if !folded {
		return
	}

	remap := make([]int, len(m.Atoms))
	atoms := make([]Atom, 0, len(m.Atoms))
	for i, a := range m.Atoms {
		if remove[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(atoms)
		atoms = append(atoms, a)
	}
	bonds := make([]Bond, 0, len(m.Bonds))
	for _, b := range m.Bonds {
		if remove[b.A] || remove[b.B] {
			continue
		}
		bonds = append(bonds, Bond{A: remap[b.A], B: remap[b.B], Order: b.Order})
	}
	m.Atoms = atoms
	m.Bonds = bonds
	m.rebuildAdjacency()
}
