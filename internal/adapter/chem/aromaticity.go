package chem

import (
	"fmt"

	"ilfeat/internal/domain"
)

// perceiveAromaticity normalises the aromatic model of m: aromatic input is
// first reduced to a Kekulé structure, then every ring or fused ring pair that
// satisfies the 4n+2 rule is marked aromatic. Kekulé and aromatic spellings of
// the same structure therefore end up identical.
func perceiveAromaticity(m *Molecule, input string) error {
	if err := checkAromaticInput(m, input); err != nil {
		return err
	}
	if err := kekulize(m, input); err != nil {
		return err
	}
	markAromatic(m)
	return nil
}

func checkAromaticInput(m *Molecule, input string) error {
	for i := range m.Bonds {
		b := &m.Bonds[i]
		if b.Order != BondAromatic {
			continue
		}
		if !m.BondInRing(i) {
			// aromatic atoms joined outside a ring, as in biphenyl, are single bonded
			b.Order = BondSingle
			continue
		}
		if !m.Atoms[b.A].Aromatic || !m.Atoms[b.B].Aromatic {
			return &domain.InvalidStructureError{
				Input:  input,
				Pos:    -1,
				Reason: fmt.Sprintf("aromatic bond %d-%d joins a non-aromatic atom", b.A+1, b.B+1),
			}
		}
	}
	for i := range m.Atoms {
		if m.Atoms[i].Aromatic && !m.AtomInRing(i) {
			return &domain.InvalidStructureError{
				Input:  input,
				Pos:    -1,
				Reason: fmt.Sprintf("aromatic atom %d (%s) is not in a ring", i+1, m.Atoms[i].Symbol()),
			}
		}
	}
	return nil
}

// needsPiBond reports whether an aromatic atom must take a double bond in a
// Kekulé structure, i.e. its single-bond valence falls one short.
func needsPiBond(m *Molecule, i int) bool {
	a := &m.Atoms[i]
	vals, ok := allowedValences(a.Element, a.Charge)
	if !ok || len(vals) == 0 {
		return false
	}
	return m.bondValenceSum(i)+a.HCount < vals[0]
}

func kekulize(m *Molecule, input string) error {
	var aromaticBonds []int
	for i, b := range m.Bonds {
		if b.Order == BondAromatic {
			aromaticBonds = append(aromaticBonds, i)
		}
	}
	if len(aromaticBonds) == 0 {
		for i := range m.Atoms {
			m.Atoms[i].Aromatic = false
		}
		return nil
	}

	needs := make([]bool, len(m.Atoms))
	var pending []int
	for i := range m.Atoms {
		if m.Atoms[i].Aromatic && needsPiBond(m, i) {
			needs[i] = true
			pending = append(pending, i)
		}
	}

	partner := make([]int, len(m.Atoms))
	for i := range partner {
		partner[i] = -1
	}
	candidates := func(i int) []int {
		var out []int
		for _, bi := range m.adj[i] {
			if m.Bonds[bi].Order != BondAromatic {
				continue
			}
			j := m.Bonds[bi].Other(i)
			if needs[j] && partner[j] < 0 {
				out = append(out, bi)
			}
		}
		return out
	}

	var solve func() bool
	solve = func() bool {
		best, bestOpts := -1, []int(nil)
		for _, i := range pending {
			if partner[i] >= 0 {
				continue
			}
			opts := candidates(i)
			if best < 0 || len(opts) < len(bestOpts) {
				best, bestOpts = i, opts
			}
			if len(opts) == 0 {
				return false
			}
		}
		if best < 0 {
			return true
		}
		for _, bi := range bestOpts {
			j := m.Bonds[bi].Other(best)
			partner[best], partner[j] = j, best
			if solve() {
				return true
			}
			partner[best], partner[j] = -1, -1
		}
		return false
	}
	if !solve() {
		return &domain.InvalidStructureError{
			Input:  input,
			Pos:    -1,
			Reason: "aromatic system cannot be kekulized",
		}
	}

	for _, bi := range aromaticBonds {
		b := &m.Bonds[bi]
		if partner[b.A] == b.B {
			b.Order = BondDouble
		} else {
			b.Order = BondSingle
		}
	}
	for i := range m.Atoms {
		m.Atoms[i].Aromatic = false
	}
	return nil
}

// piElectrons returns the number of electrons atom i donates to the ring
// system members, or -1 when the atom cannot be part of an aromatic ring.
func piElectrons(m *Molecule, i int, members map[int]bool) int {
	a := &m.Atoms[i]
	exocyclic := false
	for _, bi := range m.adj[i] {
		b := m.Bonds[bi]
		switch b.Order {
		case BondTriple, BondQuadruple:
			return -1
		case BondDouble:
			j := b.Other(i)
			if members[j] {
				return 1
			}
			if m.BondInRing(bi) {
				return -1
			}
			switch m.Atoms[j].Element.Number {
			case 7, 8, 16:
				if a.Element.Number != 6 {
					return -1
				}
				exocyclic = true
			default:
				return -1
			}
		}
	}
	if exocyclic {
		return 0
	}

	conns := m.Degree(i) + a.HCount
	switch a.Element.Number {
	case 6:
		switch a.Charge {
		case -1:
			return 2
		case 1:
			return 0
		}
	case 7, 15, 33:
		if a.Charge == 0 && conns == 3 || a.Charge == -1 && conns == 2 {
			return 2
		}
	case 8, 16, 34, 52:
		if a.Charge == 0 && conns == 2 {
			return 2
		}
	case 5:
		if a.Charge == 0 && conns == 3 {
			return 0
		}
	}
	return -1
}

type ringCandidate struct {
	atoms []int
	bonds []int
}

func markAromatic(m *Molecule) {
	rings, ringBonds := m.Rings(), m.RingBonds()
	if len(rings) == 0 {
		return
	}

	candidates := make([]ringCandidate, 0, len(rings))
	for k := range rings {
		candidates = append(candidates, ringCandidate{atoms: rings[k], bonds: ringBonds[k]})
	}
	// fused pairs catch systems such as azulene whose rings are not aromatic alone
	for x := 0; x < len(rings); x++ {
		for y := x + 1; y < len(rings); y++ {
			if !sharesBond(ringBonds[x], ringBonds[y]) {
				continue
			}
			candidates = append(candidates, ringCandidate{
				atoms: unionInts(rings[x], rings[y]),
				bonds: unionInts(ringBonds[x], ringBonds[y]),
			})
		}
	}

	aromAtom := make([]bool, len(m.Atoms))
	aromBond := make([]bool, len(m.Bonds))
	for _, c := range candidates {
		members := make(map[int]bool, len(c.atoms))
		for _, i := range c.atoms {
			members[i] = true
		}
		total := 0
		ok := true
		for _, i := range c.atoms {
			e := piElectrons(m, i, members)
			if e < 0 {
				ok = false
				break
			}
			total += e
		}
		if !ok || total%4 != 2 {
			continue
		}
		for _, i := range c.atoms {
			aromAtom[i] = true
		}
		for _, bi := range c.bonds {
			aromBond[bi] = true
		}
	}

	for i, v := range aromAtom {
		if v {
			m.Atoms[i].Aromatic = true
		}
	}
	for bi, v := range aromBond {
		if v {
			m.Bonds[bi].Order = BondAromatic
		}
	}
}

func sharesBond(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func unionInts(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, s := range [][]int{a, b} {
		for _, x := range s {
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
		}
	}
	return out
}
