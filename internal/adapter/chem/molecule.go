// Package chem implements the molecular graph model: SMILES parsing and
// canonical writing, ring and aromaticity perception, hydrogen handling,
// molfile exchange, partial charges and ion classification.
package chem

import (
	"sort"
	"strconv"
	"strings"
)

type BondOrder int

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
	BondQuadruple
	BondAromatic
)

// Valence is the contribution of the bond to an atom's valence with aromatic
// bonds counted as one.
func (o BondOrder) Valence() int {
	switch o {
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	case BondQuadruple:
		return 4
	default:
		return 1
	}
}

// Float returns the bond order with aromatic bonds as 1.5.
func (o BondOrder) Float() float64 {
	if o == BondAromatic {
		return 1.5
	}
	return float64(o.Valence())
}

type Atom struct {
	Element  *Element
	Aromatic bool
	Charge   int
	// HCount is the total number of hydrogens carried by the atom, not counting
	// hydrogens present as separate atoms.
	HCount  int
	Isotope int

	bracket bool
}

func (a *Atom) Symbol() string {
	return a.Element.Symbol
}

type Bond struct {
	A, B  int
	Order BondOrder
}

// Other returns the atom of the bond that is not i.
func (b Bond) Other(i int) int {
	if b.A == i {
		return b.B
	}
	return b.A
}

// Molecule is an undirected graph of atoms and bonds. adj holds bond indices per atom.
type Molecule struct {
	Atoms []Atom
	Bonds []Bond
	adj   [][]int

	rings *ringInfo
}

func newMolecule() *Molecule {
	return &Molecule{}
}

func (m *Molecule) addAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	m.adj = append(m.adj, nil)
	m.rings = nil
	return len(m.Atoms) - 1
}

func (m *Molecule) addBond(a, b int, order BondOrder) int {
	m.Bonds = append(m.Bonds, Bond{A: a, B: b, Order: order})
	idx := len(m.Bonds) - 1
	m.adj[a] = append(m.adj[a], idx)
	m.adj[b] = append(m.adj[b], idx)
	m.rings = nil
	return idx
}

// bondBetween returns the index of the bond joining a and b, or -1.
func (m *Molecule) bondBetween(a, b int) int {
	for _, bi := range m.adj[a] {
		if m.Bonds[bi].Other(a) == b {
			return bi
		}
	}
	return -1
}

func (m *Molecule) Neighbors(i int) []int {
	out := make([]int, 0, len(m.adj[i]))
	for _, bi := range m.adj[i] {
		out = append(out, m.Bonds[bi].Other(i))
	}
	return out
}

// BondsOf returns the bond indices incident to atom i.
func (m *Molecule) BondsOf(i int) []int {
	return m.adj[i]
}

func (m *Molecule) Degree(i int) int {
	return len(m.adj[i])
}

// bondValenceSum is the sum of bond valences at atom i, aromatic bonds counted once.
func (m *Molecule) bondValenceSum(i int) int {
	sum := 0
	for _, bi := range m.adj[i] {
		sum += m.Bonds[bi].Order.Valence()
	}
	return sum
}

func (m *Molecule) hasBondOrder(i int, order BondOrder) bool {
	for _, bi := range m.adj[i] {
		if m.Bonds[bi].Order == order {
			return true
		}
	}
	return false
}

// rebuildAdjacency recomputes adj after atoms or bonds were removed.
func (m *Molecule) rebuildAdjacency() {
	m.adj = make([][]int, len(m.Atoms))
	for i, b := range m.Bonds {
		m.adj[b.A] = append(m.adj[b.A], i)
		m.adj[b.B] = append(m.adj[b.B], i)
	}
	m.rings = nil
}

// Components returns the atom indices of each connected component in order of
// their lowest atom index.
func (m *Molecule) Components() [][]int {
	seen := make([]bool, len(m.Atoms))
	var comps [][]int
	for start := range m.Atoms {
		if seen[start] {
			continue
		}
		var comp []int
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, cur)
			for _, nb := range m.Neighbors(cur) {
				if !seen[nb] {
					seen[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// Subgraph copies the atoms in idx, in that order, with the bonds among them.
func (m *Molecule) Subgraph(idx []int) *Molecule {
	remap := make(map[int]int, len(idx))
	sub := newMolecule()
	for _, i := range idx {
		remap[i] = sub.addAtom(m.Atoms[i])
	}
	for _, b := range m.Bonds {
		na, okA := remap[b.A]
		nb, okB := remap[b.B]
		if okA && okB {
			sub.addBond(na, nb, b.Order)
		}
	}
	return sub
}

// Formula returns the Hill-order molecular formula, e.g. "C6H11N2+".
func (m *Molecule) Formula() string {
	counts := map[string]int{}
	for i := range m.Atoms {
		counts[m.Atoms[i].Symbol()]++
		if h := m.Atoms[i].HCount; h > 0 {
			counts["H"] += h
		}
	}

	var sb strings.Builder
	write := func(sym string) {
		n := counts[sym]
		if n == 0 {
			return
		}
		sb.WriteString(sym)
		if n > 1 {
			sb.WriteString(strconv.Itoa(n))
		}
		delete(counts, sym)
	}
	if counts["C"] > 0 {
		write("C")
		write("H")
	}
	rest := make([]string, 0, len(counts))
	for sym := range counts {
		rest = append(rest, sym)
	}
	sort.Strings(rest)
	for _, sym := range rest {
		write(sym)
	}

	switch q := m.NetCharge(); {
	case q == 1:
		sb.WriteString("+")
	case q == -1:
		sb.WriteString("-")
	case q > 1:
		sb.WriteString(strconv.Itoa(q) + "+")
	case q < -1:
		sb.WriteString(strconv.Itoa(-q) + "-")
	}
	return sb.String()
}
