package chem

import (
	"math"

	"ilfeat/internal/domain"
)

const gasteigerIterations = 6

type hybrid int

const (
	sp3 hybrid = iota
	sp2
	sp
)

type gasteigerParams struct{ a, b, c float64 }

// chiPlus is the electronegativity of the cation, used as the divisor for
// charge moving away from the atom. Hydrogen uses the fixed value 20.02.
func (p gasteigerParams) chiPlus(symbol string) float64 {
	if symbol == "H" {
		return 20.02
	}
	return p.a + p.b + p.c
}

func (p gasteigerParams) chi(q float64) float64 {
	return p.a + p.b*q + p.c*q*q
}

type gasteigerType struct {
	symbol string
	hyb    hybrid
}

var gasteigerTable = map[gasteigerType]gasteigerParams{
	{"H", sp3}:  {7.17, 6.24, -0.56},
	{"C", sp3}:  {7.98, 9.18, 1.88},
	{"C", sp2}:  {8.79, 9.32, 1.51},
	{"C", sp}:   {10.39, 9.45, 0.73},
	{"N", sp3}:  {11.54, 10.82, 1.36},
	{"N", sp2}:  {12.87, 11.15, 0.85},
	{"N", sp}:   {15.68, 11.70, -0.27},
	{"O", sp3}:  {14.18, 12.92, 1.39},
	{"O", sp2}:  {17.07, 13.79, 0.47},
	{"F", sp3}:  {14.66, 13.85, 2.31},
	{"Cl", sp3}: {11.00, 9.69, 1.35},
	{"Br", sp3}: {10.08, 8.47, 1.16},
	{"I", sp3}:  {9.90, 7.96, 0.96},
	{"S", sp3}:  {10.14, 9.13, 1.38},
	{"S", sp2}:  {10.88, 9.485, 1.325},
	{"P", sp3}:  {8.90, 8.24, 0.96},
}

func hybridisation(g domain.AtomGraph, adj [][]int, i int) hybrid {
	doubles, multiple := 0, false
	for _, bi := range adj[i] {
		switch o := g.Bonds[bi].Order; {
		case o >= 3:
			return sp
		case o == 2:
			doubles++
		case o > 1:
			multiple = true
		}
	}
	switch {
	case doubles >= 2 && g.Elements[i] == "C":
		return sp
	case doubles == 1 || multiple:
		return sp2
	}
	return sp3
}

func lookupGasteiger(g domain.AtomGraph, adj [][]int, i int) (gasteigerParams, bool) {
	sym := g.Elements[i]
	switch sym {
	case "H", "F", "Cl", "Br", "I", "P":
		p, ok := gasteigerTable[gasteigerType{sym, sp3}]
		return p, ok
	case "S":
		// sulfonyl and sulfate sulfur are tetrahedral
		if doubleBonds(g, adj, i) >= 2 {
			return gasteigerTable[gasteigerType{"S", sp3}], true
		}
	}
	// missing sp entries fall back to the next lower hybridisation
	for h := hybridisation(g, adj, i); h >= sp3; h-- {
		if p, ok := gasteigerTable[gasteigerType{sym, h}]; ok {
			return p, true
		}
	}
	return gasteigerParams{}, false
}

func doubleBonds(g domain.AtomGraph, adj [][]int, i int) int {
	n := 0
	for _, bi := range adj[i] {
		if g.Bonds[bi].Order == 2 {
			n++
		}
	}
	return n
}

// GasteigerCharges computes Gasteiger-Marsili partial charges for a
// hydrogen-explicit atom graph, seeded with the formal charges. ok is false
// when some element has no parameters.
func GasteigerCharges(g domain.AtomGraph) ([]float64, bool) {
	n := len(g.Elements)
	adj := make([][]int, n)
	for bi, b := range g.Bonds {
		adj[b.From] = append(adj[b.From], bi)
		adj[b.To] = append(adj[b.To], bi)
	}

	params := make([]gasteigerParams, n)
	for i := 0; i < n; i++ {
		p, ok := lookupGasteiger(g, adj, i)
		if !ok {
			return nil, false
		}
		params[i] = p
	}

	q := make([]float64, n)
	for i := range q {
		if i < len(g.FormalCharges) {
			q[i] = float64(g.FormalCharges[i])
		}
	}

	damp := 1.0
	delta := make([]float64, n)
	for iter := 0; iter < gasteigerIterations; iter++ {
		damp *= 0.5
		for i := range delta {
			delta[i] = 0
		}
		for _, b := range g.Bonds {
			i, j := b.From, b.To
			chiI, chiJ := params[i].chi(q[i]), params[j].chi(q[j])
			if chiI == chiJ {
				continue
			}
			// charge flows from the less to the more electronegative atom
			lo, hi := i, j
			if chiI > chiJ {
				lo, hi = j, i
			}
			dq := damp * math.Abs(chiJ-chiI) / params[lo].chiPlus(g.Elements[lo])
			delta[lo] += dq
			delta[hi] -= dq
		}
		for i := range q {
			q[i] += delta[i]
		}
	}

	for _, v := range q {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return q, true
}

// PartialCharges computes Gasteiger charges for m with hydrogens added.
func PartialCharges(m *Molecule) ([]float64, bool) {
	return GasteigerCharges(AddHydrogens(m).AtomGraph())
}
