package chem

import (
	"sort"
	"strconv"
	"strings"
)

type smilesWriter struct {
	m    *Molecule
	rank []int

	visited  []bool
	order    []int
	children [][]int
	closures [][]int
	isRing   []bool

	digit []int
	inUse map[int]bool
	sb    strings.Builder
}

// writeSMILES writes a connected molecule using rank to choose the start atom,
// the branch order and the ring closures.
func writeSMILES(m *Molecule, rank []int) string {
	if len(m.Atoms) == 0 {
		return ""
	}
	w := &smilesWriter{
		m:        m,
		rank:     rank,
		visited:  make([]bool, len(m.Atoms)),
		order:    make([]int, len(m.Atoms)),
		children: make([][]int, len(m.Atoms)),
		closures: make([][]int, len(m.Atoms)),
		isRing:   make([]bool, len(m.Bonds)),
		digit:    make([]int, len(m.Bonds)),
		inUse:    map[int]bool{},
	}

	start := 0
	for i := range rank {
		if rank[i] < rank[start] {
			start = i
		}
	}
	counter := 0
	w.plan(start, -1, &counter)
	w.emit(start)
	return w.sb.String()
}

func (w *smilesWriter) sortedBonds(u int) []int {
	bonds := append([]int(nil), w.m.adj[u]...)
	sort.Slice(bonds, func(x, y int) bool {
		return w.rank[w.m.Bonds[bonds[x]].Other(u)] < w.rank[w.m.Bonds[bonds[y]].Other(u)]
	})
	return bonds
}

func (w *smilesWriter) plan(u, parentBond int, counter *int) {
	w.visited[u] = true
	w.order[u] = *counter
	*counter++
	for _, bi := range w.sortedBonds(u) {
		if bi == parentBond {
			continue
		}
		v := w.m.Bonds[bi].Other(u)
		if w.visited[v] {
			if !w.isRing[bi] {
				w.isRing[bi] = true
				w.closures[u] = append(w.closures[u], bi)
				w.closures[v] = append(w.closures[v], bi)
			}
			continue
		}
		w.children[u] = append(w.children[u], bi)
		w.plan(v, bi, counter)
	}
}

func (w *smilesWriter) emit(u int) {
	w.sb.WriteString(atomText(w.m, u))

	closing, opening := []int{}, []int{}
	for _, bi := range w.closures[u] {
		if w.order[w.m.Bonds[bi].Other(u)] < w.order[u] {
			closing = append(closing, bi)
		} else {
			opening = append(opening, bi)
		}
	}
	byRank := func(list []int) {
		sort.Slice(list, func(x, y int) bool {
			return w.rank[w.m.Bonds[list[x]].Other(u)] < w.rank[w.m.Bonds[list[y]].Other(u)]
		})
	}
	byRank(closing)
	byRank(opening)

	for _, bi := range closing {
		d := w.digit[bi]
		w.sb.WriteString(ringLabel(d))
		delete(w.inUse, d)
	}
	for _, bi := range opening {
		d := 1
		for w.inUse[d] {
			d++
		}
		w.inUse[d] = true
		w.digit[bi] = d
		w.sb.WriteString(bondText(w.m, w.m.Bonds[bi]))
		w.sb.WriteString(ringLabel(d))
	}

	for k, bi := range w.children[u] {
		v := w.m.Bonds[bi].Other(u)
		last := k == len(w.children[u])-1
		if !last {
			w.sb.WriteByte('(')
		}
		w.sb.WriteString(bondText(w.m, w.m.Bonds[bi]))
		w.emit(v)
		if !last {
			w.sb.WriteByte(')')
		}
	}
}

func bondText(m *Molecule, b Bond) string {
	switch b.Order {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	case BondQuadruple:
		return "$"
	case BondSingle:
		if m.Atoms[b.A].Aromatic && m.Atoms[b.B].Aromatic {
			return "-"
		}
	}
	return ""
}

// atomText writes atom i without brackets when the parser would reconstruct
// the same element, charge and hydrogen count from the bare symbol.
func atomText(m *Molecule, i int) string {
	a := &m.Atoms[i]
	sym := a.Symbol()
	if a.Aromatic {
		sym = strings.ToLower(sym)
	}

	bare := a.Charge == 0 && organicSubset[a.Symbol()]
	if a.Aromatic {
		_, ok := aromaticSymbols[sym]
		bare = bare && ok
	}
	if bare {
		if h, ok := implicitHydrogens(m, i); ok && h == a.HCount {
			return sym
		}
	}

	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(sym)
	if a.HCount > 0 {
		sb.WriteByte('H')
		if a.HCount > 1 {
			sb.WriteString(strconv.Itoa(a.HCount))
		}
	}
	switch {
	case a.Charge == 1:
		sb.WriteByte('+')
	case a.Charge == -1:
		sb.WriteByte('-')
	case a.Charge > 1:
		sb.WriteString("+" + strconv.Itoa(a.Charge))
	case a.Charge < -1:
		sb.WriteString(strconv.Itoa(a.Charge))
	}
	sb.WriteByte(']')
	return sb.String()
}
