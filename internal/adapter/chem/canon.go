package chem

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"ilfeat/internal/domain"
)

// maxTieLeaves bounds the number of complete labellings tried when breaking
// ties between symmetry classes. Past it only the first candidate is followed.
const maxTieLeaves = 4096

// Canonicalize parses a SMILES string and returns its canonical, non-isomeric
// identity. Kekulé and aromatic spellings, atom order and explicit hydrogen
// atoms do not affect the result.
func Canonicalize(raw string) (domain.MoleculeIdentity, error) {
	m, err := ParseSMILES(norm.NFC.String(raw))
	if err != nil {
		var se *domain.InvalidStructureError
		if errors.As(err, &se) {
			se.Input = raw
		}
		return domain.MoleculeIdentity{}, err
	}
	return domain.MoleculeIdentity{Canonical: CanonicalSMILES(m)}, nil
}

// CanonicalSMILES writes m in canonical form. Isotopes are dropped and
// hydrogen atoms freed by that are folded into their neighbours.
func CanonicalSMILES(m *Molecule) string {
	work := m.Subgraph(allIndices(len(m.Atoms)))
	for i := range work.Atoms {
		work.Atoms[i].Isotope = 0
	}
	foldExplicitHydrogens(work)

	comps := work.Components()
	parts := make([]string, 0, len(comps))
	for _, comp := range comps {
		parts = append(parts, canonicalComponent(work.Subgraph(comp)))
	}
	sort.Strings(parts)
	return strings.Join(parts, ".")
}

func canonicalComponent(m *Molecule) string {
	ranks := refineRanks(m, initialRanks(m))

	best := ""
	leaves := 0
	var search func(r []int)
	search = func(r []int) {
		tied, value := tiedClass(r)
		if tied == nil {
			leaves++
			if s := writeSMILES(m, r); best == "" || s < best {
				best = s
			}
			return
		}
		for k, c := range tied {
			if k > 0 && leaves >= maxTieLeaves {
				return
			}
			next := make([]int, len(r))
			for i, v := range r {
				next[i] = 2 * v
			}
			next[c] = 2*value - 1
			search(refineRanks(m, next))
		}
	}
	search(ranks)
	return best
}

// tiedClass returns the atoms sharing the lowest rank held by more than one
// atom, or nil when every rank is distinct.
func tiedClass(r []int) ([]int, int) {
	count := map[int]int{}
	for _, v := range r {
		count[v]++
	}
	value := -1
	for v, n := range count {
		if n > 1 && (value < 0 || v < value) {
			value = v
		}
	}
	if value < 0 {
		return nil, 0
	}
	var out []int
	for i, v := range r {
		if v == value {
			out = append(out, i)
		}
	}
	return out, value
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func initialRanks(m *Molecule) []int {
	keys := make([][]int, len(m.Atoms))
	for i := range m.Atoms {
		a := &m.Atoms[i]
		keys[i] = []int{
			m.heavyDegree(i),
			a.Element.Number,
			boolInt(a.Aromatic),
			a.Charge,
			a.HCount,
			boolInt(m.AtomInRing(i)),
		}
	}
	return denseRanks(keys)
}

func bondCode(o BondOrder) int {
	return int(o)
}

// refineRanks splits rank classes by the sorted ranks and bond codes of their
// neighbours until the partition is stable. Relative order of existing
// classes is preserved.
func refineRanks(m *Molecule, ranks []int) []int {
	cur := denseRanks(singletons(ranks))
	classes := countClasses(cur)
	for {
		keys := make([][]int, len(m.Atoms))
		for i := range m.Atoms {
			pairs := make([][2]int, 0, len(m.adj[i]))
			for _, bi := range m.adj[i] {
				b := m.Bonds[bi]
				pairs = append(pairs, [2]int{cur[b.Other(i)], bondCode(b.Order)})
			}
			sort.Slice(pairs, func(x, y int) bool {
				if pairs[x][0] != pairs[y][0] {
					return pairs[x][0] < pairs[y][0]
				}
				return pairs[x][1] < pairs[y][1]
			})
			key := make([]int, 0, 1+2*len(pairs))
			key = append(key, cur[i])
			for _, p := range pairs {
				key = append(key, p[0], p[1])
			}
			keys[i] = key
		}
		next := denseRanks(keys)
		n := countClasses(next)
		if n == classes {
			return next
		}
		cur, classes = next, n
	}
}

func singletons(r []int) [][]int {
	out := make([][]int, len(r))
	for i, v := range r {
		out[i] = []int{v}
	}
	return out
}

func countClasses(r []int) int {
	seen := map[int]bool{}
	for _, v := range r {
		seen[v] = true
	}
	return len(seen)
}

// denseRanks maps each key to its position among the distinct keys in
// lexicographic order.
func denseRanks(keys [][]int) []int {
	idx := allIndices(len(keys))
	sort.SliceStable(idx, func(x, y int) bool {
		return compareInts(keys[idx[x]], keys[idx[y]]) < 0
	})
	ranks := make([]int, len(keys))
	r := 0
	for k, i := range idx {
		if k > 0 && compareInts(keys[idx[k-1]], keys[i]) != 0 {
			r++
		}
		ranks[i] = r
	}
	return ranks
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func compareInts(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
