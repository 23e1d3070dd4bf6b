package chem

import (
	"sort"
	"strconv"
	"strings"
)

type ringInfo struct {
	atomInRing []bool
	bondInRing []bool
	// rings holds a smallest set of smallest rings; each ring lists its atoms
	// in cyclic order and the bonds between consecutive atoms.
	rings     [][]int
	ringBonds [][]int
}

func (m *Molecule) ringData() *ringInfo {
	if m.rings == nil {
		m.rings = perceiveRings(m)
	}
	return m.rings
}

func (m *Molecule) AtomInRing(i int) bool { return m.ringData().atomInRing[i] }
func (m *Molecule) BondInRing(b int) bool { return m.ringData().bondInRing[b] }

// Rings returns the smallest set of smallest rings as cyclic atom lists.
func (m *Molecule) Rings() [][]int { return m.ringData().rings }

// RingBonds returns the bonds of each ring in Rings order.
func (m *Molecule) RingBonds() [][]int { return m.ringData().ringBonds }

func perceiveRings(m *Molecule) *ringInfo {
	info := &ringInfo{
		atomInRing: make([]bool, len(m.Atoms)),
		bondInRing: make([]bool, len(m.Bonds)),
	}

	bridges := findBridges(m)
	for bi, b := range m.Bonds {
		if !bridges[bi] {
			info.bondInRing[bi] = true
			info.atomInRing[b.A] = true
			info.atomInRing[b.B] = true
		}
	}

	cyclomatic := len(m.Bonds) - len(m.Atoms) + len(m.Components())
	if cyclomatic <= 0 {
		return info
	}

	type candidate struct {
		atoms []int
		bonds []int
		key   string
	}
	seen := map[string]bool{}
	var candidates []candidate
	for bi := range m.Bonds {
		if !info.bondInRing[bi] {
			continue
		}
		atoms, bonds := shortestCycleThrough(m, bi, info.bondInRing)
		if atoms == nil {
			continue
		}
		sorted := append([]int(nil), bonds...)
		sort.Ints(sorted)
		parts := make([]string, len(sorted))
		for i, b := range sorted {
			parts[i] = strconv.Itoa(b)
		}
		key := strings.Join(parts, ",")
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, candidate{atoms: atoms, bonds: bonds, key: key})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].bonds) != len(candidates[j].bonds) {
			return len(candidates[i].bonds) < len(candidates[j].bonds)
		}
		return candidates[i].key < candidates[j].key
	})

	basis := newGF2Basis(len(m.Bonds))
	for _, c := range candidates {
		if len(info.rings) == cyclomatic {
			break
		}
		if basis.add(c.bonds) {
			info.rings = append(info.rings, c.atoms)
			info.ringBonds = append(info.ringBonds, c.bonds)
		}
	}
	return info
}

// findBridges marks bonds whose removal disconnects the graph.
func findBridges(m *Molecule) []bool {
	n := len(m.Atoms)
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	bridges := make([]bool, len(m.Bonds))
	timer := 0

	var dfs func(u, parentBond int)
	dfs = func(u, parentBond int) {
		disc[u] = timer
		low[u] = timer
		timer++
		for _, bi := range m.adj[u] {
			if bi == parentBond {
				continue
			}
			v := m.Bonds[bi].Other(u)
			if disc[v] == -1 {
				dfs(v, bi)
				if low[v] < low[u] {
					low[u] = low[v]
				}
				if low[v] > disc[u] {
					bridges[bi] = true
				}
			} else if disc[v] < low[u] {
				low[u] = disc[v]
			}
		}
	}
	for i := 0; i < n; i++ {
		if disc[i] == -1 {
			dfs(i, -1)
		}
	}
	return bridges
}

// shortestCycleThrough finds the smallest cycle containing bond bi using only ring bonds.
func shortestCycleThrough(m *Molecule, bi int, ringBond []bool) ([]int, []int) {
	start, goal := m.Bonds[bi].A, m.Bonds[bi].B
	parent := map[int]int{start: -1}
	parentBond := map[int]int{}
	queue := []int{start}
	found := false
	for len(queue) > 0 && !found {
		u := queue[0]
		queue = queue[1:]
		for _, b := range m.adj[u] {
			if b == bi || !ringBond[b] {
				continue
			}
			v := m.Bonds[b].Other(u)
			if _, ok := parent[v]; ok {
				continue
			}
			parent[v] = u
			parentBond[v] = b
			if v == goal {
				found = true
				break
			}
			queue = append(queue, v)
		}
	}
	if !found {
		return nil, nil
	}

	atoms := []int{}
	bonds := []int{bi}
	for v := goal; v != -1; v = parent[v] {
		atoms = append(atoms, v)
		if v != start {
			bonds = append(bonds, parentBond[v])
		}
	}
	return atoms, bonds
}

type gf2Basis struct {
	words int
	rows  [][]uint64
	pivot []int
}

func newGF2Basis(n int) *gf2Basis {
	return &gf2Basis{words: (n + 63) / 64}
}

// add inserts the bond set and reports whether it was independent of the basis.
func (g *gf2Basis) add(bonds []int) bool {
	vec := make([]uint64, g.words)
	for _, b := range bonds {
		vec[b/64] ^= 1 << (uint(b) % 64)
	}
	for i, row := range g.rows {
		p := g.pivot[i]
		if vec[p/64]&(1<<(uint(p)%64)) != 0 {
			for w := range vec {
				vec[w] ^= row[w]
			}
		}
	}
	for w, word := range vec {
		if word == 0 {
			continue
		}
		bit := 0
		for word&(1<<uint(bit)) == 0 {
			bit++
		}
		g.rows = append(g.rows, vec)
		g.pivot = append(g.pivot, w*64+bit)
		return true
	}
	return false
}
