// Package descriptor holds the descriptor generators: graph-based topological
// indices, conformer-based geometric descriptors and wrapped external tools.
package descriptor

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/domain"
)

const (
	TopologicalID      = "topological"
	topologicalVersion = "1"
)

var topologicalNames = []string{
	"aromatic_ring_count",
	"atom_count",
	"balaban_j",
	"bond_count",
	"chi0",
	"chi0v",
	"chi1",
	"chi1v",
	"formal_charge",
	"fraction_csp3",
	"heavy_atom_count",
	"heavy_atom_mol_wt",
	"kappa1",
	"kappa2",
	"kappa3",
	"max_partial_charge",
	"mean_eccentricity",
	"min_partial_charge",
	"mol_wt",
	"num_h_acceptors",
	"num_h_donors",
	"num_heteroatoms",
	"num_rotatable_bonds",
	"num_valence_electrons",
	"ring_count",
	"tpsa",
	"wiener_index",
}

// Topological computes descriptors of the heavy-atom graph.
type Topological struct{}

func NewTopological() *Topological {
	return &Topological{}
}

func (t *Topological) ID() string                { return TopologicalID }
func (t *Topological) Version() string           { return topologicalVersion }
func (t *Topological) Config() map[string]string { return map[string]string{} }
func (t *Topological) RequiresConformer() bool   { return false }

func (t *Topological) Names() []string {
	out := make([]string, len(topologicalNames))
	copy(out, topologicalNames)
	return out
}

func (t *Topological) Compute(ctx context.Context, identity domain.MoleculeIdentity, _ *domain.Conformer) (domain.DescriptorVector, error) {
	if err := ctx.Err(); err != nil {
		return domain.DescriptorVector{}, err
	}
	m, err := chem.ParseSMILES(identity.Canonical)
	if err != nil {
		return domain.DescriptorVector{}, err
	}

	g := newHeavyGraph(m)
	dist, err := g.distances(ctx)
	if err != nil {
		return domain.DescriptorVector{}, fmt.Errorf("failed to compute topological distances: %w", err)
	}

	v := map[string]domain.Value{
		"atom_count":            count(m.AtomCount()),
		"heavy_atom_count":      count(len(g.atoms)),
		"bond_count":            count(len(g.bonds)),
		"mol_wt":                domain.Float(m.MolWeight()),
		"heavy_atom_mol_wt":     domain.Float(heavyMolWeight(m)),
		"num_rotatable_bonds":   count(m.RotatableBonds()),
		"ring_count":            count(len(m.Rings())),
		"aromatic_ring_count":   count(aromaticRings(m)),
		"formal_charge":         count(m.NetCharge()),
		"num_valence_electrons": count(valenceElectrons(m)),
		"fraction_csp3":         fractionCSP3(m),
		"tpsa":                  domain.Float(tpsa(m)),
	}
	donors, acceptors, hetero := hBondCounts(m)
	v["num_h_donors"] = count(donors)
	v["num_h_acceptors"] = count(acceptors)
	v["num_heteroatoms"] = count(hetero)

	v["chi0"], v["chi1"] = g.chi(func(i int) float64 { return float64(g.degree(i)) })
	v["chi0v"], v["chi1v"] = g.chi(func(i int) float64 { return valenceDelta(&m.Atoms[g.atoms[i]]) })

	v["kappa1"], v["kappa2"], v["kappa3"] = g.kappa()
	v["wiener_index"], v["balaban_j"], v["mean_eccentricity"] = distanceIndices(g, dist)

	v["max_partial_charge"], v["min_partial_charge"] = domain.Missing(), domain.Missing()
	if q, ok := chem.PartialCharges(m); ok && len(q) > 0 {
		lo, hi := q[0], q[0]
		for _, c := range q[1:] {
			lo, hi = math.Min(lo, c), math.Max(hi, c)
		}
		v["max_partial_charge"], v["min_partial_charge"] = domain.Float(hi), domain.Float(lo)
	}

	return domain.NewDescriptorVector(TopologicalID, topologicalVersion, v), nil
}

func count(n int) domain.Value {
	return domain.Float(float64(n))
}

// heavyGraph is the hydrogen-suppressed graph with its own dense atom indices.
type heavyGraph struct {
	atoms []int // heavy index -> molecule index
	bonds [][2]int
	adj   [][]int
}

func newHeavyGraph(m *chem.Molecule) *heavyGraph {
	g := &heavyGraph{}
	index := make([]int, len(m.Atoms))
	for i := range m.Atoms {
		index[i] = -1
		if m.Atoms[i].Element.Number != 1 {
			index[i] = len(g.atoms)
			g.atoms = append(g.atoms, i)
		}
	}
	g.adj = make([][]int, len(g.atoms))
	for _, b := range m.Bonds {
		a, c := index[b.A], index[b.B]
		if a < 0 || c < 0 {
			continue
		}
		g.bonds = append(g.bonds, [2]int{a, c})
		g.adj[a] = append(g.adj[a], c)
		g.adj[c] = append(g.adj[c], a)
	}
	return g
}

func (g *heavyGraph) degree(i int) int {
	return len(g.adj[i])
}

// distances returns the topological distance matrix. Unreachable pairs are -1.
func (g *heavyGraph) distances(ctx context.Context) ([][]int, error) {
	n := len(g.atoms)
	lg, err := core.NewGraph()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if err := lg.AddVertex(strconv.Itoa(i)); err != nil {
			return nil, err
		}
	}
	for _, b := range g.bonds {
		if _, err := lg.AddEdge(strconv.Itoa(b[0]), strconv.Itoa(b[1]), 0); err != nil {
			return nil, err
		}
	}

	dist := make([][]int, n)
	for i := 0; i < n; i++ {
		res, err := bfs.BFS(lg, strconv.Itoa(i), bfs.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		dist[i] = make([]int, n)
		for j := range dist[i] {
			dist[i][j] = -1
		}
		for id, d := range res.Depth {
			j, err := strconv.Atoi(id)
			if err != nil {
				return nil, err
			}
			dist[i][j] = d
		}
	}
	return dist, nil
}

// chi returns the zero- and first-order connectivity indices for the given
// vertex weights. Vertices with non-positive weight contribute nothing.
func (g *heavyGraph) chi(delta func(int) float64) (domain.Value, domain.Value) {
	d := make([]float64, len(g.atoms))
	chi0 := 0.0
	for i := range d {
		d[i] = delta(i)
		if d[i] > 0 {
			chi0 += 1 / math.Sqrt(d[i])
		}
	}
	chi1 := 0.0
	for _, b := range g.bonds {
		if p := d[b[0]] * d[b[1]]; p > 0 {
			chi1 += 1 / math.Sqrt(p)
		}
	}
	return domain.Float(chi0), domain.Float(chi1)
}

// valenceDelta is the Kier-Hall valence vertex degree.
func valenceDelta(a *chem.Atom) float64 {
	zv := a.Element.Valence - a.Charge
	if a.Element.Valence == 0 {
		return 0
	}
	denom := a.Element.Number - zv - 1
	if denom <= 0 {
		return float64(zv - a.HCount)
	}
	return float64(zv-a.HCount) / float64(denom)
}

// kappa returns the unweighted Kier shape indices. They are missing when the
// graph has too few atoms or no paths of the needed length.
func (g *heavyGraph) kappa() (domain.Value, domain.Value, domain.Value) {
	a := float64(len(g.atoms))
	k1, k2, k3 := domain.Missing(), domain.Missing(), domain.Missing()

	if p1 := float64(len(g.bonds)); p1 > 0 {
		k1 = domain.Float(a * (a - 1) * (a - 1) / (p1 * p1))
	}
	if p2 := float64(g.paths(2)); a >= 3 && p2 > 0 {
		k2 = domain.Float((a - 1) * (a - 2) * (a - 2) / (p2 * p2))
	}
	if p3 := float64(g.paths(3)); a >= 4 && p3 > 0 {
		if len(g.atoms)%2 == 1 {
			k3 = domain.Float((a - 1) * (a - 3) * (a - 3) / (p3 * p3))
		} else {
			k3 = domain.Float((a - 3) * (a - 2) * (a - 2) / (p3 * p3))
		}
	}
	return k1, k2, k3
}

// paths counts the distinct simple paths with length bonds.
func (g *heavyGraph) paths(length int) int {
	visited := make([]bool, len(g.atoms))
	var walk func(i, depth int) int
	walk = func(i, depth int) int {
		if depth == length {
			return 1
		}
		visited[i] = true
		n := 0
		for _, nb := range g.adj[i] {
			if !visited[nb] {
				n += walk(nb, depth+1)
			}
		}
		visited[i] = false
		return n
	}

	total := 0
	for i := range g.atoms {
		total += walk(i, 0)
	}
	// every path is found once from each end
	return total / 2
}

// distanceIndices returns the Wiener index, the Balaban J index and the mean
// atom eccentricity.
func distanceIndices(g *heavyGraph, dist [][]int) (domain.Value, domain.Value, domain.Value) {
	n := len(g.atoms)
	if n == 0 {
		return domain.Missing(), domain.Missing(), domain.Missing()
	}

	wiener := 0
	sums := make([]float64, n)
	eccentricity := 0
	for i := 0; i < n; i++ {
		ecc := 0
		for j := 0; j < n; j++ {
			d := dist[i][j]
			if d <= 0 {
				continue
			}
			sums[i] += float64(d)
			if j > i {
				wiener += d
			}
			if d > ecc {
				ecc = d
			}
		}
		eccentricity += ecc
	}

	balaban := domain.Missing()
	bonds := len(g.bonds)
	if n >= 2 && bonds > 0 {
		cyclomatic := float64(bonds - n + components(g))
		s := 0.0
		for _, b := range g.bonds {
			s += 1 / math.Sqrt(sums[b[0]]*sums[b[1]])
		}
		balaban = domain.Float(float64(bonds) / (cyclomatic + 1) * s)
	}

	return count(wiener), balaban, domain.Float(float64(eccentricity) / float64(n))
}

func components(g *heavyGraph) int {
	seen := make([]bool, len(g.atoms))
	n := 0
	for start := range g.atoms {
		if seen[start] {
			continue
		}
		n++
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, nb := range g.adj[i] {
				if !seen[nb] {
					seen[nb] = true
					stack = append(stack, nb)
				}
			}
		}
	}
	return n
}

func heavyMolWeight(m *chem.Molecule) float64 {
	w := 0.0
	for i := range m.Atoms {
		if m.Atoms[i].Element.Number != 1 {
			w += m.Atoms[i].Element.Mass
		}
	}
	return w
}

func aromaticRings(m *chem.Molecule) int {
	n := 0
	for _, ring := range m.Rings() {
		aromatic := true
		for _, i := range ring {
			if !m.Atoms[i].Aromatic {
				aromatic = false
				break
			}
		}
		if aromatic {
			n++
		}
	}
	return n
}

func valenceElectrons(m *chem.Molecule) int {
	n := 0
	for i := range m.Atoms {
		n += m.Atoms[i].Element.Valence + m.Atoms[i].HCount - m.Atoms[i].Charge
	}
	return n
}

// fractionCSP3 is the share of carbons without multiple or aromatic bonds.
func fractionCSP3(m *chem.Molecule) domain.Value {
	carbons, sp3 := 0, 0
	for i := range m.Atoms {
		if m.Atoms[i].Element.Number != 6 {
			continue
		}
		carbons++
		saturated := !m.Atoms[i].Aromatic
		for _, bi := range m.BondsOf(i) {
			if m.Bonds[bi].Order != chem.BondSingle {
				saturated = false
			}
		}
		if saturated {
			sp3++
		}
	}
	if carbons == 0 {
		return domain.Missing()
	}
	return domain.Float(float64(sp3) / float64(carbons))
}

// hBondCounts uses the Lipinski definitions: donors are N and O carrying
// hydrogen, acceptors are N and O without a positive charge.
func hBondCounts(m *chem.Molecule) (donors, acceptors, hetero int) {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		switch a.Element.Number {
		case 1, 6:
			continue
		case 7, 8:
			if a.HCount > 0 {
				donors++
			}
			if a.Charge <= 0 {
				acceptors++
			}
		}
		hetero++
	}
	return donors, acceptors, hetero
}
