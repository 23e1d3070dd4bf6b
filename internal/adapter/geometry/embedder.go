// Package geometry turns canonical identities into seeded 3D conformers.
package geometry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/domain"
)

// Algorithm is the name and version of the distance-geometry embedder. Any
// change to its numerics must bump the version.
const Algorithm = "ilfeat-dg/1"

const (
	defaultIterations = 4000
	nonBondedScale    = 0.55
	convergedEnergy   = 1e-8
)

// BondTarget returns the ideal length in Å of a bond between two elements.
func BondTarget(a, b string, order float64) float64 {
	ea, okA := chem.LookupElement(a)
	eb, okB := chem.LookupElement(b)
	if !okA || !okB {
		return 1.5
	}
	d := ea.CovalentRadius + eb.CovalentRadius
	switch {
	case order >= 3:
		d *= 0.78
	case order >= 2:
		d *= 0.87
	case order > 1:
		d *= 0.93
	}
	return d
}

type restraint struct {
	i, j         int
	lower, upper float64
}

// DistanceGeometry embeds a graph by minimising violations of bond lengths,
// 1-3 distances from ideal angles and non-bonded lower bounds, starting from
// random coordinates drawn from the seed.
type DistanceGeometry struct {
	Iterations int
}

func NewDistanceGeometry() *DistanceGeometry {
	return &DistanceGeometry{Iterations: defaultIterations}
}

func (d *DistanceGeometry) Algorithm() string { return Algorithm }

func (d *DistanceGeometry) Config() map[string]string {
	iterations := d.Iterations
	if iterations <= 0 {
		iterations = defaultIterations
	}
	return map[string]string{"iterations": strconv.Itoa(iterations)}
}

func (d *DistanceGeometry) Embed(ctx context.Context, g domain.AtomGraph, seed int64) ([][3]float64, error) {
	n := len(g.Elements)
	switch n {
	case 0:
		return nil, fmt.Errorf("cannot embed an empty graph")
	case 1:
		return [][3]float64{{0, 0, 0}}, nil
	}

	restraints := buildRestraints(g)
	rng := rand.New(rand.NewSource(seed))
	box := 2*math.Cbrt(float64(n)) + 1
	x := make([][3]float64, n)
	for i := range x {
		for k := 0; k < 3; k++ {
			x[i][k] = (rng.Float64() - 0.5) * box
		}
	}

	iterations := d.Iterations
	if iterations <= 0 {
		iterations = defaultIterations
	}

	step := 0.05
	grad := make([][3]float64, n)
	trial := make([][3]float64, n)
	energy := stress(x, restraints, grad)
	for it := 0; it < iterations && energy > convergedEnergy && step > 1e-10; it++ {
		if it%200 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for i := range x {
			for k := 0; k < 3; k++ {
				trial[i][k] = x[i][k] - step*grad[i][k]
			}
		}
		nextGrad := make([][3]float64, n)
		next := stress(trial, restraints, nextGrad)
		if next < energy {
			copy(x, trial)
			grad, energy = nextGrad, next
			step = math.Min(step*1.2, 0.5)
		} else {
			step *= 0.5
		}
	}

	var c [3]float64
	for i := range x {
		for k := 0; k < 3; k++ {
			c[k] += x[i][k] / float64(n)
		}
	}
	for i := range x {
		for k := 0; k < 3; k++ {
			x[i][k] -= c[k]
		}
	}
	return x, nil
}

func buildRestraints(g domain.AtomGraph) []restraint {
	n := len(g.Elements)
	type pair struct{ i, j int }
	key := func(i, j int) pair {
		if i > j {
			i, j = j, i
		}
		return pair{i, j}
	}

	adj := make([][]int, n)
	bonds := map[pair]float64{}
	for bi, b := range g.Bonds {
		adj[b.From] = append(adj[b.From], bi)
		adj[b.To] = append(adj[b.To], bi)
		bonds[key(b.From, b.To)] = BondTarget(g.Elements[b.From], g.Elements[b.To], b.Order)
	}

	set := map[pair]restraint{}
	for p, d := range bonds {
		set[p] = restraint{i: p.i, j: p.j, lower: d, upper: d}
	}

	for center := 0; center < n; center++ {
		theta, exact := idealAngle(g, adj[center])
		nbs := adj[center]
		for x := 0; x < len(nbs); x++ {
			for y := x + 1; y < len(nbs); y++ {
				bx, by := g.Bonds[nbs[x]], g.Bonds[nbs[y]]
				a := otherEnd(bx, center)
				b := otherEnd(by, center)
				p := key(a, b)
				if _, ok := set[p]; ok {
					continue
				}
				la := bonds[key(center, a)]
				lb := bonds[key(center, b)]
				d := math.Sqrt(la*la + lb*lb - 2*la*lb*math.Cos(theta))
				r := restraint{i: p.i, j: p.j, lower: d, upper: d}
				if !exact {
					r.upper = math.Inf(1)
				}
				set[p] = r
			}
		}
	}

	out := make([]restraint, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if r, ok := set[pair{i, j}]; ok {
				out = append(out, r)
				continue
			}
			out = append(out, restraint{i: i, j: j, lower: nonBondedLower(g.Elements[i], g.Elements[j]), upper: math.Inf(1)})
		}
	}
	return out
}

func otherEnd(b domain.ConformerBond, i int) int {
	if b.From == i {
		return b.To
	}
	return b.From
}

// idealAngle returns the bond angle at a centre from its bond orders. exact is
// false for hypervalent centres, where the angle is only a lower bound.
func idealAngle(g domain.AtomGraph, bonds []int) (float64, bool) {
	doubles, multiple := 0, false
	for _, bi := range bonds {
		switch o := g.Bonds[bi].Order; {
		case o >= 3:
			return math.Pi, true
		case o >= 2:
			doubles++
		case o > 1:
			multiple = true
		}
	}
	switch {
	case len(bonds) > 4:
		return math.Pi / 2, false
	case doubles >= 2 && len(bonds) == 2:
		return math.Pi, true
	case len(bonds) == 4:
		return 109.47 * math.Pi / 180, true
	case doubles > 0 || multiple:
		return 2 * math.Pi / 3, true
	}
	return 109.47 * math.Pi / 180, true
}

func nonBondedLower(a, b string) float64 {
	ea, okA := chem.LookupElement(a)
	eb, okB := chem.LookupElement(b)
	if !okA || !okB {
		return 1.5
	}
	return nonBondedScale * (ea.VDWRadius + eb.VDWRadius)
}

// stress returns the restraint violation energy of x and writes its gradient.
func stress(x [][3]float64, rs []restraint, grad [][3]float64) float64 {
	for i := range grad {
		grad[i] = [3]float64{}
	}
	e := 0.0
	for _, r := range rs {
		var d [3]float64
		for k := 0; k < 3; k++ {
			d[k] = x[r.i][k] - x[r.j][k]
		}
		dist := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
		if dist < 1e-9 {
			dist = 1e-9
		}
		var diff float64
		switch {
		case dist < r.lower:
			diff = dist - r.lower
		case dist > r.upper:
			diff = dist - r.upper
		default:
			continue
		}
		e += diff * diff
		f := 2 * diff / dist
		for k := 0; k < 3; k++ {
			grad[r.i][k] += f * d[k]
			grad[r.j][k] -= f * d[k]
		}
	}
	return e
}
