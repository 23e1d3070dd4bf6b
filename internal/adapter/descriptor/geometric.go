package descriptor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/katalvlaran/lvlath/matrix"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/domain"
)

const (
	GeometricID      = "geometric"
	geometricVersion = "1"

	DefaultSurfacePoints = 256
	DefaultGridSpacing   = 0.2 // Å

	// debyePerEAngstrom converts e·Å to Debye.
	debyePerEAngstrom = 4.80320
	eigenMaxIter      = 100
)

var geometricNames = []string{
	"asphericity",
	"charge_span",
	"dipole_moment",
	"eccentricity",
	"max_extent",
	"npr1",
	"npr2",
	"pmi1",
	"pmi2",
	"pmi3",
	"radius_of_gyration",
	"spherocity_index",
	"vdw_surface_area",
	"vdw_volume",
}

// Geometric computes shape, surface and charge-distribution descriptors from
// a conformer.
type Geometric struct {
	surfacePoints int
	gridSpacing   float64
}

func NewGeometric(surfacePoints int, gridSpacing float64) *Geometric {
	if surfacePoints <= 0 {
		surfacePoints = DefaultSurfacePoints
	}
	if gridSpacing <= 0 {
		gridSpacing = DefaultGridSpacing
	}
	return &Geometric{surfacePoints: surfacePoints, gridSpacing: gridSpacing}
}

func (g *Geometric) ID() string              { return GeometricID }
func (g *Geometric) Version() string         { return geometricVersion }
func (g *Geometric) RequiresConformer() bool { return true }

func (g *Geometric) Config() map[string]string {
	return map[string]string{
		"surface_points": strconv.Itoa(g.surfacePoints),
		"grid_spacing":   strconv.FormatFloat(g.gridSpacing, 'g', -1, 64),
	}
}

func (g *Geometric) Names() []string {
	out := make([]string, len(geometricNames))
	copy(out, geometricNames)
	return out
}

func (g *Geometric) Compute(ctx context.Context, identity domain.MoleculeIdentity, c *domain.Conformer) (domain.DescriptorVector, error) {
	if c == nil {
		return domain.DescriptorVector{}, &domain.MissingGeometryError{Generator: GeometricID, Identity: identity}
	}
	if err := ctx.Err(); err != nil {
		return domain.DescriptorVector{}, err
	}
	n := c.AtomCount()
	if n == 0 || len(c.Coords) != n {
		return domain.DescriptorVector{}, fmt.Errorf("conformer of %s has %d coordinates for %d atoms", identity, len(c.Coords), n)
	}

	masses := make([]float64, n)
	radii := make([]float64, n)
	for i, sym := range c.Elements {
		e, ok := chem.LookupElement(sym)
		if !ok {
			return domain.DescriptorVector{}, fmt.Errorf("conformer of %s has unknown element %q", identity, sym)
		}
		masses[i], radii[i] = e.Mass, e.VDWRadius
	}

	com := weightedCentre(c.Coords, masses)
	v := map[string]domain.Value{}

	totalMass, rg := 0.0, 0.0
	for i, p := range c.Coords {
		totalMass += masses[i]
		rg += masses[i] * sqDist(p, com)
	}
	v["radius_of_gyration"] = domain.Float(math.Sqrt(rg / totalMass))

	pmi, err := principalMoments(inertiaTensor(c.Coords, masses, com))
	if err != nil {
		return domain.DescriptorVector{}, fmt.Errorf("failed to diagonalize inertia tensor: %w", err)
	}
	v["pmi1"], v["pmi2"], v["pmi3"] = domain.Float(pmi[0]), domain.Float(pmi[1]), domain.Float(pmi[2])
	v["npr1"], v["npr2"] = domain.Missing(), domain.Missing()
	v["asphericity"], v["eccentricity"] = domain.Missing(), domain.Missing()
	if n > 1 && pmi[2] > 0 {
		v["npr1"] = domain.Float(pmi[0] / pmi[2])
		v["npr2"] = domain.Float(pmi[1] / pmi[2])
		sq := pmi[0]*pmi[0] + pmi[1]*pmi[1] + pmi[2]*pmi[2]
		v["asphericity"] = domain.Float(0.5 * (sqr(pmi[2]-pmi[1]) + sqr(pmi[2]-pmi[0]) + sqr(pmi[1]-pmi[0])) / sq)
		v["eccentricity"] = domain.Float(math.Sqrt(math.Max(0, pmi[2]*pmi[2]-pmi[0]*pmi[0])) / pmi[2])
	}

	v["spherocity_index"] = domain.Missing()
	if n > 1 {
		unit := make([]float64, n)
		for i := range unit {
			unit[i] = 1
		}
		centroid := weightedCentre(c.Coords, unit)
		cov, err := principalMoments(covariance(c.Coords, centroid))
		if err != nil {
			return domain.DescriptorVector{}, fmt.Errorf("failed to diagonalize covariance: %w", err)
		}
		if sum := cov[0] + cov[1] + cov[2]; sum > 0 {
			v["spherocity_index"] = domain.Float(3 * math.Max(0, cov[0]) / sum)
		}
	}

	extent := 0.0
	for i := range c.Coords {
		for j := i + 1; j < n; j++ {
			extent = math.Max(extent, math.Sqrt(sqDist(c.Coords[i], c.Coords[j])))
		}
	}
	v["max_extent"] = domain.Float(extent)

	if err := ctx.Err(); err != nil {
		return domain.DescriptorVector{}, err
	}
	v["vdw_surface_area"] = domain.Float(surfaceArea(c.Coords, radii, g.surfacePoints))
	v["vdw_volume"] = domain.Float(gridVolume(c.Coords, radii, g.gridSpacing))

	v["dipole_moment"], v["charge_span"] = domain.Missing(), domain.Missing()
	if q, ok := chem.GasteigerCharges(c.AtomGraph); ok {
		var mu [3]float64
		for i, p := range c.Coords {
			for k := 0; k < 3; k++ {
				mu[k] += q[i] * (p[k] - com[k])
			}
		}
		v["dipole_moment"] = domain.Float(debyePerEAngstrom * math.Sqrt(mu[0]*mu[0]+mu[1]*mu[1]+mu[2]*mu[2]))

		if n > 1 {
			lo, hi := 0, 0
			for i := range q {
				if q[i] < q[lo] {
					lo = i
				}
				if q[i] > q[hi] {
					hi = i
				}
			}
			v["charge_span"] = domain.Float(math.Sqrt(sqDist(c.Coords[lo], c.Coords[hi])))
		}
	}

	return domain.NewDescriptorVector(GeometricID, geometricVersion, v), nil
}

func weightedCentre(coords [][3]float64, w []float64) [3]float64 {
	var c [3]float64
	total := 0.0
	for i, p := range coords {
		total += w[i]
		for k := 0; k < 3; k++ {
			c[k] += w[i] * p[k]
		}
	}
	for k := 0; k < 3; k++ {
		c[k] /= total
	}
	return c
}

func inertiaTensor(coords [][3]float64, masses []float64, com [3]float64) [3][3]float64 {
	var t [3][3]float64
	for i, p := range coords {
		d := [3]float64{p[0] - com[0], p[1] - com[1], p[2] - com[2]}
		r2 := d[0]*d[0] + d[1]*d[1] + d[2]*d[2]
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				v := -d[a] * d[b]
				if a == b {
					v += r2
				}
				t[a][b] += masses[i] * v
			}
		}
	}
	return t
}

func covariance(coords [][3]float64, centroid [3]float64) [3][3]float64 {
	var t [3][3]float64
	for _, p := range coords {
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				t[a][b] += (p[a] - centroid[a]) * (p[b] - centroid[b])
			}
		}
	}
	n := float64(len(coords))
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			t[a][b] /= n
		}
	}
	return t
}

// principalMoments returns the eigenvalues of a symmetric 3x3 tensor in
// ascending order.
func principalMoments(t [3][3]float64) ([3]float64, error) {
	var out [3]float64
	m, err := matrix.NewDense(3, 3)
	if err != nil {
		return out, err
	}
	scale := 1.0
	for a := 0; a < 3; a++ {
		scale = math.Max(scale, math.Abs(t[a][a]))
		for b := 0; b < 3; b++ {
			// symmetrize exactly so the validation tolerance never trips
			v := t[a][b]
			if b < a {
				v = t[b][a]
			}
			if err := m.Set(a, b, v); err != nil {
				return out, err
			}
		}
	}

	vals, _, err := matrix.EigenSym(m, 1e-12*scale, eigenMaxIter)
	if err != nil {
		return out, err
	}
	sort.Float64s(vals)
	copy(out[:], vals)
	for k := range out {
		// round-off can leave tiny negative moments for planar or linear shapes
		if out[k] < 0 && out[k] > -1e-9*scale {
			out[k] = 0
		}
	}
	return out, nil
}

// surfaceArea is the Shrake-Rupley van der Waals surface with no probe.
func surfaceArea(coords [][3]float64, radii []float64, points int) float64 {
	sphere := goldenSpiral(points)
	total := 0.0
	for i, c := range coords {
		r := radii[i]
		exposed := 0
		for _, u := range sphere {
			p := [3]float64{c[0] + r*u[0], c[1] + r*u[1], c[2] + r*u[2]}
			buried := false
			for j, o := range coords {
				if j != i && sqDist(p, o) < radii[j]*radii[j] {
					buried = true
					break
				}
			}
			if !buried {
				exposed++
			}
		}
		total += 4 * math.Pi * r * r * float64(exposed) / float64(len(sphere))
	}
	return total
}

// goldenSpiral returns n evenly spread unit vectors.
func goldenSpiral(n int) [][3]float64 {
	out := make([][3]float64, n)
	inc := math.Pi * (3 - math.Sqrt(5))
	for k := range out {
		z := 1 - (2*float64(k)+1)/float64(n)
		r := math.Sqrt(1 - z*z)
		phi := float64(k) * inc
		out[k] = [3]float64{r * math.Cos(phi), r * math.Sin(phi), z}
	}
	return out
}

// gridVolume counts the grid cells whose centres fall inside the union of
// atomic spheres.
func gridVolume(coords [][3]float64, radii []float64, spacing float64) float64 {
	var lo, hi [3]float64
	for k := 0; k < 3; k++ {
		lo[k], hi[k] = math.Inf(1), math.Inf(-1)
	}
	for i, c := range coords {
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], c[k]-radii[i])
			hi[k] = math.Max(hi[k], c[k]+radii[i])
		}
	}
	var dim [3]int
	for k := 0; k < 3; k++ {
		dim[k] = int(math.Ceil((hi[k]-lo[k])/spacing)) + 1
	}

	filled := make([]bool, dim[0]*dim[1]*dim[2])
	cells := 0
	for i, c := range coords {
		r2 := radii[i] * radii[i]
		var from, to [3]int
		for k := 0; k < 3; k++ {
			from[k] = max(0, int(math.Floor((c[k]-radii[i]-lo[k])/spacing)))
			to[k] = min(dim[k]-1, int(math.Ceil((c[k]+radii[i]-lo[k])/spacing)))
		}
		for x := from[0]; x <= to[0]; x++ {
			for y := from[1]; y <= to[1]; y++ {
				for z := from[2]; z <= to[2]; z++ {
					idx := (x*dim[1]+y)*dim[2] + z
					if filled[idx] {
						continue
					}
					p := [3]float64{
						lo[0] + (float64(x)+0.5)*spacing,
						lo[1] + (float64(y)+0.5)*spacing,
						lo[2] + (float64(z)+0.5)*spacing,
					}
					if sqDist(p, c) <= r2 {
						filled[idx] = true
						cells++
					}
				}
			}
		}
	}
	return float64(cells) * spacing * spacing * spacing
}

func sqDist(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx + dy*dy + dz*dz
}

func sqr(x float64) float64 { return x * x }
