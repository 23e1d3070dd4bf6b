package descriptor

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilfeat/internal/adapter/geometry"
	"ilfeat/internal/domain"
)

func conformer(elements []string, charges []int, coords [][3]float64, bonds ...domain.ConformerBond) *domain.Conformer {
	return &domain.Conformer{
		AtomGraph: domain.AtomGraph{Elements: elements, FormalCharges: charges, Bonds: bonds},
		Coords:    coords,
	}
}

func TestGeometric_RequiresConformer(t *testing.T) {
	gen := NewGeometric(0, 0)
	assert.True(t, gen.RequiresConformer())

	_, err := gen.Compute(context.Background(), canonical(t, "CCO"), nil)
	var mg *domain.MissingGeometryError
	require.ErrorAs(t, err, &mg)
	assert.Equal(t, GeometricID, mg.Generator)
}

func TestGeometric_Config(t *testing.T) {
	assert.Equal(t, map[string]string{"surface_points": "256", "grid_spacing": "0.2"}, NewGeometric(0, 0).Config())
	assert.Equal(t, map[string]string{"surface_points": "64", "grid_spacing": "0.5"}, NewGeometric(64, 0.5).Config())
}

func TestGeometric_SingleAtom(t *testing.T) {
	c := conformer([]string{"Cl"}, []int{-1}, [][3]float64{{0, 0, 0}})
	vec, err := NewGeometric(0, 0.1).Compute(context.Background(), canonical(t, "[Cl-]"), c)
	require.NoError(t, err)
	assert.Equal(t, NewGeometric(0, 0).Names(), vec.Names())

	r := 1.75
	assertFloat(t, vec, "radius_of_gyration", 0)
	assertFloat(t, vec, "pmi3", 0)
	assertFloat(t, vec, "max_extent", 0)
	assertFloat(t, vec, "vdw_surface_area", 4*math.Pi*r*r)
	assertFloat(t, vec, "dipole_moment", 0)
	assertMissing(t, vec, "npr1")
	assertMissing(t, vec, "npr2")
	assertMissing(t, vec, "asphericity")
	assertMissing(t, vec, "spherocity_index")
	assertMissing(t, vec, "charge_span")

	volume := value(t, vec, "vdw_volume")
	require.True(t, volume.Valid)
	assert.InEpsilon(t, 4.0/3*math.Pi*r*r*r, volume.Float, 0.05)
}

func TestGeometric_LinearMolecule(t *testing.T) {
	d := 0.74
	c := conformer([]string{"H", "H"}, []int{0, 0}, [][3]float64{{-d / 2, 0, 0}, {d / 2, 0, 0}},
		domain.ConformerBond{From: 0, To: 1, Order: 1})
	vec, err := NewGeometric(0, 0).Compute(context.Background(), canonical(t, "[H][H]"), c)
	require.NoError(t, err)

	moment := 2 * 1.008 * (d / 2) * (d / 2)
	assertFloat(t, vec, "pmi1", 0)
	assertFloat(t, vec, "pmi2", moment)
	assertFloat(t, vec, "pmi3", moment)
	assertFloat(t, vec, "npr1", 0)
	assertFloat(t, vec, "npr2", 1)
	assertFloat(t, vec, "eccentricity", 1)
	assertFloat(t, vec, "max_extent", d)
	assertFloat(t, vec, "radius_of_gyration", d/2)
	assertFloat(t, vec, "spherocity_index", 0)
	// identical atoms share no charge
	assertFloat(t, vec, "dipole_moment", 0)
}

func TestGeometric_SeparatedAtoms(t *testing.T) {
	c := conformer([]string{"Cl", "Cl"}, []int{0, 0}, [][3]float64{{-10, 0, 0}, {10, 0, 0}})
	vec, err := NewGeometric(0, 0).Compute(context.Background(), canonical(t, "ClCl"), c)
	require.NoError(t, err)
	assertFloat(t, vec, "vdw_surface_area", 2*4*math.Pi*1.75*1.75)
}

func TestGeometric_EmbeddedIons(t *testing.T) {
	builder := geometry.NewBuilder(geometry.NewDistanceGeometry())
	gen := NewGeometric(0, 0)

	for _, smiles := range []string{"CCn1cc[n+](C)c1", "F[B-](F)(F)F", "FC(F)(F)S(=O)(=O)[N-]S(=O)(=O)C(F)(F)F"} {
		t.Run(smiles, func(t *testing.T) {
			id := canonical(t, smiles)
			c, err := builder.Build(context.Background(), id, 42, 10)
			require.NoError(t, err)

			first, err := gen.Compute(context.Background(), id, c)
			require.NoError(t, err)
			second, err := gen.Compute(context.Background(), id, c)
			require.NoError(t, err)
			assert.True(t, first.Equal(second), "same conformer must give identical descriptors")

			npr1, npr2 := value(t, first, "npr1"), value(t, first, "npr2")
			require.True(t, npr1.Valid && npr2.Valid)
			assert.LessOrEqual(t, npr1.Float, npr2.Float+1e-9)
			assert.LessOrEqual(t, npr2.Float, 1+1e-9)
			assert.GreaterOrEqual(t, npr1.Float+npr2.Float, 1-1e-6)

			area, volume := value(t, first, "vdw_surface_area"), value(t, first, "vdw_volume")
			assert.Greater(t, area.Float, 0.0)
			assert.Greater(t, volume.Float, 0.0)
		})
	}
}

func TestGeometric_DipoleNeedsCharges(t *testing.T) {
	id := canonical(t, "F[B-](F)(F)F")
	c, err := geometry.NewBuilder(geometry.NewDistanceGeometry()).Build(context.Background(), id, 1, 10)
	require.NoError(t, err)

	vec, err := NewGeometric(0, 0).Compute(context.Background(), id, c)
	require.NoError(t, err)
	assertMissing(t, vec, "dipole_moment")
	assertMissing(t, vec, "charge_span")
}

func TestGeometric_BadConformer(t *testing.T) {
	c := conformer([]string{"C", "C"}, []int{0, 0}, [][3]float64{{0, 0, 0}})
	_, err := NewGeometric(0, 0).Compute(context.Background(), canonical(t, "CC"), c)
	assert.Error(t, err)

	c = conformer([]string{"Xx"}, []int{0}, [][3]float64{{0, 0, 0}})
	_, err = NewGeometric(0, 0).Compute(context.Background(), canonical(t, "C"), c)
	assert.Error(t, err)
}

func TestGoldenSpiral(t *testing.T) {
	for _, u := range goldenSpiral(100) {
		assert.InDelta(t, 1, math.Sqrt(u[0]*u[0]+u[1]*u[1]+u[2]*u[2]), 1e-12)
	}
}
