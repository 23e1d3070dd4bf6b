package descriptor

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilfeat/internal/adapter/chem"
	"ilfeat/internal/domain"
)

func canonical(t *testing.T, smiles string) domain.MoleculeIdentity {
	t.Helper()
	id, err := chem.Canonicalize(smiles)
	require.NoError(t, err)
	return id
}

func value(t *testing.T, vec domain.DescriptorVector, name string) domain.Value {
	t.Helper()
	v, ok := vec.Get(name)
	require.True(t, ok, "descriptor %s not present", name)
	return v
}

func assertFloat(t *testing.T, vec domain.DescriptorVector, name string, want float64) {
	t.Helper()
	v := value(t, vec, name)
	if assert.True(t, v.Valid, "%s is missing", name) {
		assert.InDelta(t, want, v.Float, 1e-4, name)
	}
}

func assertMissing(t *testing.T, vec domain.DescriptorVector, name string) {
	t.Helper()
	assert.True(t, value(t, vec, name).IsMissing(), "%s should be missing", name)
}

func TestTopological_DeclaredNames(t *testing.T) {
	gen := NewTopological()
	assert.IsIncreasing(t, gen.Names())
	assert.False(t, gen.RequiresConformer())

	for _, smiles := range []string{"CCO", "[Cl-]", "F[B-](F)(F)F", "CCn1cc[n+](C)c1"} {
		vec, err := gen.Compute(context.Background(), canonical(t, smiles), nil)
		require.NoError(t, err, smiles)
		assert.Equal(t, gen.Names(), vec.Names(), smiles)
		assert.Equal(t, TopologicalID, vec.Generator())
	}
}

func TestTopological_Ethanol(t *testing.T) {
	vec, err := NewTopological().Compute(context.Background(), canonical(t, "OCC"), nil)
	require.NoError(t, err)

	assertFloat(t, vec, "heavy_atom_count", 3)
	assertFloat(t, vec, "atom_count", 9)
	assertFloat(t, vec, "bond_count", 2)
	assertFloat(t, vec, "mol_wt", 46.069)
	assertFloat(t, vec, "wiener_index", 4)
	assertFloat(t, vec, "chi0", 2+1/math.Sqrt2)
	assertFloat(t, vec, "chi1", math.Sqrt2)
	assertFloat(t, vec, "kappa1", 3)
	assertFloat(t, vec, "kappa2", 2)
	assertMissing(t, vec, "kappa3")
	assertFloat(t, vec, "balaban_j", 4/math.Sqrt(6))
	assertFloat(t, vec, "mean_eccentricity", 5.0/3)
	assertFloat(t, vec, "tpsa", 20.23)
	assertFloat(t, vec, "num_h_donors", 1)
	assertFloat(t, vec, "num_h_acceptors", 1)
	assertFloat(t, vec, "num_heteroatoms", 1)
	assertFloat(t, vec, "fraction_csp3", 1)
	assertFloat(t, vec, "num_valence_electrons", 20)
	assertFloat(t, vec, "ring_count", 0)
	assertFloat(t, vec, "num_rotatable_bonds", 0)
	assertFloat(t, vec, "formal_charge", 0)

	hi, lo := value(t, vec, "max_partial_charge"), value(t, vec, "min_partial_charge")
	require.True(t, hi.Valid && lo.Valid)
	assert.Greater(t, hi.Float, 0.0)
	assert.Less(t, lo.Float, 0.0)
}

func TestTopological_SingleAtom(t *testing.T) {
	vec, err := NewTopological().Compute(context.Background(), canonical(t, "[Cl-]"), nil)
	require.NoError(t, err)

	assertFloat(t, vec, "heavy_atom_count", 1)
	assertFloat(t, vec, "formal_charge", -1)
	assertFloat(t, vec, "wiener_index", 0)
	assertFloat(t, vec, "chi0", 0)
	assertFloat(t, vec, "chi0v", 1)
	assertMissing(t, vec, "kappa1")
	assertMissing(t, vec, "kappa2")
	assertMissing(t, vec, "balaban_j")
	assertMissing(t, vec, "fraction_csp3")
	assertFloat(t, vec, "max_partial_charge", -1)
	assertFloat(t, vec, "min_partial_charge", -1)
}

func TestTopological_Rings(t *testing.T) {
	benzene, err := NewTopological().Compute(context.Background(), canonical(t, "C1=CC=CC=C1"), nil)
	require.NoError(t, err)
	assertFloat(t, benzene, "ring_count", 1)
	assertFloat(t, benzene, "aromatic_ring_count", 1)
	assertFloat(t, benzene, "fraction_csp3", 0)
	// six 3-bond paths in a six-membered ring
	assertFloat(t, benzene, "kappa3", 3*16/36.0)

	emim, err := NewTopological().Compute(context.Background(), canonical(t, "CCn1cc[n+](C)c1"), nil)
	require.NoError(t, err)
	assertFloat(t, emim, "formal_charge", 1)
	assertFloat(t, emim, "aromatic_ring_count", 1)
	assertFloat(t, emim, "tpsa", 4.93+3.88)
	assertFloat(t, emim, "num_h_acceptors", 1)
}

func TestTopological_UnparameterizedCharges(t *testing.T) {
	vec, err := NewTopological().Compute(context.Background(), canonical(t, "F[B-](F)(F)F"), nil)
	require.NoError(t, err)
	assertMissing(t, vec, "max_partial_charge")
	assertMissing(t, vec, "min_partial_charge")
	assertFloat(t, vec, "heavy_atom_count", 5)
}

func TestTopological_Errors(t *testing.T) {
	_, err := NewTopological().Compute(context.Background(), domain.MoleculeIdentity{Canonical: "C1CC"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStructure)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewTopological().Compute(ctx, canonical(t, "CCO"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPaths(t *testing.T) {
	tests := []struct {
		smiles string
		p2, p3 int
	}{
		{"CCCC", 2, 1},
		{"CC(C)C", 3, 0},
		{"C1CC1", 3, 0},
		{"C1CCC1", 4, 4},
	}
	for _, tt := range tests {
		m, err := chem.ParseSMILES(tt.smiles)
		require.NoError(t, err)
		g := newHeavyGraph(m)
		assert.Equal(t, tt.p2, g.paths(2), "%s P2", tt.smiles)
		assert.Equal(t, tt.p3, g.paths(3), "%s P3", tt.smiles)
	}
}
