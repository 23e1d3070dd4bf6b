package cachekey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilfeat/internal/domain"
)

var imidazolium = domain.MoleculeIdentity{Canonical: "CCn1cc[n+](C)c1"}

var dg = map[string]string{"algorithm": "ilfeat-dg/1", "tolerance": "0.25", "embedder.iterations": "4000"}

func atSeed(v int64) *Provenance { return &Provenance{Seed: v, Geometry: dg} }

func mustDerive(t *testing.T, id domain.MoleculeIdentity, gen, version string, cfg map[string]string, conformer *Provenance) domain.CacheKey {
	t.Helper()
	key, err := Derive(id, gen, version, cfg, conformer)
	require.NoError(t, err)
	return key
}

func TestDerive_Deterministic(t *testing.T) {
	cfg := map[string]string{"a": "1", "b": "2"}
	k1 := mustDerive(t, imidazolium, "geometric", "1", cfg, atSeed(42))
	k2 := mustDerive(t, imidazolium, "geometric", "1", map[string]string{"b": "2", "a": "1"}, atSeed(42))

	assert.Equal(t, k1, k2)
	assert.Len(t, k1.Hash, 64)
	assert.Equal(t, "geometric", k1.Generator)
	assert.Equal(t, "1", k1.Version)
}

func TestDerive_Sensitivity(t *testing.T) {
	base := mustDerive(t, imidazolium, "geometric", "1", map[string]string{"radius": "1.4"}, atSeed(42))

	variants := map[string]domain.CacheKey{
		"version":  mustDerive(t, imidazolium, "geometric", "2", map[string]string{"radius": "1.4"}, atSeed(42)),
		"config":   mustDerive(t, imidazolium, "geometric", "1", map[string]string{"radius": "1.5"}, atSeed(42)),
		"seed":     mustDerive(t, imidazolium, "geometric", "1", map[string]string{"radius": "1.4"}, atSeed(43)),
		"no seed":  mustDerive(t, imidazolium, "geometric", "1", map[string]string{"radius": "1.4"}, nil),
		"hydrogen": mustDerive(t, domain.MoleculeIdentity{Canonical: imidazolium.Canonical, ExplicitHydrogens: true}, "geometric", "1", map[string]string{"radius": "1.4"}, atSeed(42)),
		"molecule": mustDerive(t, domain.MoleculeIdentity{Canonical: "F[B-](F)(F)F"}, "geometric", "1", map[string]string{"radius": "1.4"}, atSeed(42)),
		"id":       mustDerive(t, imidazolium, "topological", "1", map[string]string{"radius": "1.4"}, atSeed(42)),
	}
	for name, key := range variants {
		assert.NotEqual(t, base.Hash, key.Hash, name)
	}
}

func TestDerive_ConformerProvenance(t *testing.T) {
	cfg := map[string]string{"radius": "1.4"}
	base := mustDerive(t, imidazolium, "geometric", "1", cfg, atSeed(42))

	with := func(k, v string) *Provenance {
		g := map[string]string{}
		for gk, gv := range dg {
			g[gk] = gv
		}
		g[k] = v
		return &Provenance{Seed: 42, Geometry: g}
	}
	variants := map[string]domain.CacheKey{
		"algorithm":  mustDerive(t, imidazolium, "geometric", "1", cfg, with("algorithm", "other-dg/2")),
		"tolerance":  mustDerive(t, imidazolium, "geometric", "1", cfg, with("tolerance", "0.3")),
		"iterations": mustDerive(t, imidazolium, "geometric", "1", cfg, with("embedder.iterations", "500")),
	}
	for name, key := range variants {
		assert.NotEqual(t, base.Hash, key.Hash, name)
	}
	assert.Equal(t, base, mustDerive(t, imidazolium, "geometric", "1", cfg, with("tolerance", "0.25")))
}

type stubGen struct{ conformer bool }

func (g stubGen) ID() string                { return "stub" }
func (g stubGen) Version() string           { return "1" }
func (g stubGen) Config() map[string]string { return nil }
func (g stubGen) Names() []string           { return nil }
func (g stubGen) RequiresConformer() bool   { return g.conformer }
func (g stubGen) Compute(context.Context, domain.MoleculeIdentity, *domain.Conformer) (domain.DescriptorVector, error) {
	return domain.DescriptorVector{}, nil
}

func TestForGenerator_ProvenanceOnlyForConformerGenerators(t *testing.T) {
	a := Provenance{Seed: 42, Geometry: dg}
	b := Provenance{Seed: 7, Geometry: map[string]string{"algorithm": "other-dg/2"}}

	k1, err := ForGenerator(imidazolium, stubGen{}, a)
	require.NoError(t, err)
	k2, err := ForGenerator(imidazolium, stubGen{}, b)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k1, err = ForGenerator(imidazolium, stubGen{conformer: true}, a)
	require.NoError(t, err)
	k2, err = ForGenerator(imidazolium, stubGen{conformer: true}, b)
	require.NoError(t, err)
	assert.NotEqual(t, k1.Hash, k2.Hash)
}

func TestCanonicalize(t *testing.T) {
	data, err := Canonicalize(map[string]interface{}{
		"z": 1.5,
		"a": []interface{}{"x", nil, true},
		"m": map[string]string{"k": "v\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",null,true],"m":{"k":"v\n"},"z":1.5}`, string(data))

	_, err = Canonicalize(struct{}{})
	assert.Error(t, err)
}

func TestNormalizeString_NFC(t *testing.T) {
	decomposed := "e\u0301"
	assert.Equal(t, "\u00e9", NormalizeString(decomposed))
}
