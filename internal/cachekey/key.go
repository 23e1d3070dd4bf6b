// Package cachekey derives content-addressed keys for descriptor vectors.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"ilfeat/internal/domain"
	"ilfeat/internal/port"
)

// SchemaVersion is mixed into every key. Bumping it invalidates all keys.
const SchemaVersion = "2"

// Provenance describes how the conformer behind a vector was produced: the
// requested seed and the geometry builder's fingerprint.
type Provenance struct {
	Seed     int64
	Geometry map[string]string
}

// Derive hashes every input that determines a generator's output for identity.
// conformer is nil for generators that do not consume a conformer.
func Derive(identity domain.MoleculeIdentity, generatorID, version string, config map[string]string, conformer *Provenance) (domain.CacheKey, error) {
	if config == nil {
		config = map[string]string{}
	}
	var conf interface{}
	if conformer != nil {
		geometry := conformer.Geometry
		if geometry == nil {
			geometry = map[string]string{}
		}
		conf = map[string]interface{}{
			"seed":     conformer.Seed,
			"geometry": geometry,
		}
	}

	fields := map[string]interface{}{
		"_ilfeat_key_schema": SchemaVersion,
		"identity": map[string]interface{}{
			"canonical":  identity.Canonical,
			"explicit_h": identity.ExplicitHydrogens,
		},
		"generator": map[string]interface{}{
			"id":      generatorID,
			"version": version,
			"config":  config,
		},
		"conformer": conf,
	}

	data, err := Canonicalize(fields)
	if err != nil {
		return domain.CacheKey{}, fmt.Errorf("failed to canonicalize cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return domain.CacheKey{
		Hash:      hex.EncodeToString(sum[:]),
		Generator: generatorID,
		Version:   version,
	}, nil
}

// ForGenerator derives the key of gen's output. The conformer provenance only
// takes part when gen consumes a conformer.
func ForGenerator(identity domain.MoleculeIdentity, gen port.Generator, conformer Provenance) (domain.CacheKey, error) {
	var p *Provenance
	if gen.RequiresConformer() {
		p = &conformer
	}
	return Derive(identity, gen.ID(), gen.Version(), gen.Config(), p)
}
