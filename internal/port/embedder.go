package port

import (
	"context"

	"ilfeat/internal/domain"
)

// CoordinateEmbedder places the atoms of a hydrogen-explicit graph in 3D space.
type CoordinateEmbedder interface {
	// Embed runs one embedding attempt with the given seed.
	Embed(ctx context.Context, graph domain.AtomGraph, seed int64) ([][3]float64, error)

	// Algorithm returns the name and version of the embedding algorithm.
	Algorithm() string

	// Config returns the parameters that change the embedded coordinates.
	Config() map[string]string
}

// GeometryBuilder turns a canonical identity into a validated conformer.
type GeometryBuilder interface {
	// Build tries seeds seed, seed+1, ... and fails with *domain.EmbeddingFailure
	// after attemptLimit attempts.
	Build(ctx context.Context, identity domain.MoleculeIdentity, seed int64, attemptLimit int) (*domain.Conformer, error)

	// Fingerprint describes everything besides the seed that shapes a built
	// conformer. Descriptors computed from conformers are keyed by it.
	Fingerprint() map[string]string
}
