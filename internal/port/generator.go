package port

import (
	"context"

	"ilfeat/internal/domain"
)

// Generator computes a flat set of named descriptors for one molecule.
type Generator interface {
	// ID returns the generator identifier, e.g. "topological".
	ID() string

	// Version changes whenever the computed values may change.
	Version() string

	// Config returns the canonical configuration that, together with ID and Version,
	// determines the output for a given molecule.
	Config() map[string]string

	// Names returns the declared descriptor names in sorted order.
	Names() []string

	// RequiresConformer reports whether Compute needs a 3D conformer.
	RequiresConformer() bool

	// Compute returns the descriptor vector for identity. conformer may be nil
	// for generators that do not require one.
	Compute(ctx context.Context, identity domain.MoleculeIdentity, conformer *domain.Conformer) (domain.DescriptorVector, error)
}

// GeneratorResolver maps generator IDs to generators.
type GeneratorResolver interface {
	Resolve(ids []string) ([]Generator, error)
}
