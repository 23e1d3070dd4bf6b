package port

import (
	"context"

	"ilfeat/internal/domain"
)

// PropertyDB supplies measured property labels for an ionic liquid.
type PropertyDB interface {
	// Lookup returns the properties recorded for the ion pair. An empty result
	// means no labels are available.
	Lookup(ctx context.Context, cation, anion domain.MoleculeIdentity) ([]domain.PropertyValue, error)
}
