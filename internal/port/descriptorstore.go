package port

import (
	"context"

	"ilfeat/internal/domain"
)

// DescriptorStore persists descriptor vectors by cache key.
type DescriptorStore interface {
	// Get returns the stored vector. A missing entry reports found=false with a nil
	// error; an unreadable entry returns a *domain.CacheCorruptionError.
	Get(key domain.CacheKey) (vec domain.DescriptorVector, found bool, err error)

	Put(key domain.CacheKey, vec domain.DescriptorVector) error

	Delete(key domain.CacheKey) error

	// Purge removes every entry of generator. An empty version purges all versions.
	Purge(generator, version string) (int, error)

	// Stats returns the entry count per "generator@version".
	Stats() (map[string]int, error)

	Close() error
}

// DescriptorCache is the read-through cache in front of a DescriptorStore.
type DescriptorCache interface {
	GetOrCompute(ctx context.Context, key domain.CacheKey, compute func(ctx context.Context) (domain.DescriptorVector, error)) (domain.DescriptorVector, error)
}
