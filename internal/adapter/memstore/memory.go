package memstore

import (
	"sync"

	"ilfeat/internal/domain"
	"ilfeat/internal/port"
)

var _ port.DescriptorStore = (*MemoryStore)(nil)

// MemoryStore keeps descriptor vectors for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	vectors map[domain.CacheKey]domain.DescriptorVector
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vectors: make(map[domain.CacheKey]domain.DescriptorVector),
	}
}

func (s *MemoryStore) Get(key domain.CacheKey) (domain.DescriptorVector, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vec, ok := s.vectors[key]
	return vec, ok, nil
}

func (s *MemoryStore) Put(key domain.CacheKey, vec domain.DescriptorVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[key] = vec
	return nil
}

func (s *MemoryStore) Delete(key domain.CacheKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vectors, key)
	return nil
}

func (s *MemoryStore) Purge(generator, version string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.vectors {
		if key.Generator == generator && (version == "" || key.Version == version) {
			delete(s.vectors, key)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Stats() (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := map[string]int{}
	for key := range s.vectors {
		stats[key.Generator+"@"+key.Version]++
	}
	return stats, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
