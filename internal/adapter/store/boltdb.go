package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"ilfeat/internal/domain"
)

var (
	bucketMeta        = []byte("meta")
	bucketDescriptors = []byte("descriptors")
)

// entrySchema versions the envelope format of a single entry.
const entrySchema = 1

type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketDescriptors} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

// envelope wraps a serialized descriptor vector with what is needed to detect
// a damaged or misplaced entry.
type envelope struct {
	Schema    int             `json:"schema"`
	Key       string          `json:"key"`
	Generator string          `json:"generator"`
	Version   string          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Checksum  string          `json:"checksum"`
	Payload   json.RawMessage `json:"payload"`
}

func generatorBucket(generator, version string) []byte {
	return []byte(generator + "@" + version)
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *BoltStore) Get(key domain.CacheKey) (domain.DescriptorVector, bool, error) {
	var vec domain.DescriptorVector
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDescriptors).Bucket(generatorBucket(key.Generator, key.Version))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key.Hash))
		if data == nil {
			return nil
		}
		found = true

		v, err := decodeEntry(key, data)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return domain.DescriptorVector{}, found, err
	}
	return vec, found, nil
}

func decodeEntry(key domain.CacheKey, data []byte) (domain.DescriptorVector, error) {
	corrupt := func(format string, args ...interface{}) error {
		return &domain.CacheCorruptionError{Key: key.Hash, Reason: fmt.Sprintf(format, args...)}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.DescriptorVector{}, corrupt("undecodable envelope: %v", err)
	}
	switch {
	case env.Schema != entrySchema:
		return domain.DescriptorVector{}, corrupt("schema %d, want %d", env.Schema, entrySchema)
	case env.Key != key.Hash:
		return domain.DescriptorVector{}, corrupt("stored under key %s", env.Key)
	case env.Generator != key.Generator || env.Version != key.Version:
		return domain.DescriptorVector{}, corrupt("entry belongs to %s@%s", env.Generator, env.Version)
	case checksum(env.Payload) != env.Checksum:
		return domain.DescriptorVector{}, corrupt("checksum mismatch")
	}

	var vec domain.DescriptorVector
	if err := json.Unmarshal(env.Payload, &vec); err != nil {
		return domain.DescriptorVector{}, corrupt("undecodable payload: %v", err)
	}
	if vec.Generator() != key.Generator || vec.Version() != key.Version {
		return domain.DescriptorVector{}, corrupt("payload belongs to %s@%s", vec.Generator(), vec.Version())
	}
	return vec, nil
}

func (s *BoltStore) Put(key domain.CacheKey, vec domain.DescriptorVector) error {
	payload, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to encode descriptor vector: %w", err)
	}
	data, err := json.Marshal(envelope{
		Schema:    entrySchema,
		Key:       key.Hash,
		Generator: key.Generator,
		Version:   key.Version,
		CreatedAt: s.now().UTC(),
		Checksum:  checksum(payload),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketDescriptors).CreateBucketIfNotExists(generatorBucket(key.Generator, key.Version))
		if err != nil {
			return fmt.Errorf("failed to create generator bucket: %w", err)
		}
		return b.Put([]byte(key.Hash), data)
	})
}

func (s *BoltStore) Delete(key domain.CacheKey) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDescriptors).Bucket(generatorBucket(key.Generator, key.Version))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key.Hash))
	})
}

// Purge drops the buckets of generator. An empty version matches every version.
func (s *BoltStore) Purge(generator, version string) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		top := tx.Bucket(bucketDescriptors)
		var names [][]byte
		err := top.ForEach(func(k, v []byte) error {
			if v != nil {
				return nil
			}
			gen, ver, ok := strings.Cut(string(k), "@")
			if ok && gen == generator && (version == "" || ver == version) {
				names = append(names, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, name := range names {
			removed += countKeys(top.Bucket(name))
			if err := top.DeleteBucket(name); err != nil {
				return fmt.Errorf("failed to delete bucket %s: %w", name, err)
			}
		}
		return nil
	})
	return removed, err
}

// Stats returns the number of entries per generator@version.
func (s *BoltStore) Stats() (map[string]int, error) {
	stats := map[string]int{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		top := tx.Bucket(bucketDescriptors)
		return top.ForEach(func(k, v []byte) error {
			if v == nil {
				stats[string(k)] = countKeys(top.Bucket(k))
			}
			return nil
		})
	})
	return stats, err
}

func countKeys(b *bbolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
