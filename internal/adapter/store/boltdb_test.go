package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"ilfeat/internal/cachekey"
	"ilfeat/internal/domain"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "descriptors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testVector(gen, version string) domain.DescriptorVector {
	return domain.NewDescriptorVector(gen, version, map[string]domain.Value{
		"a": domain.Float(1.25),
		"b": domain.Missing(),
		"c": domain.Float(-3),
	})
}

func TestBoltStore_PutGet(t *testing.T) {
	s := openTestStore(t)
	key := domain.CacheKey{Hash: "abc", Generator: "topological", Version: "1"}

	_, found, err := s.Get(key)
	require.NoError(t, err)
	assert.False(t, found)

	vec := testVector("topological", "1")
	require.NoError(t, s.Put(key, vec))

	got, found, err := s.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, vec.Equal(got))

	_, found, err = s.Get(domain.CacheKey{Hash: "abc", Generator: "topological", Version: "2"})
	require.NoError(t, err)
	assert.False(t, found, "another version must not see the entry")

	require.NoError(t, s.Delete(key))
	_, found, err = s.Get(key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBoltStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descriptors.db")
	key := domain.CacheKey{Hash: "k", Generator: "geometric", Version: "1"}

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(key, testVector("geometric", "1")))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	_, found, err := s.Get(key)
	require.NoError(t, err)
	assert.True(t, found)
}

// rewrite replaces the raw bytes stored for key.
func rewrite(t *testing.T, s *BoltStore, key domain.CacheKey, mutate func(env map[string]interface{}) []byte) {
	t.Helper()
	require.NoError(t, s.DB().Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDescriptors).Bucket(generatorBucket(key.Generator, key.Version))
		var env map[string]interface{}
		if err := json.Unmarshal(b.Get([]byte(key.Hash)), &env); err != nil {
			return err
		}
		return b.Put([]byte(key.Hash), mutate(env))
	}))
}

func TestBoltStore_Corruption(t *testing.T) {
	tests := map[string]func(env map[string]interface{}) []byte{
		"garbage": func(map[string]interface{}) []byte { return []byte("{not json") },
		"checksum": func(env map[string]interface{}) []byte {
			env["checksum"] = "00"
			data, _ := json.Marshal(env)
			return data
		},
		"schema": func(env map[string]interface{}) []byte {
			env["schema"] = 99
			data, _ := json.Marshal(env)
			return data
		},
		"key": func(env map[string]interface{}) []byte {
			env["key"] = "other"
			data, _ := json.Marshal(env)
			return data
		},
		"payload": func(env map[string]interface{}) []byte {
			env["payload"] = "oops"
			data, _ := json.Marshal(env)
			return data
		},
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			s := openTestStore(t)
			key := domain.CacheKey{Hash: "h", Generator: "topological", Version: "1"}
			require.NoError(t, s.Put(key, testVector("topological", "1")))
			rewrite(t, s, key, mutate)

			_, found, err := s.Get(key)
			assert.True(t, found)
			var ce *domain.CacheCorruptionError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, "h", ce.Key)
			assert.ErrorIs(t, err, domain.ErrCacheCorruption)
		})
	}
}

func TestBoltStore_PurgeAndStats(t *testing.T) {
	s := openTestStore(t)
	put := func(hash, gen, version string) {
		require.NoError(t, s.Put(domain.CacheKey{Hash: hash, Generator: gen, Version: version}, testVector(gen, version)))
	}
	put("a", "topological", "1")
	put("b", "topological", "1")
	put("a", "topological", "2")
	put("a", "geometric", "1")

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"topological@1": 2, "topological@2": 1, "geometric@1": 1}, stats)

	n, err := s.Purge("topological", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Purge("topological", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Purge("unknown", "")
	require.NoError(t, err)
	assert.Zero(t, n)

	stats, err = s.Stats()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"geometric@1": 1}, stats)
}

func TestBoltStore_Migration(t *testing.T) {
	s := openTestStore(t)

	result, err := s.CheckMigration()
	require.NoError(t, err)
	assert.True(t, result.NeedsMigration)
	assert.False(t, result.NeedsRebuild)

	require.NoError(t, s.Migrate())
	result, err = s.CheckMigration()
	require.NoError(t, err)
	assert.False(t, result.NeedsMigration)
	assert.False(t, result.NeedsRebuild)

	require.NoError(t, s.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion, KeySchema: "0"}))
	result, err = s.CheckMigration()
	require.NoError(t, err)
	assert.True(t, result.NeedsRebuild)

	require.NoError(t, s.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion + 1, KeySchema: cachekey.SchemaVersion}))
	result, err = s.CheckMigration()
	require.NoError(t, err)
	assert.True(t, result.NeedsRebuild)
}

func TestOpen_ClearsStaleKeySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descriptors.db")
	key := domain.CacheKey{Hash: "k", Generator: "topological", Version: "1"}

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(key, testVector("topological", "1")))
	require.NoError(t, s.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion, KeySchema: "0"}))
	require.NoError(t, s.Close())

	s, result, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, result.NeedsRebuild)

	_, found, err := s.Get(key)
	require.NoError(t, err)
	assert.False(t, found)

	info, err := s.GetSchemaInfo()
	require.NoError(t, err)
	assert.Equal(t, cachekey.SchemaVersion, info.KeySchema)
}
