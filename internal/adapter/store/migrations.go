package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"ilfeat/internal/cachekey"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyKeySchema     = []byte("key_schema")
)

// SchemaInfo stores the layout version and the cache key schema the entries
// were written under.
type SchemaInfo struct {
	Version   int    `json:"version"`
	KeySchema string `json:"key_schema"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}

		if versionData := b.Get(keySchemaVersion); versionData != nil {
			if err := json.Unmarshal(versionData, &info.Version); err != nil {
				return fmt.Errorf("unreadable schema version: %w", err)
			}
		}
		if keyData := b.Get(keyKeySchema); keyData != nil {
			info.KeySchema = string(keyData)
		}
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		return b.Put(keyKeySchema, []byte(info.KeySchema))
	})
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration reports whether the store can be used as is. Entries written
// under another key schema can never be hit again, so they call for a rebuild.
func (s *BoltStore) CheckMigration() (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("cache created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	if info.KeySchema != "" && info.KeySchema != cachekey.SchemaVersion {
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("cache key schema changed from %s to %s", info.KeySchema, cachekey.SchemaVersion)
	}
	return result, nil
}

// Migrate performs any necessary schema migrations.
func (s *BoltStore) Migrate() error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}

	return s.SetSchemaInfo(&SchemaInfo{
		Version:   CurrentSchemaVersion,
		KeySchema: cachekey.SchemaVersion,
	})
}

func (s *BoltStore) runMigration(from, to int) error {
	switch {
	case from == 0 && to == 1:
		return s.db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketDescriptors)
			return err
		})
	default:
		return nil
	}
}

// Clear removes every cached vector and keeps the schema info.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDescriptors); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketDescriptors)
		return err
	})
}

// Open opens the store at path, migrating it and clearing it when its
// entries can no longer be addressed.
func Open(path string) (*BoltStore, *MigrationResult, error) {
	s, err := NewBoltStore(path)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.CheckMigration()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	if result.NeedsRebuild {
		if err := s.Clear(); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	if result.NeedsMigration || result.NeedsRebuild {
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, nil, err
		}
	}
	return s, result, nil
}
