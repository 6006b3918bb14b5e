// Package bbolt provides a BoltDB-backed scene gateway that stores each
// document as one JSON value.
package bbolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/services/scene/storage"
	"go.etcd.io/bbolt"
)

const sceneBucket = "scenes"

// Store provides a BoltDB-backed scene store.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load fetches the scene document of projectID.
func (s *Store) Load(ctx context.Context, projectID string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	if s == nil || s.db == nil {
		return domain.Document{}, fmt.Errorf("storage is not configured")
	}
	projectID, err := storage.NormalizeProjectID(projectID)
	if err != nil {
		return domain.Document{}, err
	}

	var doc domain.Document
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sceneBucket))
		if bucket == nil {
			return fmt.Errorf("scene bucket is missing")
		}
		payload := bucket.Get(sceneKey(projectID))
		if payload == nil {
			return storage.ErrNotFound
		}
		decoded, err := storage.Decode(payload)
		if err != nil {
			return err
		}
		doc = decoded
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// Save merges patch into the stored document within one write transaction.
func (s *Store) Save(ctx context.Context, projectID string, patch storage.Patch) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	if s == nil || s.db == nil {
		return domain.Document{}, fmt.Errorf("storage is not configured")
	}
	projectID, err := storage.NormalizeProjectID(projectID)
	if err != nil {
		return domain.Document{}, err
	}

	var saved domain.Document
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sceneBucket))
		if bucket == nil {
			return fmt.Errorf("scene bucket is missing")
		}

		var current domain.Document
		existing := bucket.Get(sceneKey(projectID))
		if existing != nil {
			decoded, err := storage.Decode(existing)
			if err != nil {
				return err
			}
			current = decoded
		}

		next, payload, err := storage.Apply(current, existing != nil, projectID, patch, s.now())
		if err != nil {
			return err
		}
		if err := bucket.Put(sceneKey(projectID), payload); err != nil {
			return fmt.Errorf("put scene: %w", err)
		}
		saved = next
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}
	return saved, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sceneBucket))
		if err != nil {
			return fmt.Errorf("create scene bucket: %w", err)
		}
		return nil
	})
}

func sceneKey(projectID string) []byte {
	return []byte(projectID)
}

var _ storage.Gateway = (*Store)(nil)
