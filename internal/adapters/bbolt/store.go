// Package bbolt implements ports.DocumentLog using bbolt (embedded B+ tree).
// Each index root gets its own database file. Documents live in one bucket
// keyed by document key; a meta bucket records the root and the last write.
// Writes are transactional, so a crash mid-write cannot corrupt previously
// committed data.
package bbolt

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/corey/lucid/internal/ports"
)

// Bucket keys
var (
	bucketDocuments = []byte("documents")
	bucketMeta      = []byte("meta")
	keyRoot         = []byte("root")
	keyUpdated      = []byte("updated")
)

// Store implements ports.DocumentLog backed by bbolt.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDocuments); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Apply writes upserts and deletes in one transaction.
func (s *Store) Apply(upserts []ports.Document, deletes []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		for _, d := range upserts {
			if d.Key == "" {
				return errors.New("bbolt apply: empty document key")
			}
			if err := b.Put([]byte(d.Key), encodeDocument(d)); err != nil {
				return fmt.Errorf("put %s: %w", d.Key, err)
			}
		}
		for _, k := range deletes {
			if err := b.Delete([]byte(k)); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return touch(tx)
	})
}

// Load returns every persisted document in key order.
func (s *Store) Load() ([]ports.Document, error) {
	var docs []ports.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		docs = make([]ports.Document, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			d, err := decodeDocument(string(k), v)
			if err != nil {
				return err
			}
			docs = append(docs, d)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bbolt load: %w", err)
	}
	return docs, nil
}

// Count returns the number of persisted documents.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketDocuments).Stats().KeyN
		return nil
	})
	return n, err
}

// Clear removes every persisted document. Idempotent.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocuments); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		if _, err := tx.CreateBucket(bucketDocuments); err != nil {
			return err
		}
		return touch(tx)
	})
}

// SetRoot records the directory this index was built from.
func (s *Store) SetRoot(root string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyRoot, []byte(root))
	})
}

// Root returns the recorded root, or "" for a fresh database.
func (s *Store) Root() (string, error) {
	var root string
	err := s.db.View(func(tx *bolt.Tx) error {
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := tx.Bucket(bucketMeta).Get(keyRoot); v != nil {
			root = string(v)
		}
		return nil
	})
	return root, err
}

// Updated returns the time of the last Apply or Clear; zero for a fresh
// database.
func (s *Store) Updated() (time.Time, error) {
	var t time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyUpdated)
		if v == nil {
			return nil
		}
		return t.UnmarshalBinary(v)
	})
	return t, err
}

func touch(tx *bolt.Tx) error {
	v, err := time.Now().UTC().MarshalBinary()
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put(keyUpdated, v)
}
