package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// boltBucket holds every storage key of the service.
var boltBucket = []byte("local_storage")

// BoltStore implements KeyValueStore on top of a single bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (creating if needed) the bbolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: OpenBoltStore failed to create directory %s: %w", dir, err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: OpenBoltStore failed to open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: OpenBoltStore failed to create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v == nil {
			return ErrKeyNotFound
		}
		// v is only valid inside the transaction.
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("store: BoltStore.Get failed for key %q: %w", key, err)
	}
	return value, nil
}

func (s *BoltStore) Put(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("store: BoltStore.Put failed for key %q: %w", key, err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	zap.L().Info("closing bolt store", zap.String("path", s.db.Path()))
	return s.db.Close()
}
