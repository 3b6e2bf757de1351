package store

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"product-inventory-service/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CollectionStore persists the whole product collection under one key and
// falls back to the seed collection when there is no usable local override.
type CollectionStore struct {
	kv   KeyValueStore
	seed SeedSource
	key  string
}

// NewCollectionStore wires a key/value backend and a seed source together.
// An empty key selects DefaultStorageKey.
func NewCollectionStore(kv KeyValueStore, seed SeedSource, key string) *CollectionStore {
	if key == "" {
		key = DefaultStorageKey
	}
	return &CollectionStore{kv: kv, seed: seed, key: key}
}

// Key returns the storage key the collection is written under.
func (s *CollectionStore) Key() string {
	return s.key
}

// Load returns the stored collection, or a fresh copy of the seed collection
// when the key is absent or its value cannot be decoded.
func (s *CollectionStore) Load(ctx context.Context) []domain.Product {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			zap.L().Warn("failed to read products, using seed data", zap.String("key", s.key), zap.Error(err))
		}
		return s.loadSeed()
	}

	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		zap.L().Warn("stored products are corrupt, using seed data", zap.String("key", s.key), zap.Error(err))
		return s.loadSeed()
	}
	if products == nil {
		// a stored JSON null is treated like an absent value
		return s.loadSeed()
	}
	return products
}

// Save overwrites the stored collection with products.
func (s *CollectionStore) Save(ctx context.Context, products []domain.Product) error {
	if products == nil {
		products = []domain.Product{}
	}
	raw, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("store: Save failed to encode products: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, raw); err != nil {
		return fmt.Errorf("store: Save failed to write products: %w", err)
	}
	zap.L().Debug("products saved", zap.String("key", s.key), zap.Int("count", len(products)))
	return nil
}

func (s *CollectionStore) loadSeed() []domain.Product {
	if s.seed == nil {
		return []domain.Product{}
	}
	products, err := s.seed.Load()
	if err != nil {
		zap.L().Error("failed to load seed products", zap.Error(err))
		return []domain.Product{}
	}
	return products
}
