package store

import (
	"context"

	"product-inventory-service/internal/domain"
)

// DefaultStorageKey is the fixed key the whole product collection lives under.
const DefaultStorageKey = "inventorypro_products_v1"

// KeyValueStore is the raw persistence capability behind the collection.
// Get returns ErrKeyNotFound when nothing has been stored under key yet.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// ProductStorer reads and writes the full product collection as one unit.
// There is no partial update: callers load, transform in memory and save.
type ProductStorer interface {
	// Load never fails; a missing or unreadable value yields the seed collection.
	Load(ctx context.Context) []domain.Product
	Save(ctx context.Context, products []domain.Product) error
}

// SeedSource provides the fallback collection when no local override exists.
type SeedSource interface {
	Load() ([]domain.Product, error)
}
