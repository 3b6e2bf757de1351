// Package seed provides the bundled default product catalog.
package seed

import (
	_ "embed"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"product-inventory-service/internal/domain"
)

//go:embed products.json
var bundled []byte

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Loader reads the seed collection. With an empty path it serves the
// products.json compiled into the binary.
type Loader struct {
	path string
	data []byte
}

// NewLoader returns a Loader for the seed file at path, or the bundled seed
// when path is empty.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// NewLoaderFromBytes returns a Loader serving a fixed JSON document.
func NewLoaderFromBytes(data []byte) *Loader {
	return &Loader{data: data}
}

// Load decodes the seed collection. Every call decodes afresh, so the caller
// owns the returned slice and may mutate it freely.
func (l *Loader) Load() ([]domain.Product, error) {
	raw, err := l.raw()
	if err != nil {
		return nil, err
	}
	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("seed: failed to decode seed products: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (l *Loader) raw() ([]byte, error) {
	switch {
	case l.data != nil:
		return l.data, nil
	case l.path != "":
		raw, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("seed: failed to read seed file %s: %w", l.path, err)
		}
		return raw, nil
	default:
		return bundled, nil
	}
}
