package catalog

import (
	"context"
	"strings"
	"sync"
)

// Product is a catalog entry. Read-only from the pipeline's perspective.
type Product struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// Catalog provides read access to the product list. Implementations must be
// safe for concurrent use; the catalog is shared across all connections.
type Catalog interface {
	// AllNames returns every product name in catalog order.
	AllNames(ctx context.Context) ([]string, error)

	// FindByName looks a product up case-insensitively.
	// Returns nil (not an error) when no product matches.
	FindByName(ctx context.Context, name string) (*Product, error)
}

// Memory is an in-process catalog, used by tests and when no backing store
// is configured.
type Memory struct {
	mu       sync.RWMutex
	products []Product
}

// NewMemory creates a catalog from a fixed product list.
func NewMemory(products []Product) *Memory {
	copied := make([]Product, len(products))
	copy(copied, products)
	return &Memory{products: copied}
}

func (m *Memory) AllNames(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.products))
	for i, p := range m.products {
		names[i] = p.Name
	}
	return names, nil
}

func (m *Memory) FindByName(ctx context.Context, name string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.products {
		if strings.EqualFold(m.products[i].Name, name) {
			p := m.products[i]
			return &p, nil
		}
	}
	return nil, nil
}

var _ Catalog = (*Memory)(nil)
