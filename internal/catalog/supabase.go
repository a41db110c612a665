package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/supabase-community/supabase-go"
)

const defaultCacheTTL = 5 * time.Minute

// SupabaseCatalog reads products from a Supabase "products" table with a
// read-through TTL cache. Product rows change rarely, so one cached snapshot
// serves all lookups within the TTL.
type SupabaseCatalog struct {
	client *supabase.Client
	ttl    time.Duration

	mu        sync.RWMutex
	products  []Product
	expiresAt time.Time
}

// NewSupabase creates a Supabase-backed catalog.
func NewSupabase(url, apiKey string, ttl time.Duration) (*SupabaseCatalog, error) {
	if url == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	client, err := supabase.NewClient(url, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseCatalog{client: client, ttl: ttl}, nil
}

func (c *SupabaseCatalog) AllNames(ctx context.Context) ([]string, error) {
	products, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	return names, nil
}

func (c *SupabaseCatalog) FindByName(ctx context.Context, name string) (*Product, error) {
	products, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if strings.EqualFold(products[i].Name, name) {
			p := products[i]
			return &p, nil
		}
	}
	return nil, nil
}

// snapshot returns the cached product list, refreshing it from Supabase when
// the cache has expired.
func (c *SupabaseCatalog) snapshot(ctx context.Context) ([]Product, error) {
	c.mu.RLock()
	if time.Now().Before(c.expiresAt) {
		products := c.products
		c.mu.RUnlock()
		return products, nil
	}
	c.mu.RUnlock()

	var products []Product
	_, err := c.client.From("products").
		Select("*", "", false).
		ExecuteTo(&products)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	c.mu.Lock()
	c.products = products
	c.expiresAt = time.Now().Add(c.ttl)
	c.mu.Unlock()

	return products, nil
}

var _ Catalog = (*SupabaseCatalog)(nil)
