package memory

import (
	"context"
	"sync"

	"github.com/altmarket/digitalstore/internal/domain/catalog"
)

// Catalog is an in-memory catalog.Repository for tests and dev setups.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
	order    []string
}

func NewCatalog(products ...catalog.Product) *Catalog {
	c := &Catalog{products: make(map[string]catalog.Product)}
	for _, p := range products {
		c.products[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c
}

func (c *Catalog) List(ctx context.Context) ([]catalog.Product, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]catalog.Product, 0, len(c.order))
	for _, id := range c.order {
		if p, ok := c.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (catalog.Product, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (c *Catalog) Create(ctx context.Context, p catalog.Product) error {
	_ = ctx
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[p.ID]; ok {
		return catalog.ErrExists
	}
	c.products[p.ID] = p
	c.order = append(c.order, p.ID)
	return nil
}

func (c *Catalog) Update(ctx context.Context, p catalog.Product) error {
	_ = ctx
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[p.ID]; !ok {
		return catalog.ErrNotFound
	}
	c.products[p.ID] = p
	return nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(c.products, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}
