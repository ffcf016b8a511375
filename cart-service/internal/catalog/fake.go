package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/shopgate/cart-service/internal/domain"
)

// Fake is an in-memory Catalog. Products are returned as copies; a SKU
// marked failing answers ErrCatalogUnavailable.
type Fake struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	failing  map[string]bool
	down     bool
	calls    int
}

func NewFake(products ...domain.Product) *Fake {
	f := &Fake{products: make(map[string]domain.Product), failing: make(map[string]bool)}
	for _, p := range products {
		f.products[p.SKU] = p
	}
	return f
}

func (f *Fake) Put(p domain.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.SKU] = p
}

func (f *Fake) Remove(sku string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, sku)
}

func (f *Fake) Fail(sku string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[sku] = true
}

// SetDown makes every lookup fail.
func (f *Fake) SetDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *Fake) Calls() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls
}

func (f *Fake) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	if f.down || f.failing[sku] {
		return nil, ErrCatalogUnavailable
	}
	p, ok := f.products[sku]
	if !ok {
		return nil, ErrProductNotFound
	}

	out := p
	if p.Attributes != nil {
		out.Attributes = make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			out.Attributes[k] = v
		}
	}
	return &out, nil
}
