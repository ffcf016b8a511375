// Package catalog is the cart's port onto the product catalog.
package catalog

import (
	"context"
	"errors"

	"github.com/fjod/shopgate/cart-service/internal/domain"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// Catalog looks up one SKU. Implementations return ErrProductNotFound when
// the catalog positively has no such product and ErrCatalogUnavailable for
// every other failure.
type Catalog interface {
	GetProduct(ctx context.Context, sku string) (*domain.Product, error)
}
