package cache

import (
	"context"
	"errors"

	"github.com/fjod/shopgate/cart-service/internal/domain"
)

// CartCache is a read-through copy of the cart store. It is never the
// source of truth: callers log its errors and carry on.
type CartCache interface {
	Get(ctx context.Context, memberID int64) (*domain.Cart, error)
	// Fill stores a cart loaded from the repository unless a fresher
	// write already landed.
	Fill(ctx context.Context, cart *domain.Cart) error
	// Set overwrites after a successful persist.
	Set(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, memberID int64) error
}

var ErrCacheMiss = errors.New("cache miss")
