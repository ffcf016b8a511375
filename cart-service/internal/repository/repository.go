package repository

import (
	"context"
	"errors"

	"github.com/fjod/shopgate/cart-service/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository is the durable cart store. UpsertCart replaces the whole
// document in one write.
type CartRepository interface {
	GetCart(ctx context.Context, memberID int64) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
}
