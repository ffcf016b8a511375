package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/shopgate/cart-service/internal/cache"
	"github.com/fjod/shopgate/cart-service/internal/catalog"
	"github.com/fjod/shopgate/cart-service/internal/domain"
	"github.com/fjod/shopgate/cart-service/internal/repository"
)

var ErrItemNotFound = errors.New("item not found in cart")

// CartService keeps each member's stored cart in step with the catalog.
// Every mutation ends in at most one UpsertCart; nothing is written when
// a step before it fails. Concurrent mutations of one cart are
// last-write-wins.
type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog catalog.Catalog
	sfg     singleflight.Group // collapses concurrent loads of one cart
	logger  zerolog.Logger
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, catalog catalog.Catalog, logger zerolog.Logger) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		logger:  logger,
	}
}

// AddOrUpdateLine sets sku's quantity, adding the line from fresh catalog
// data when the cart does not hold it yet. The catalog is consulted first
// so an unknown product never creates a cart.
func (s *CartService) AddOrUpdateLine(ctx context.Context, memberID int64, sku string, quantity int) (*domain.Cart, error) {
	product, err := s.catalog.GetProduct(ctx, sku)
	if err != nil {
		return nil, s.catalogError(sku, err)
	}

	cart, err := s.load(ctx, memberID)
	if errors.Is(err, repository.ErrCartNotFound) {
		cart = domain.NewEmptyCart(memberID)
	} else if err != nil {
		return nil, err
	}

	if i, ok := cart.FindItem(sku); ok {
		cart.Items[i].Quantity = quantity
	} else {
		item := domain.NewItem(product, quantity)
		item.SKU = sku
		cart.Items = append(cart.Items, item)
	}

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// GetCart refreshes every line from the catalog. Lines whose product is
// gone are dropped; lines the catalog cannot answer for are kept as they
// are. The cart is written back only when something changed, and a
// member without a cart gets an empty one that is not stored.
func (s *CartService) GetCart(ctx context.Context, memberID int64) (*domain.Cart, error) {
	cart, err := s.load(ctx, memberID)
	if errors.Is(err, repository.ErrCartNotFound) {
		empty := domain.NewEmptyCart(memberID)
		empty.Recompute()
		return empty, nil
	}
	if err != nil {
		return nil, err
	}

	changed := false
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		product, err := s.catalog.GetProduct(ctx, item.SKU)
		switch {
		case err == nil:
			if item.Status != domain.ItemStatusActive {
				item.Status = domain.ItemStatusActive
				changed = true
			}
			if item.Refresh(product) {
				changed = true
			}
		case errors.Is(err, catalog.ErrProductNotFound):
			s.logger.Warn().Int64("member_id", memberID).Str("sku", item.SKU).Msg("product no longer exists, removing from cart")
			changed = true
			continue
		default:
			s.logger.Error().Err(err).Int64("member_id", memberID).Str("sku", item.SKU).Msg("could not refresh cart line")
			if item.Status == "" {
				item.Status = domain.ItemStatusInactive
				changed = true
			}
		}
		kept = append(kept, item)
	}
	cart.Items = kept

	before := cart.Summary
	cart.Recompute()
	if cart.Summary != before {
		changed = true
	}

	if changed {
		if err := s.persist(ctx, cart); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

// UpdateQuantity sets the quantity of a line already in the cart and
// refreshes it from the catalog. Catalog failures leave the cart alone.
func (s *CartService) UpdateQuantity(ctx context.Context, memberID int64, sku string, quantity int) (*domain.Cart, error) {
	cart, err := s.load(ctx, memberID)
	if err != nil {
		return nil, err
	}

	i, ok := cart.FindItem(sku)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, sku)
	}

	product, err := s.catalog.GetProduct(ctx, sku)
	if err != nil {
		return nil, s.catalogError(sku, err)
	}

	item := &cart.Items[i]
	item.Quantity = quantity
	item.Status = domain.ItemStatusActive
	item.Refresh(product)

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) RemoveLine(ctx context.Context, memberID int64, sku string) (*domain.Cart, error) {
	cart, err := s.load(ctx, memberID)
	if err != nil {
		return nil, err
	}

	i, ok := cart.FindItem(sku)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, sku)
	}
	cart.RemoveItem(i)

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ClearCart empties the cart but keeps the document. A member without a
// cart gets an empty one back and nothing is written.
func (s *CartService) ClearCart(ctx context.Context, memberID int64) (*domain.Cart, error) {
	cart, err := s.load(ctx, memberID)
	if errors.Is(err, repository.ErrCartNotFound) {
		empty := domain.NewEmptyCart(memberID)
		empty.Recompute()
		return empty, nil
	}
	if err != nil {
		return nil, err
	}

	cart.Items = []domain.CartItem{}
	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// load returns a private copy of the stored cart, from the cache when it
// can. Callers may mutate the result freely.
func (s *CartService) load(ctx context.Context, memberID int64) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(memberID, 10), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, memberID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Int64("member_id", memberID).Msg("cache get error")
		}

		cart, err = s.repo.GetCart(ctx, memberID)
		if err != nil {
			return nil, err
		}

		if err := s.cache.Fill(ctx, cart); err != nil {
			s.logger.Warn().Err(err).Int64("member_id", memberID).Msg("cache fill error")
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart).Clone(), nil
}

func (s *CartService) persist(ctx context.Context, cart *domain.Cart) error {
	cart.Recompute()
	if cart.Status == "" {
		cart.Status = domain.CartStatusActive
	}

	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		s.invalidateCache(cart.MemberID)
		return fmt.Errorf("failed to save cart: %w", err)
	}

	if err := s.cache.Set(ctx, cart); err != nil {
		s.logger.Warn().Err(err).Int64("member_id", cart.MemberID).Msg("cache set error")
		s.invalidateCache(cart.MemberID)
	}
	return nil
}

// invalidateCache runs detached from the request so a cancelled caller
// cannot leave a stale entry behind.
func (s *CartService) invalidateCache(memberID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, memberID); err != nil {
		s.logger.Warn().Err(err).Int64("member_id", memberID).Msg("cache invalidate error")
	}
}

func (s *CartService) catalogError(sku string, err error) error {
	if errors.Is(err, catalog.ErrProductNotFound) {
		return err
	}
	s.logger.Error().Err(err).Str("sku", sku).Msg("catalog lookup failed")
	if errors.Is(err, catalog.ErrCatalogUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", catalog.ErrCatalogUnavailable, err)
}
