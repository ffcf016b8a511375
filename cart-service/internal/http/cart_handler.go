package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fjod/shopgate/cart-service/internal/catalog"
	"github.com/fjod/shopgate/cart-service/internal/domain"
	"github.com/fjod/shopgate/cart-service/internal/member"
	"github.com/fjod/shopgate/cart-service/internal/repository"
	"github.com/fjod/shopgate/cart-service/internal/service"
	"github.com/fjod/shopgate/pkg/envelope"
	"github.com/fjod/shopgate/pkg/logger"
)

const (
	headerUserID = "X-User-Id"
	maxQuantity  = 99
)

type CartService interface {
	AddOrUpdateLine(ctx context.Context, memberID int64, sku string, quantity int) (*domain.Cart, error)
	GetCart(ctx context.Context, memberID int64) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, memberID int64, sku string, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, memberID int64, sku string) (*domain.Cart, error)
	ClearCart(ctx context.Context, memberID int64) (*domain.Cart, error)
}

type MemberGate interface {
	Check(ctx context.Context, memberID int64) error
}

type CartHandler struct {
	carts   CartService
	members MemberGate
	timeout time.Duration
	logger  zerolog.Logger
}

func NewCartHandler(carts CartService, members MemberGate, timeout time.Duration, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		members: members,
		timeout: timeout,
		logger:  logger,
	}
}

type AddItemRequestDTO struct {
	ProductSku string `json:"productSku"`
	Quantity   int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{sku}", h.UpdateQuantity)
		r.Delete("/items/{sku}", h.RemoveItem)
	})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, memberID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	cart, err := h.carts.GetCart(ctx, memberID)
	if err != nil {
		h.respondServiceError(w, r, err, "An error occurred while retrieving cart")
		return
	}
	envelope.Write(w, envelope.OK(cart, "Cart retrieved successfully"))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		envelope.WriteError(w, http.StatusBadRequest, envelope.CodeBadRequest, "invalid JSON body")
		return
	}
	req.ProductSku = strings.TrimSpace(req.ProductSku)
	if req.ProductSku == "" {
		envelope.WriteError(w, http.StatusBadRequest, envelope.CodeBadRequest, "productSku is required")
		return
	}
	if !validQuantity(w, req.Quantity) {
		return
	}

	ctx, cancel, memberID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	cart, err := h.carts.AddOrUpdateLine(ctx, memberID, req.ProductSku, req.Quantity)
	if err != nil {
		h.respondServiceError(w, r, err, "An error occurred while adding item to cart")
		return
	}
	envelope.Write(w, envelope.OK(cart, "Item added to cart successfully"))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		envelope.WriteError(w, http.StatusBadRequest, envelope.CodeBadRequest, "invalid JSON body")
		return
	}
	if !validQuantity(w, req.Quantity) {
		return
	}

	ctx, cancel, memberID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	cart, err := h.carts.UpdateQuantity(ctx, memberID, sku, req.Quantity)
	if err != nil {
		h.respondServiceError(w, r, err, "An error occurred while updating cart item")
		return
	}
	envelope.Write(w, envelope.OK(cart, "Item updated successfully"))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	ctx, cancel, memberID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	cart, err := h.carts.RemoveLine(ctx, memberID, sku)
	if err != nil {
		h.respondServiceError(w, r, err, "An error occurred while deleting cart item")
		return
	}
	envelope.Write(w, envelope.OK(cart, "Item removed from cart"))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, memberID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	cart, err := h.carts.ClearCart(ctx, memberID)
	if err != nil {
		h.respondServiceError(w, r, err, "An error occurred while clearing cart")
		return
	}
	envelope.Write(w, envelope.OK(cart, "Cart cleared successfully"))
}

// begin resolves the caller and checks their member status. On false the
// response has already been written.
func (h *CartHandler) begin(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc, int64, bool) {
	memberID, ok := memberIDFromRequest(w, r)
	if !ok {
		return nil, nil, 0, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	if err := h.members.Check(ctx, memberID); err != nil {
		cancel()
		envelope.WriteError(w, http.StatusUnauthorized, envelope.CodeUnauthorized, "Member status is not active")
		return nil, nil, 0, false
	}
	return ctx, cancel, memberID, true
}

func memberIDFromRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(headerUserID))
	if raw == "" {
		envelope.WriteError(w, http.StatusBadRequest, envelope.CodeBadRequest, "User ID is required")
		return 0, false
	}
	memberID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		envelope.WriteError(w, http.StatusBadRequest, envelope.CodeBadRequest, "Invalid user ID format")
		return 0, false
	}
	return memberID, true
}

func validQuantity(w http.ResponseWriter, quantity int) bool {
	if quantity <= 0 || quantity > maxQuantity {
		envelope.WriteError(w, http.StatusBadRequest, envelope.CodeBadRequest, "quantity must be between 1 and 99")
		return false
	}
	return true
}

func (h *CartHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, internalMessage string) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		envelope.WriteError(w, http.StatusNotFound, envelope.CodeProductNotFound, "Product not found")
	case errors.Is(err, repository.ErrCartNotFound):
		envelope.WriteError(w, http.StatusNotFound, envelope.CodeCartNotFound, "Cart not found")
	case errors.Is(err, service.ErrItemNotFound):
		envelope.WriteError(w, http.StatusNotFound, envelope.CodeItemNotFound, "Item not found in cart")
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		envelope.WriteError(w, http.StatusInternalServerError, envelope.CodeProductServiceError, "Error fetching product details")
	default:
		logger.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("cart request failed")
		envelope.WriteError(w, http.StatusInternalServerError, envelope.CodeInternal, internalMessage)
	}
}

var _ MemberGate = (*member.Gate)(nil)
var _ CartService = (*service.CartService)(nil)
