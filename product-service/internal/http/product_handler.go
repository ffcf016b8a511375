package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fjod/shopgate/pkg/envelope"
	"github.com/fjod/shopgate/pkg/logger"
	"github.com/fjod/shopgate/product-service/internal/repository"
)

type ProductHandler struct {
	repo   repository.RepoInterface
	logger zerolog.Logger
}

func NewProductHandler(repo repository.RepoInterface, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{repo: repo, logger: logger}
}

func (h *ProductHandler) Register(r chi.Router) {
	r.Route("/api/search", func(r chi.Router) {
		r.Get("/get/detailById", h.GetDetail)
		r.Get("/products", h.List)
	})
}

// GetDetail answers with the bare product document, which is what the
// cart service decodes.
func (h *ProductHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	sku := strings.TrimSpace(r.URL.Query().Get("skuId"))
	if sku == "" {
		envelope.WriteError(w, http.StatusBadRequest, envelope.CodeBadRequest, "skuId is required")
		return
	}

	product, err := h.repo.GetBySKU(r.Context(), sku)
	if errors.Is(err, repository.ErrProductNotFound) {
		envelope.WriteError(w, http.StatusNotFound, envelope.CodeProductNotFound, "Product not found")
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Str("sku", sku).Msg("failed to load product")
		envelope.WriteError(w, http.StatusInternalServerError, envelope.CodeInternal, "failed to load product")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(product); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode product")
	}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.List(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("failed to list products")
		envelope.WriteError(w, http.StatusInternalServerError, envelope.CodeInternal, "failed to fetch products")
		return
	}
	envelope.Write(w, envelope.OK(products, "Products retrieved successfully"))
}
