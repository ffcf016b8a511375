package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/fjod/shopgate/cart-service/internal/domain"
	"github.com/fjod/shopgate/pkg/circuitbreaker"
)

const (
	detailPath      = "/api/search/get/detailById"
	maxResponseSize = 1 << 20
)

// HTTPClient reads products from the search service behind a circuit
// breaker. Timeouts come from the supplied http.Client and the context.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*domain.Product]
	logger  zerolog.Logger
}

func NewHTTPClient(baseURL string, client *http.Client, logger zerolog.Logger) *HTTPClient {
	cfg := circuitbreaker.DefaultConfig("catalog")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrProductNotFound) || errors.Is(err, context.Canceled)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breaker: circuitbreaker.New[*domain.Product](cfg),
		logger:  logger,
	}
}

func (c *HTTPClient) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := c.breaker.Execute(func() (*domain.Product, error) {
		return c.fetch(ctx, sku)
	})
	if err == nil {
		return product, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return nil, err
}

func (c *HTTPClient) fetch(ctx context.Context, sku string) (*domain.Product, error) {
	endpoint := c.baseURL + detailPath + "?" + url.Values{"skuId": {sku}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, sku)
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn().Str("sku", sku).Int("status", resp.StatusCode).Msg("catalog returned unexpected status")
		return nil, fmt.Errorf("%w: status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrCatalogUnavailable, err)
	}

	product, ok, err := decodeProduct(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, sku)
	}
	if product.SKU == "" {
		product.SKU = sku
	}
	return product, nil
}
