package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fjod/shopgate/cart-service/internal/domain"
)

// productDTO is the catalog wire shape. Unknown fields are ignored.
type productDTO struct {
	SKU          string                     `json:"sku"`
	Name         string                     `json:"name"`
	Price        json.RawMessage            `json:"price"`
	ProductImage string                     `json:"productImage"`
	Attributes   map[string]json.RawMessage `json:"attributes"`
}

// priceKeys are tried in order when the price arrives as an object.
var priceKeys = []string{"value", "amount", "price"}

// decodeProduct returns ok=false for an empty or null body, which the
// catalog uses to say "no such product".
func decodeProduct(body []byte) (*domain.Product, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}

	var dto productDTO
	if err := json.Unmarshal(trimmed, &dto); err != nil {
		return nil, false, fmt.Errorf("decode product: %w", err)
	}

	return &domain.Product{
		SKU:          dto.SKU,
		Name:         dto.Name,
		Price:        decodePrice(dto.Price),
		ProductImage: dto.ProductImage,
		Attributes:   decodeAttributes(dto.Attributes),
	}, true, nil
}

// decodePrice accepts a number, a numeric string, or an object carrying
// one under value, amount or price. Anything else is 0. Fractions are
// truncated.
func decodePrice(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}

	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0
		}
		for _, key := range priceKeys {
			if v, ok := obj[key]; ok {
				if n, ok := parseNumber(v); ok {
					return n
				}
			}
		}
		return 0
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0
		}
		return d.IntPart()
	default:
		n, _ := parseNumber(raw)
		return n
	}
}

func parseNumber(raw json.RawMessage) (int64, bool) {
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	d, err := decimal.NewFromString(num.String())
	if err != nil {
		return 0, false
	}
	return d.IntPart(), true
}

// decodeAttributes keeps strings as-is and any other JSON value as its
// compact text, so nested catalog attributes still compare stably.
func decodeAttributes(raw map[string]json.RawMessage) map[string]string {
	if raw == nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			out[k] = string(v)
			continue
		}
		out[k] = buf.String()
	}
	return out
}
