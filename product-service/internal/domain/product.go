package domain

import "time"

const (
	StatusActive       = "ACTIVE"
	StatusDiscontinued = "DISCONTINUED"
)

// Price is in integer minor units of Currency.
type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Product struct {
	SKU          string            `json:"sku"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Brand        string            `json:"brand"`
	Price        Price             `json:"price"`
	ProductImage string            `json:"productImage"`
	Images       []string          `json:"images"`
	Attributes   map[string]string `json:"attributes"`
	Tags         []string          `json:"tags"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
}
