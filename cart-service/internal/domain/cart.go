package domain

import "time"

const (
	CartStatusActive = "ACTIVE"

	ItemStatusActive   = "active"
	ItemStatusInactive = "inactive"
)

// Cart is the per-member snapshot. Item fields are denormalized copies of
// catalog data and may be stale until the next reconciliation.
type Cart struct {
	MemberID  int64       `bson:"_id" json:"memberId"`
	Items     []CartItem  `bson:"items" json:"items"`
	Summary   CartSummary `bson:"summary" json:"summary"`
	Status    string      `bson:"status" json:"status"`
	CreatedAt time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time   `bson:"updatedAt" json:"updatedAt"`
}

type CartItem struct {
	SKU          string            `bson:"sku" json:"sku"`
	Name         string            `bson:"name" json:"name"`
	Price        int64             `bson:"price" json:"price"`
	Quantity     int               `bson:"quantity" json:"quantity"`
	ProductImage string            `bson:"productImage" json:"productImage"`
	Attributes   map[string]string `bson:"attributes" json:"attributes"`
	Status       string            `bson:"status" json:"status"`
}

type CartSummary struct {
	ItemCount     int   `bson:"itemCount" json:"itemCount"`
	TotalQuantity int   `bson:"totalQuantity" json:"totalQuantity"`
	Subtotal      int64 `bson:"subtotal" json:"subtotal"`
	Tax           int64 `bson:"tax" json:"tax"`
	Shipping      int64 `bson:"shipping" json:"shipping"`
	Discount      int64 `bson:"discount" json:"discount"`
	Total         int64 `bson:"total" json:"total"`
}

// Product is the catalog's view of a SKU.
type Product struct {
	SKU          string
	Name         string
	Price        int64
	ProductImage string
	Attributes   map[string]string
}

func NewEmptyCart(memberID int64) *Cart {
	return &Cart{
		MemberID: memberID,
		Items:    []CartItem{},
		Status:   CartStatusActive,
	}
}

// Recompute derives the summary from the current lines. Every line counts
// towards the subtotal, inactive ones at their last known price.
func (c *Cart) Recompute() {
	s := c.Summary
	s.ItemCount = len(c.Items)
	s.TotalQuantity = 0
	s.Subtotal = 0
	for _, item := range c.Items {
		s.TotalQuantity += item.Quantity
		s.Subtotal += item.Price * int64(item.Quantity)
	}
	s.Total = s.Subtotal + s.Tax + s.Shipping - s.Discount
	c.Summary = s
}

func (c *Cart) FindItem(sku string) (int, bool) {
	for i := range c.Items {
		if c.Items[i].SKU == sku {
			return i, true
		}
	}
	return -1, false
}

func (c *Cart) RemoveItem(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		out.Items[i] = item
		out.Items[i].Attributes = cloneAttributes(item.Attributes)
	}
	return &out
}

func NewItem(p *Product, quantity int) CartItem {
	return CartItem{
		SKU:          p.SKU,
		Name:         p.Name,
		Price:        p.Price,
		Quantity:     quantity,
		ProductImage: p.ProductImage,
		Attributes:   cloneAttributes(p.Attributes),
		Status:       ItemStatusActive,
	}
}

// Refresh copies catalog fields that differ into the line and reports
// whether anything changed. Status and quantity are left alone.
func (i *CartItem) Refresh(p *Product) bool {
	changed := false
	if i.Name != p.Name {
		i.Name = p.Name
		changed = true
	}
	if i.Price != p.Price {
		i.Price = p.Price
		changed = true
	}
	if i.ProductImage != p.ProductImage {
		i.ProductImage = p.ProductImage
		changed = true
	}
	if !AttributesEqual(i.Attributes, p.Attributes) {
		i.Attributes = cloneAttributes(p.Attributes)
		changed = true
	}
	return changed
}

// AttributesEqual compares by size and then per key. A nil map equals an
// empty one: storage does not preserve the difference.
func AttributesEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func cloneAttributes(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
