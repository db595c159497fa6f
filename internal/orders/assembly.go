package orders

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidItems    = errors.New("invalid items")
	ErrInvalidCurrency = errors.New("invalid currency")
)

// MaxQty matches the INTEGER qty column.
const MaxQty = math.MaxInt32

type ItemInput struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Qty       int     `json:"qty"`
}

type NewOrder struct {
	UserID   *string
	Items    []ItemInput
	Currency string
}

func (n NewOrder) productIDs() []string {
	seen := make(map[string]bool, len(n.Items))
	out := make([]string, 0, len(n.Items))
	for _, it := range n.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			out = append(out, it.ProductID)
		}
	}
	return out
}

// NormalizeCurrency upper-cases an ISO 4217 code and rejects anything that is
// not three letters.
func NormalizeCurrency(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if len(c) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, c)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, c)
		}
	}
	return c, nil
}

// PriceLines resolves every cart line against the catalog and returns the item
// snapshots plus their subtotal. Prices come from the catalog, never from the
// client; variant prices are not applied here. Any unknown product rejects the
// whole cart.
func PriceLines(items []ItemInput, catalog map[string]Product) ([]OrderItem, int64, error) {
	if len(items) == 0 {
		return nil, 0, fmt.Errorf("%w: at least one item required", ErrInvalidItems)
	}
	out := make([]OrderItem, 0, len(items))
	var subtotal int64
	for _, it := range items {
		if it.Qty <= 0 || it.Qty > MaxQty {
			return nil, 0, fmt.Errorf("%w: qty must be between 1 and %d for product %s", ErrInvalidItems, MaxQty, it.ProductID)
		}
		p, ok := catalog[it.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		line := OrderItem{
			ProductID:  p.ID,
			VariantID:  it.VariantID,
			Name:       p.Name,
			ImageURL:   p.ImageURL,
			PriceCents: p.PriceCents,
			Qty:        it.Qty,
		}
		if p.PriceCents > 0 && int64(it.Qty) > (math.MaxInt64-subtotal)/p.PriceCents {
			return nil, 0, fmt.Errorf("%w: order total out of range", ErrInvalidItems)
		}
		subtotal += line.LineCents()
		out = append(out, line)
	}
	return out, subtotal, nil
}
