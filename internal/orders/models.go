package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"image_url"`
	Stock      int       `json:"stock"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Order struct {
	ID       string
	UserID   *string
	Status   Status
	Currency string

	ItemsCents    int64
	ShippingCents int64
	DiscountCents int64
	TaxCents      int64
	TotalCents    int64

	PaymentProvider string
	PaymentRef      string // provider checkout session id
	PaymentID       string

	CreatedAt time.Time
	UpdatedAt time.Time
	Items     []OrderItem
}

// Balanced checks total = items + shipping + tax - discount.
func (o *Order) Balanced() bool {
	return o.TotalCents == o.ItemsCents+o.ShippingCents+o.TaxCents-o.DiscountCents
}

// OrderItem keeps a snapshot of the product at order time so later catalog
// edits do not rewrite history.
type OrderItem struct {
	ID         int64
	OrderID    string
	ProductID  string
	VariantID  *string
	Name       string
	ImageURL   string
	PriceCents int64
	Qty        int
}

func (i OrderItem) LineCents() int64 { return i.PriceCents * int64(i.Qty) }

type MovementType string

const (
	MovementOut     MovementType = "OUT"
	MovementReserve MovementType = "RESERVE"
	MovementRelease MovementType = "RELEASE"
)

type InventoryMovement struct {
	ID        int64
	Type      MovementType
	Qty       int
	ProductID string
	VariantID *string
	OrderID   string
	CreatedAt time.Time
}

// WebhookEvent is a row in the idempotency ledger: its presence means the
// provider event was handled.
type WebhookEvent struct {
	Provider  string
	EventID   string
	EventType string
	CreatedAt time.Time
}

type User struct {
	ID                 string
	Email              string
	LifetimeSpendCents int64
}

// Outcome of a guarded state change.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate" // event id already in the ledger
	OutcomeSkipped   Outcome = "skipped"   // order not pending, or nothing to act on
)

// FormatCents renders minor units as a fixed two-decimal amount, e.g. 2000 -> "20.00".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
