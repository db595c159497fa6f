package httpx

import (
	"time"

	"github.com/corgi13/tejobeauty2-sub000/internal/orders"
)

type orderView struct {
	ID              string     `json:"id"`
	UserID          *string    `json:"user_id,omitempty"`
	Status          string     `json:"status"`
	Currency        string     `json:"currency"`
	ItemsTotal      string     `json:"items_total"`
	ShippingTotal   string     `json:"shipping_total"`
	DiscountTotal   string     `json:"discount_total"`
	TaxTotal        string     `json:"tax_total"`
	Total           string     `json:"total"`
	TotalCents      int64      `json:"total_cents"`
	PaymentProvider string     `json:"payment_provider,omitempty"`
	PaymentRef      string     `json:"payment_ref,omitempty"`
	Items           []itemView `json:"items"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type itemView struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Name      string  `json:"name"`
	ImageURL  string  `json:"image_url,omitempty"`
	UnitPrice string  `json:"unit_price"`
	Qty       int     `json:"qty"`
	LineTotal string  `json:"line_total"`
}

func newOrderView(o *orders.Order) orderView {
	v := orderView{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		Currency:        o.Currency,
		ItemsTotal:      orders.FormatCents(o.ItemsCents),
		ShippingTotal:   orders.FormatCents(o.ShippingCents),
		DiscountTotal:   orders.FormatCents(o.DiscountCents),
		TaxTotal:        orders.FormatCents(o.TaxCents),
		Total:           orders.FormatCents(o.TotalCents),
		TotalCents:      o.TotalCents,
		PaymentProvider: o.PaymentProvider,
		PaymentRef:      o.PaymentRef,
		Items:           make([]itemView, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, itemView{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.Name,
			ImageURL:  it.ImageURL,
			UnitPrice: orders.FormatCents(it.PriceCents),
			Qty:       it.Qty,
			LineTotal: orders.FormatCents(it.LineCents()),
		})
	}
	return v
}
