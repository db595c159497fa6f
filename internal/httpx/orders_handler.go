package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/corgi13/tejobeauty2-sub000/internal/checkout"
	"github.com/corgi13/tejobeauty2-sub000/internal/logging"
	"github.com/corgi13/tejobeauty2-sub000/internal/orders"
)

type CheckoutService interface {
	Checkout(ctx context.Context, in checkout.CheckoutInput) (checkout.CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (checkout.WebhookResult, error)
	Simulate(ctx context.Context, orderID, status string) (orders.Outcome, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
}

type Catalog interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) ([]byte, bool)
	Set(ctx context.Context, orderID string, body []byte) error
}

type OrdersHandler struct {
	Checkout CheckoutService
	Catalog  Catalog
	Cache    StatusCache // optional
}

type CheckoutReq struct {
	UserID   *string            `json:"user_id,omitempty"`
	Currency string             `json:"currency"`
	Items    []orders.ItemInput `json:"items"`
}

type CheckoutResp struct {
	OrderID    string `json:"order_id"`
	URL        string `json:"url"`
	Total      string `json:"total"`
	TotalCents int64  `json:"total_cents"`
	Currency   string `json:"currency"`
}

type SimulateReq struct {
	Status string `json:"status"` // paid | expired
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/checkout", h.checkout)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/simulate", h.simulate)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.Checkout(ctx, checkout.CheckoutInput{UserID: req.UserID, Items: req.Items, Currency: req.Currency})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckoutResp{
		OrderID:    res.OrderID,
		URL:        res.URL,
		Total:      orders.FormatCents(res.TotalCents),
		TotalCents: res.TotalCents,
		Currency:   res.Currency,
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Cache != nil {
		if b, ok := h.Cache.Get(ctx, orderID); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(b)
			return
		}
	}

	// 2) fallback DB
	o, err := h.Checkout.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := json.Marshal(newOrderView(o))
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Pending orders are polled while payment settles; only cache once the
	// payment flow can no longer change them.
	if h.Cache != nil && o.Status.Terminal() {
		if err := h.Cache.Set(ctx, o.ID, b); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("order_id", o.ID).Msg("cache order view")
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *OrdersHandler) simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	out, err := h.Checkout.Simulate(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(out)})
}
