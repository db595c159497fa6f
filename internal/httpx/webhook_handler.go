package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const (
	SignatureHeader = "Stripe-Signature"
	maxWebhookBody  = 1 << 20
)

// WebhookHandler takes the raw provider payload; nothing may decode the body
// before the signature is checked.
type WebhookHandler struct {
	Checkout CheckoutService
}

type WebhookResp struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate"`
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/payment", h.receive)
}

func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	// non-2xx makes the provider redeliver, which the ledger absorbs
	res, err := h.Checkout.HandleWebhook(r.Context(), body, r.Header.Get(SignatureHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WebhookResp{Received: true, Duplicate: res.Duplicate})
}
