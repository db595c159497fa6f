package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corgi13/tejobeauty2-sub000/internal/checkout"
	"github.com/corgi13/tejobeauty2-sub000/internal/logging"
	"github.com/corgi13/tejobeauty2-sub000/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrInvalidItems),
		errors.Is(err, orders.ErrInvalidCurrency),
		errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, checkout.ErrInvalidStatus),
		errors.Is(err, checkout.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrSimulateDisabled):
		return http.StatusForbidden
	case errors.Is(err, checkout.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes. Server-side failures are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	switch {
	case code >= http.StatusInternalServerError:
		logging.FromContext(r.Context()).Error().Err(err).Msg("request failed")
		msg = "internal error"
	case code == http.StatusBadGateway:
		logging.FromContext(r.Context()).Error().Err(err).Msg("payment provider failed")
		msg = "payment provider unavailable"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}
