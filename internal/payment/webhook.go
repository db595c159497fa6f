package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

type Event struct {
	ID     string
	Type   string
	Object EventObject
}

// EventObject is the part of data.object the order flow needs. For checkout
// events ID is the session id; for payment intent events it is the intent id.
type EventObject struct {
	ID            string
	PaymentIntent string
	OrderID       string
}

type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string            `json:"id"`
			Object            string            `json:"object"`
			PaymentIntent     json.RawMessage   `json:"payment_intent"`
			ClientReferenceID string            `json:"client_reference_id"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook checks the signature header against the raw payload and
// decodes the event. Nothing is trusted before the signature matches.
func (g *Gateway) VerifyWebhook(payload []byte, header string, now time.Time) (Event, error) {
	if len(g.secret) == 0 {
		return Event{}, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return Event{}, err
	}
	if d := now.Sub(ts); d > g.tolerance || d < -g.tolerance {
		return Event{}, fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}
	want := computeSignature(g.secret, ts, payload)
	ok := false
	for _, s := range sigs {
		if hmac.Equal(s, want) {
			ok = true
			break
		}
	}
	if !ok {
		return Event{}, fmt.Errorf("%w: no matching v1 signature", ErrInvalidSignature)
	}
	return ParseEvent(payload)
}

func ParseEvent(payload []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if raw.ID == "" || raw.Type == "" {
		return Event{}, fmt.Errorf("%w: id and type required", ErrMalformedEvent)
	}
	obj := raw.Data.Object
	ev := Event{ID: raw.ID, Type: raw.Type, Object: EventObject{
		ID:            obj.ID,
		PaymentIntent: paymentIntentID(obj.PaymentIntent),
		OrderID:       obj.Metadata["order_id"],
	}}
	if ev.Object.OrderID == "" {
		ev.Object.OrderID = obj.ClientReferenceID
	}
	if ev.Object.PaymentIntent == "" && obj.Object == "payment_intent" {
		ev.Object.PaymentIntent = obj.ID
	}
	return ev, nil
}

// payment_intent is either an id or, when expanded, an object with one.
func paymentIntentID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &obj)
	return obj.ID
}

// Sign builds a signature header for payload, as the provider would send it.
func Sign(secret string, ts time.Time, payload []byte) string {
	sig := computeSignature([]byte(secret), ts, payload)
	return "t=" + strconv.FormatInt(ts.Unix(), 10) + ",v1=" + hex.EncodeToString(sig)
}

func computeSignature(secret []byte, ts time.Time, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (time.Time, [][]byte, error) {
	var (
		ts   time.Time
		sigs [][]byte
	)
	if header == "" {
		return ts, nil, fmt.Errorf("%w: missing header", ErrInvalidSignature)
	}
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ts, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			ts = time.Unix(n, 0)
		case "v1":
			b, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			sigs = append(sigs, b)
		}
	}
	if ts.IsZero() || len(sigs) == 0 {
		return ts, nil, fmt.Errorf("%w: header needs t and v1", ErrInvalidSignature)
	}
	return ts, sigs, nil
}
