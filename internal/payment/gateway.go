package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const ProviderStripe = "stripe"

var ErrProvider = errors.New("payment provider error")

type Options struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Tolerance     time.Duration
	Timeout       time.Duration
}

// Gateway talks to a Stripe-compatible checkout API.
type Gateway struct {
	http      *resty.Client
	secret    []byte
	tolerance time.Duration
}

func New(o Options) *Gateway {
	if o.Tolerance <= 0 {
		o.Tolerance = 5 * time.Minute
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(o.BaseURL, "/")).
		SetTimeout(o.Timeout).
		SetAuthToken(o.SecretKey).
		SetHeader("Accept", "application/json")
	return &Gateway{http: c, secret: []byte(o.WebhookSecret), tolerance: o.Tolerance}
}

func (g *Gateway) Provider() string { return ProviderStripe }

type Line struct {
	Name       string
	ImageURL   string
	UnitAmount int64 // minor units
	Qty        int
}

type SessionRequest struct {
	OrderID    string
	Currency   string
	Lines      []Line
	SuccessURL string // "{ORDER_ID}" is replaced with the order id
	CancelURL  string
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession opens a hosted checkout for one order. The order id travels as
// client_reference_id and as metadata on both the session and the payment
// intent, so every later webhook can be traced back to it.
func (g *Gateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if len(req.Lines) == 0 {
		return Session{}, fmt.Errorf("%w: no line items", ErrProvider)
	}
	form := map[string]string{
		"mode":                                    "payment",
		"client_reference_id":                     req.OrderID,
		"metadata[order_id]":                      req.OrderID,
		"payment_intent_data[metadata][order_id]": req.OrderID,
		"success_url":                             withOrderID(req.SuccessURL, req.OrderID),
		"cancel_url":                              withOrderID(req.CancelURL, req.OrderID),
	}
	cur := strings.ToLower(req.Currency)
	for i, l := range req.Lines {
		p := "line_items[" + strconv.Itoa(i) + "]"
		form[p+"[quantity]"] = strconv.Itoa(l.Qty)
		form[p+"[price_data][currency]"] = cur
		form[p+"[price_data][unit_amount]"] = strconv.FormatInt(l.UnitAmount, 10)
		form[p+"[price_data][product_data][name]"] = l.Name
		if l.ImageURL != "" {
			form[p+"[price_data][product_data][images][0]"] = l.ImageURL
		}
	}

	var (
		out    Session
		apiErr apiError
	)
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", "checkout-"+req.OrderID).
		SetFormData(form).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/checkout/sessions")
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.String()
		}
		return Session{}, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode(), msg)
	}
	if out.ID == "" || out.URL == "" {
		return Session{}, fmt.Errorf("%w: session response missing id or url", ErrProvider)
	}
	return out, nil
}

func withOrderID(u, orderID string) string {
	return strings.ReplaceAll(u, "{ORDER_ID}", orderID)
}
