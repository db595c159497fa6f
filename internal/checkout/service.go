package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corgi13/tejobeauty2-sub000/internal/metrics"
	"github.com/corgi13/tejobeauty2-sub000/internal/orders"
	"github.com/corgi13/tejobeauty2-sub000/internal/payment"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSimulateDisabled = errors.New("payment simulation disabled")
	ErrInvalidStatus    = errors.New("invalid simulated status")
	ErrProvider         = errors.New("checkout session failed")
)

type Store interface {
	CreateOrder(ctx context.Context, in orders.NewOrder) (*orders.Order, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	FindByPaymentRef(ctx context.Context, ref string) (*orders.Order, error)
	AttachPaymentSession(ctx context.Context, orderID, provider, sessionID string) error
	Reserve(ctx context.Context, orderID string) error
	Abandon(ctx context.Context, orderID string) (orders.Outcome, error)
	MarkPaid(ctx context.Context, orderID, paymentID string, ev *orders.WebhookEvent) (orders.Outcome, error)
	Cancel(ctx context.Context, orderID string, ev *orders.WebhookEvent) (orders.Outcome, error)
	RecordEvent(ctx context.Context, ev *orders.WebhookEvent) (orders.Outcome, error)
}

type Gateway interface {
	Provider() string
	CreateSession(ctx context.Context, req payment.SessionRequest) (payment.Session, error)
	VerifyWebhook(payload []byte, header string, now time.Time) (payment.Event, error)
}

type Publisher interface {
	PublishEnvelope(env orders.Envelope) error
}

type StatusCache interface {
	Drop(ctx context.Context, orderID string) error
}

// Service runs the checkout and payment confirmation flow. Publisher and
// Cache are optional.
type Service struct {
	Store     Store
	Gateway   Gateway
	Publisher Publisher
	Cache     StatusCache
	Log       zerolog.Logger

	Producer        string // envelope producer name
	DefaultCurrency string
	SuccessURL      string
	CancelURL       string
	AllowSimulate   bool
	Now             func() time.Time
}

type CheckoutInput struct {
	UserID   *string
	Items    []orders.ItemInput
	Currency string
}

type CheckoutResult struct {
	OrderID    string
	URL        string
	Currency   string
	TotalCents int64
}

type WebhookResult struct {
	Duplicate bool
	Outcome   orders.Outcome
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Checkout creates a PENDING order, reserves its stock and opens a hosted
// payment session for it. If the session cannot be created the order is
// cancelled, which releases the reservation.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (CheckoutResult, error) {
	currency := in.Currency
	if currency == "" {
		currency = s.DefaultCurrency
	}
	o, err := s.Store.CreateOrder(ctx, orders.NewOrder{UserID: in.UserID, Items: in.Items, Currency: currency})
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("failed").Inc()
		return CheckoutResult{}, err
	}
	log := s.Log.With().Str("order_id", o.ID).Logger()

	if err := s.Store.Reserve(ctx, o.ID); err != nil {
		metrics.CheckoutSessions.WithLabelValues("failed").Inc()
		s.abandon(ctx, o, log, false)
		return CheckoutResult{}, fmt.Errorf("reserve stock: %w", err)
	}

	sess, err := s.Gateway.CreateSession(ctx, payment.SessionRequest{
		OrderID:    o.ID,
		Currency:   o.Currency,
		Lines:      sessionLines(o.Items),
		SuccessURL: s.SuccessURL,
		CancelURL:  s.CancelURL,
	})
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("provider_error").Inc()
		log.Error().Err(err).Msg("create checkout session")
		s.abandon(ctx, o, log, true)
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	if err := s.Store.AttachPaymentSession(ctx, o.ID, s.Gateway.Provider(), sess.ID); err != nil {
		metrics.CheckoutSessions.WithLabelValues("failed").Inc()
		return CheckoutResult{}, fmt.Errorf("attach session: %w", err)
	}
	metrics.CheckoutSessions.WithLabelValues("created").Inc()

	s.publish(log, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Currency:   o.Currency,
		TotalCents: o.TotalCents,
		Items:      orders.ItemQtys(o.Items),
	})
	log.Info().Str("session_id", sess.ID).Str("total", orders.FormatCents(o.TotalCents)).Msg("checkout session created")

	return CheckoutResult{OrderID: o.ID, URL: sess.URL, Currency: o.Currency, TotalCents: o.TotalCents}, nil
}

// abandon cancels an order whose checkout could not finish. Only a written
// reservation gets RELEASE movements.
func (s *Service) abandon(ctx context.Context, o *orders.Order, log zerolog.Logger, reserved bool) {
	var (
		out orders.Outcome
		err error
	)
	if reserved {
		out, err = s.Store.Cancel(ctx, o.ID, nil)
	} else {
		out, err = s.Store.Abandon(ctx, o.ID)
	}
	if err != nil {
		log.Error().Err(err).Msg("cancel abandoned order")
		return
	}
	s.afterTransition(ctx, log, o, orders.StatusCancelled, out, "checkout_failed", "")
}

func sessionLines(items []orders.OrderItem) []payment.Line {
	out := make([]payment.Line, 0, len(items))
	for _, it := range items {
		out = append(out, payment.Line{Name: it.Name, ImageURL: it.ImageURL, UnitAmount: it.PriceCents, Qty: it.Qty})
	}
	return out
}

// HandleWebhook verifies and applies one provider event. The ledger row and
// the order change commit together, so redelivering an event id is a no-op
// reported as a duplicate.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	ev, err := s.Gateway.VerifyWebhook(payload, signature, s.now())
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	log := s.Log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()
	rec := &orders.WebhookEvent{Provider: s.Gateway.Provider(), EventID: ev.ID, EventType: ev.Type}

	var (
		out    orders.Outcome
		target orders.Status
		o      *orders.Order
	)
	switch ev.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutExpired, payment.EventPaymentFailed:
		o, err = s.resolveOrder(ctx, ev.Object)
		if errors.Is(err, orders.ErrNotFound) {
			log.Warn().Str("order_id", ev.Object.OrderID).Str("object_id", ev.Object.ID).Msg("webhook references unknown order")
			out, err = s.Store.RecordEvent(ctx, rec)
			break
		}
		if err != nil {
			break
		}
		if ev.Type == payment.EventCheckoutCompleted {
			target = orders.StatusPaid
			out, err = s.Store.MarkPaid(ctx, o.ID, paymentID(ev.Object), rec)
			if err == nil && out == orders.OutcomeSkipped {
				s.reportOrphanPayment(ctx, log, o.ID, paymentID(ev.Object))
			}
		} else {
			target = orders.StatusCancelled
			out, err = s.Store.Cancel(ctx, o.ID, rec)
		}
	default:
		out, err = s.Store.RecordEvent(ctx, rec)
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		return WebhookResult{}, err
	}
	metrics.WebhookEvents.WithLabelValues(ev.Type, string(out)).Inc()

	if o != nil {
		log = log.With().Str("order_id", o.ID).Logger()
		s.afterTransition(ctx, log, o, target, out, ev.Type, paymentID(ev.Object))
	}
	log.Info().Str("outcome", string(out)).Msg("webhook handled")
	return WebhookResult{Duplicate: out == orders.OutcomeDuplicate, Outcome: out}, nil
}

// reportOrphanPayment flags a completed payment whose order can no longer be
// paid; the money has been captured and needs a manual refund.
func (s *Service) reportOrphanPayment(ctx context.Context, log zerolog.Logger, orderID, payID string) {
	status := "unknown"
	if cur, err := s.Store.GetOrder(ctx, orderID); err == nil {
		status = string(cur.Status)
		if cur.Status == orders.StatusPaid && cur.PaymentID == payID {
			return
		}
	}
	log.Error().
		Str("order_id", orderID).
		Str("payment_id", payID).
		Str("order_status", status).
		Msg("payment captured for order that is not payable, refund required")
}

// resolveOrder prefers the order id carried in metadata and falls back to the
// session id stored at checkout.
func (s *Service) resolveOrder(ctx context.Context, obj payment.EventObject) (*orders.Order, error) {
	if obj.OrderID != "" {
		o, err := s.Store.GetOrder(ctx, obj.OrderID)
		if !errors.Is(err, orders.ErrNotFound) {
			return o, err
		}
	}
	return s.Store.FindByPaymentRef(ctx, obj.ID)
}

func paymentID(obj payment.EventObject) string {
	if obj.PaymentIntent != "" {
		return obj.PaymentIntent
	}
	return obj.ID
}

// Simulate forces a pending order to paid or expired without the provider.
// Closed in production.
func (s *Service) Simulate(ctx context.Context, orderID, status string) (orders.Outcome, error) {
	if !s.AllowSimulate {
		return "", ErrSimulateDisabled
	}
	if status != "paid" && status != "expired" {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	log := s.Log.With().Str("order_id", o.ID).Str("simulated", status).Logger()

	var (
		out    orders.Outcome
		target orders.Status
		payID  string
	)
	if status == "paid" {
		target, payID = orders.StatusPaid, "sim_"+uuid.NewString()
		out, err = s.Store.MarkPaid(ctx, o.ID, payID, nil)
	} else {
		target = orders.StatusCancelled
		out, err = s.Store.Cancel(ctx, o.ID, nil)
	}
	if err != nil {
		return "", err
	}
	s.afterTransition(ctx, log, o, target, out, "simulated", payID)
	log.Info().Str("outcome", string(out)).Msg("simulated payment result")
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	return s.Store.GetOrder(ctx, id)
}

// afterTransition publishes the lifecycle event and drops the cached status.
// Neither is allowed to fail the request.
func (s *Service) afterTransition(ctx context.Context, log zerolog.Logger, o *orders.Order, to orders.Status, out orders.Outcome, reason, paymentID string) {
	if out != orders.OutcomeApplied {
		return
	}
	if s.Cache != nil {
		if err := s.Cache.Drop(ctx, o.ID); err != nil {
			log.Warn().Err(err).Msg("drop cached order status")
		}
	}
	switch to {
	case orders.StatusPaid:
		s.publish(log, orders.EventOrderPaid, o.ID, orders.OrderPaidPayload{
			OrderID: o.ID, UserID: o.UserID, PaymentID: paymentID, TotalCents: o.TotalCents,
		})
	case orders.StatusCancelled:
		s.publish(log, orders.EventOrderCancelled, o.ID, orders.OrderCancelledPayload{OrderID: o.ID, Reason: reason})
	}
}

func (s *Service) publish(log zerolog.Logger, eventType, orderID string, payload any) {
	if s.Publisher == nil {
		return
	}
	env, err := orders.NewEnvelope(eventType, s.Producer, orderID, payload)
	if err == nil {
		err = s.Publisher.PublishEnvelope(env)
	}
	if err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("publish lifecycle event")
	}
}
