package checkout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/corgi13/tejobeauty2-sub000/internal/orders"
	"github.com/corgi13/tejobeauty2-sub000/internal/payment"
)

// memStore mirrors the guarded semantics of orders.Repo in memory.
type memStore struct {
	mu        sync.Mutex
	products  map[string]orders.Product
	orders    map[string]*orders.Order
	movements []orders.InventoryMovement
	events    map[string]bool
	spend     map[string]int64
}

func newMemStore() *memStore {
	return &memStore{
		products: map[string]orders.Product{
			"p1": {ID: "p1", Name: "Vitamin C Serum", ImageURL: "https://cdn/p1.jpg", PriceCents: 1000},
			"p2": {ID: "p2", Name: "Clay Mask", PriceCents: 550},
		},
		orders: map[string]*orders.Order{},
		events: map[string]bool{},
		spend:  map[string]int64{"u1": 0},
	}
}

func (m *memStore) CreateOrder(_ context.Context, in orders.NewOrder) (*orders.Order, error) {
	cur, err := orders.NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	items, subtotal, err := orders.PriceLines(in.Items, m.products)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &orders.Order{ID: uuid.NewString(), UserID: in.UserID, Status: orders.StatusPending, Currency: cur,
		ItemsCents: subtotal, TotalCents: subtotal}
	for i := range items {
		items[i].OrderID = o.ID
	}
	o.Items = items
	m.orders[o.ID] = o
	return clone(o), nil
}

func clone(o *orders.Order) *orders.Order {
	c := *o
	c.Items = append([]orders.OrderItem(nil), o.Items...)
	return &c
}

func (m *memStore) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return clone(o), nil
}

func (m *memStore) FindByPaymentRef(_ context.Context, ref string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if ref != "" && o.PaymentRef == ref {
			return clone(o), nil
		}
	}
	return nil, orders.ErrNotFound
}

func (m *memStore) AttachPaymentSession(_ context.Context, orderID, provider, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	o.PaymentProvider, o.PaymentRef = provider, sessionID
	return nil
}

func (m *memStore) appendLocked(orderID string, typ orders.MovementType) {
	for _, it := range m.orders[orderID].Items {
		m.movements = append(m.movements, orders.InventoryMovement{
			Type: typ, Qty: it.Qty, ProductID: it.ProductID, VariantID: it.VariantID, OrderID: orderID,
		})
	}
}

func (m *memStore) Reserve(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[orderID]; !ok {
		return orders.ErrNotFound
	}
	m.appendLocked(orderID, orders.MovementReserve)
	return nil
}

func (m *memStore) guarded(ev *orders.WebhookEvent, fn func() orders.Outcome) (orders.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev != nil {
		key := ev.Provider + "/" + ev.EventID
		if m.events[key] {
			return orders.OutcomeDuplicate, nil
		}
		m.events[key] = true
	}
	return fn(), nil
}

func (m *memStore) MarkPaid(_ context.Context, orderID, paymentID string, ev *orders.WebhookEvent) (orders.Outcome, error) {
	return m.guarded(ev, func() orders.Outcome {
		o, ok := m.orders[orderID]
		if !ok || o.Status != orders.StatusPending {
			return orders.OutcomeSkipped
		}
		o.Status, o.PaymentID = orders.StatusPaid, paymentID
		m.appendLocked(orderID, orders.MovementOut)
		if o.UserID != nil {
			m.spend[*o.UserID] += o.TotalCents
		}
		return orders.OutcomeApplied
	})
}

func (m *memStore) Cancel(_ context.Context, orderID string, ev *orders.WebhookEvent) (orders.Outcome, error) {
	return m.guarded(ev, func() orders.Outcome {
		o, ok := m.orders[orderID]
		if !ok || o.Status != orders.StatusPending {
			return orders.OutcomeSkipped
		}
		o.Status = orders.StatusCancelled
		m.appendLocked(orderID, orders.MovementRelease)
		return orders.OutcomeApplied
	})
}

func (m *memStore) Abandon(_ context.Context, orderID string) (orders.Outcome, error) {
	return m.guarded(nil, func() orders.Outcome {
		o, ok := m.orders[orderID]
		if !ok || o.Status != orders.StatusPending {
			return orders.OutcomeSkipped
		}
		o.Status = orders.StatusCancelled
		return orders.OutcomeApplied
	})
}

// failingReserve is a memStore whose reservation insert fails before any row is written.
type failingReserve struct {
	*memStore
}

func (f failingReserve) Reserve(context.Context, string) error {
	return errors.New("reserve: connection reset")
}

func (m *memStore) RecordEvent(_ context.Context, ev *orders.WebhookEvent) (orders.Outcome, error) {
	return m.guarded(ev, func() orders.Outcome { return orders.OutcomeSkipped })
}

func (m *memStore) count(orderID string, typ orders.MovementType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, mv := range m.movements {
		if mv.OrderID == orderID && mv.Type == typ {
			n++
		}
	}
	return n
}

func (m *memStore) status(orderID string) orders.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID].Status
}

// fakeGateway keeps the real signature verification and replaces the REST call.
type fakeGateway struct {
	*payment.Gateway
	mu       sync.Mutex
	requests []payment.SessionRequest
	fail     error
}

func (g *fakeGateway) CreateSession(_ context.Context, req payment.SessionRequest) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.fail != nil {
		return payment.Session{}, g.fail
	}
	id := fmt.Sprintf("cs_test_%d", len(g.requests))
	return payment.Session{ID: id, URL: "https://checkout.test/" + id}, nil
}

type recPublisher struct {
	mu     sync.Mutex
	events []orders.Envelope
}

func (p *recPublisher) PublishEnvelope(env orders.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
	return nil
}

func (p *recPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type recCache struct {
	mu      sync.Mutex
	dropped []string
}

func (c *recCache) Drop(_ context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped = append(c.dropped, orderID)
	return nil
}

// syncBuffer collects log lines written from concurrent deliveries.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.b.Bytes()...)
}

func (s *syncBuffer) String() string { return string(s.Bytes()) }

func (s *syncBuffer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b.Reset()
}
