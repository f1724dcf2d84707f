package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-checkout/internal/domain"
)

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	seq    int
	saves  []domain.OrderStatus
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]domain.Order{}}
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

func (r *memOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	o.CreatedAt = time.Date(2024, 1, 1, 0, 0, r.seq, 0, time.UTC)
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	r.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	c := cloneOrder(o)
	return &c, nil
}

func (r *memOrderRepo) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Order{}
	for _, o := range r.orders {
		if o.BuyerID == buyerID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memOrderRepo) Save(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	stored.Status = o.Status
	stored.PaymentID = o.PaymentID
	stored.PaymentStatus = o.PaymentStatus
	r.orders[o.ID] = stored
	r.saves = append(r.saves, o.Status)
	return nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	r.orders[id] = o
	return nil
}

func (r *memOrderRepo) UpdatePaymentStatus(_ context.Context, id, paymentStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.PaymentStatus = paymentStatus
	r.orders[id] = o
	return nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type fakeCart struct {
	mu      sync.Mutex
	lines   map[string][]domain.CartLine
	removed [][]string
}

func newFakeCart(lines ...domain.CartLine) *fakeCart {
	c := &fakeCart{lines: map[string][]domain.CartLine{}}
	for _, l := range lines {
		c.lines[l.UserID] = append(c.lines[l.UserID], l)
	}
	return c
}

func (c *fakeCart) CheckoutLines(_ context.Context, userID string) ([]domain.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CartLine{}, c.lines[userID]...), nil
}

func (c *fakeCart) RemoveProducts(_ context.Context, userID string, productIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range productIDs {
		drop[id] = true
	}
	kept := []domain.CartLine{}
	for _, l := range c.lines[userID] {
		if !drop[l.ProductID] {
			kept = append(kept, l)
		}
	}
	c.lines[userID] = kept
	c.removed = append(c.removed, productIDs)
	return nil
}

func (c *fakeCart) size(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines[userID])
}

type stockCall struct {
	productID string
	delta     int
}

type fakeCatalog struct {
	mu          sync.Mutex
	products    map[string]domain.ProductSnapshot
	validateErr error
	stockErr    map[string]error
	stockCalls  []stockCall
}

func (c *fakeCatalog) ValidateProducts(_ context.Context, ids []string) ([]domain.ProductSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.validateErr != nil {
		return nil, c.validateErr
	}
	out := make([]domain.ProductSnapshot, 0, len(ids))
	for _, id := range ids {
		p, ok := c.products[id]
		if !ok {
			return nil, domain.ErrProductNotFound
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *fakeCatalog) UpdateStock(_ context.Context, id string, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stockCalls = append(c.stockCalls, stockCall{id, delta})
	if err := c.stockErr[id]; err != nil {
		return err
	}
	p := c.products[id]
	p.Stock += delta
	c.products[id] = p
	return nil
}

func (c *fakeCatalog) calls() []stockCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]stockCall(nil), c.stockCalls...)
}

type fakePayments struct {
	mu       sync.Mutex
	result   domain.PaymentResult
	err      error
	requests []domain.PaymentRequest
	before   func()
}

func (p *fakePayments) ProcessPayment(_ context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	if p.before != nil {
		p.before()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return p.result, p.err
}

type recordedEvent struct {
	key     string
	payload any
}

type recordingEvents struct {
	mu              sync.Mutex
	events          []recordedEvent
	paymentOrderErr error
}

func (r *recordingEvents) add(key string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{key, payload})
}

func (r *recordingEvents) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.key)
	}
	return out
}

func (r *recordingEvents) PublishOrderCreated(_ context.Context, ev domain.OrderCreatedEvent) {
	r.add(domain.EventOrderCreated, ev)
}

func (r *recordingEvents) PublishOrderConfirmed(_ context.Context, ev domain.OrderConfirmedEvent) {
	r.add(domain.EventOrderConfirmed, ev)
}

func (r *recordingEvents) PublishOrderCancelled(_ context.Context, ev domain.OrderCancelledEvent) {
	r.add(domain.EventOrderCancelled, ev)
}

func (r *recordingEvents) PublishOrderShipped(_ context.Context, ev domain.OrderShippedEvent) {
	r.add(domain.EventOrderShipped, ev)
}

func (r *recordingEvents) PublishOrderDelivered(_ context.Context, ev domain.OrderDeliveredEvent) {
	r.add(domain.EventOrderDelivered, ev)
}

func (r *recordingEvents) PublishPaymentOrder(_ context.Context, msg domain.PaymentOrderMessage) error {
	if r.paymentOrderErr != nil {
		return r.paymentOrderErr
	}
	r.add(domain.EventPaymentOrder, msg)
	return nil
}
