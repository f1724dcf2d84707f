// Package events publishes domain events to the message broker. Order events are
// best-effort: failures are logged and never reach the caller. The payment order
// message is the exception and returns its error.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/logger"
	"marketplace-checkout/internal/metrics"
)

const (
	MessageTypePaymentOrder = "payment_order"
	TargetPaymentsService   = "payments-service"
)

// Envelope wraps every payload put on the broker.
type Envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Target    string    `json:"target,omitempty"`
}

// Broker delivers an encoded message to an exchange under a routing key.
type Broker interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
	Close() error
}

type Publisher struct {
	broker   Broker
	exchange string
	source   string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

func NewPublisher(b Broker, exchange, source string, l *slog.Logger, m *metrics.Metrics) *Publisher {
	if b == nil {
		b = NopBroker{}
	}
	return &Publisher{
		broker:   b,
		exchange: exchange,
		source:   source,
		logger:   logger.OrDiscard(l),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Publish wraps payload in an Envelope and hands it to the broker.
// Failures are logged and dropped.
func (p *Publisher) Publish(ctx context.Context, routingKey, msgType string, payload any, target string) {
	_ = p.publish(ctx, routingKey, msgType, payload, target)
}

func (p *Publisher) publish(ctx context.Context, routingKey, msgType string, payload any, target string) error {
	env := Envelope{
		ID:        p.newID(),
		Type:      msgType,
		Data:      payload,
		Timestamp: p.now(),
		Source:    p.source,
		Target:    target,
	}
	body, err := json.Marshal(env)
	if err != nil {
		p.metrics.EventPublished(msgType, "error")
		p.logger.ErrorContext(ctx, "encode event", "routing_key", routingKey, "message_id", env.ID, "err", err)
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	if err := p.broker.Publish(ctx, p.exchange, routingKey, body); err != nil {
		p.metrics.EventPublished(msgType, "error")
		p.logger.ErrorContext(ctx, "failed to publish event", "exchange", p.exchange, "routing_key", routingKey, "message_id", env.ID, "err", err)
		return fmt.Errorf("publish %s: %w", msgType, err)
	}
	p.metrics.EventPublished(msgType, "ok")
	p.logger.InfoContext(ctx, "event published", "exchange", p.exchange, "routing_key", routingKey, "message_id", env.ID)
	return nil
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, ev domain.OrderCreatedEvent) {
	p.Publish(ctx, domain.EventOrderCreated, domain.EventOrderCreated, ev, "")
}

func (p *Publisher) PublishOrderConfirmed(ctx context.Context, ev domain.OrderConfirmedEvent) {
	p.Publish(ctx, domain.EventOrderConfirmed, domain.EventOrderConfirmed, ev, "")
}

func (p *Publisher) PublishOrderCancelled(ctx context.Context, ev domain.OrderCancelledEvent) {
	p.Publish(ctx, domain.EventOrderCancelled, domain.EventOrderCancelled, ev, "")
}

func (p *Publisher) PublishOrderShipped(ctx context.Context, ev domain.OrderShippedEvent) {
	p.Publish(ctx, domain.EventOrderShipped, domain.EventOrderShipped, ev, "")
}

func (p *Publisher) PublishOrderDelivered(ctx context.Context, ev domain.OrderDeliveredEvent) {
	p.Publish(ctx, domain.EventOrderDelivered, domain.EventOrderDelivered, ev, "")
}

// PublishPaymentOrder reports broker failures, unlike the order events.
func (p *Publisher) PublishPaymentOrder(ctx context.Context, msg domain.PaymentOrderMessage) error {
	return p.publish(ctx, domain.EventPaymentOrder, MessageTypePaymentOrder, msg, TargetPaymentsService)
}

// Close releases the underlying broker.
func (p *Publisher) Close() error {
	return p.broker.Close()
}

// NopBroker drops every message. Used when no broker is configured.
type NopBroker struct{}

func (NopBroker) Publish(context.Context, string, string, []byte) error { return nil }
func (NopBroker) Close() error                                          { return nil }
