package order

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/logger"
	"marketplace-checkout/internal/metrics"
	orderrepo "marketplace-checkout/internal/repository/order"
)

type cartStore interface {
	CheckoutLines(ctx context.Context, userID string) ([]domain.CartLine, error)
	RemoveProducts(ctx context.Context, userID string, productIDs []string) error
}

type productCatalog interface {
	ValidateProducts(ctx context.Context, ids []string) ([]domain.ProductSnapshot, error)
	UpdateStock(ctx context.Context, id string, delta int) error
}

type paymentProcessor interface {
	ProcessPayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error)
}

type eventPublisher interface {
	PublishOrderCreated(ctx context.Context, ev domain.OrderCreatedEvent)
	PublishOrderConfirmed(ctx context.Context, ev domain.OrderConfirmedEvent)
	PublishOrderCancelled(ctx context.Context, ev domain.OrderCancelledEvent)
	PublishOrderShipped(ctx context.Context, ev domain.OrderShippedEvent)
	PublishOrderDelivered(ctx context.Context, ev domain.OrderDeliveredEvent)
	PublishPaymentOrder(ctx context.Context, msg domain.PaymentOrderMessage) error
}

type Deps struct {
	Repo     orderrepo.Repository
	Cart     cartStore
	Catalog  productCatalog
	Payments paymentProcessor
	Events   eventPublisher
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Service runs the checkout saga and serves order queries.
type Service struct {
	repo     orderrepo.Repository
	cart     cartStore
	catalog  productCatalog
	payments paymentProcessor
	events   eventPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

func New(d Deps) *Service {
	return &Service{
		repo:     d.Repo,
		cart:     d.Cart,
		catalog:  d.Catalog,
		payments: d.Payments,
		events:   d.Events,
		logger:   logger.OrDiscard(d.Logger),
		metrics:  d.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *Service) FindOne(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByBuyer returns the buyer's orders newest first, items included.
func (s *Service) FindByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.repo.ListByBuyer(ctx, buyerID)
}

type UpdateStatusInput struct {
	Status         string
	TrackingNumber string
}

// UpdateStatus sets any known status regardless of the current one.
func (s *Service) UpdateStatus(ctx context.Context, id string, in UpdateStatusInput) (*domain.Order, error) {
	status, err := domain.ParseOrderStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "order status updated", "order_id", id, "status", status)

	switch status {
	case domain.OrderStatusShipped:
		for _, seller := range o.SellerIDs() {
			s.events.PublishOrderShipped(ctx, domain.OrderShippedEvent{
				OrderID:        o.ID,
				BuyerID:        o.BuyerID,
				SellerID:       seller,
				TrackingNumber: in.TrackingNumber,
				ShippedAt:      s.now(),
			})
		}
	case domain.OrderStatusDelivered:
		for _, seller := range o.SellerIDs() {
			s.events.PublishOrderDelivered(ctx, domain.OrderDeliveredEvent{
				OrderID:     o.ID,
				BuyerID:     o.BuyerID,
				SellerID:    seller,
				DeliveredAt: s.now(),
			})
		}
	}
	return o, nil
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, id, paymentStatus string) (*domain.Order, error) {
	paymentStatus = strings.TrimSpace(paymentStatus)
	if paymentStatus == "" {
		return nil, fmt.Errorf("%w: payment status required", domain.ErrValidation)
	}
	if err := s.repo.UpdatePaymentStatus(ctx, id, paymentStatus); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
