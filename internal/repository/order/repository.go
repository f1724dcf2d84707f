package order

import (
	"context"

	"marketplace-checkout/internal/domain"
)

type Repository interface {
	// Create inserts the order and its items atomically.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	// Save writes the mutable order fields: status, payment id and payment status.
	Save(ctx context.Context, o *domain.Order) error
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, id, paymentStatus string) error
}
