package cart

import (
	"context"

	"marketplace-checkout/internal/domain"
)

// Repository stores cart lines, one row per (user, product).
type Repository interface {
	List(ctx context.Context, userID string) ([]domain.CartLine, error)
	Get(ctx context.Context, userID, productID string) (*domain.CartLine, error)
	// Add inserts line or, when the user already holds the product, adds its quantity.
	Add(ctx context.Context, line domain.CartLine) (*domain.CartLine, error)
	SetQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, error)
	Delete(ctx context.Context, userID, productID string) error
	DeleteProducts(ctx context.Context, userID string, productIDs []string) error
	Clear(ctx context.Context, userID string) error
}
