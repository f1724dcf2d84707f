// Package cache holds a read-through copy of each user's cart lines.
package cache

import (
	"context"
	"errors"

	"marketplace-checkout/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type CartCache interface {
	Get(ctx context.Context, userID string) ([]domain.CartLine, error)
	Set(ctx context.Context, userID string, lines []domain.CartLine) error
	Delete(ctx context.Context, userID string) error
}
