package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"marketplace-checkout/internal/cache"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/logger"
	cartrepo "marketplace-checkout/internal/repository/cart"
)

type productCatalog interface {
	GetProduct(ctx context.Context, id string) (domain.ProductSnapshot, error)
}

type Service struct {
	repo    cartrepo.Repository
	catalog productCatalog
	cache   cache.CartCache
	logger  *slog.Logger
}

// New builds the cart service. c may be nil, in which case every read goes to the repository.
func New(repo cartrepo.Repository, catalog productCatalog, c cache.CartCache, l *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, cache: c, logger: logger.OrDiscard(l)}
}

func (s *Service) AddToCart(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, error) {
	if err := validateRef(userID, productID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := product.CheckAvailable(quantity); err != nil {
		return nil, err
	}

	// Name, price and seller are captured on first insert; later adds only merge quantity.
	line, err := s.repo.Add(ctx, domain.CartLine{
		UserID:      userID,
		ProductID:   productID,
		ProductName: product.Name,
		UnitPrice:   domain.RoundMoney(product.Price),
		Quantity:    quantity,
		SellerID:    product.SellerID,
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return line, nil
}

// GetCart returns the user's lines, newest first.
func (s *Service) GetCart(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if s.cache != nil {
		lines, err := s.cache.Get(ctx, userID)
		if err == nil {
			return lines, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "cart cache read failed", "user_id", userID, "err", err)
		}
	}

	lines, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, lines); err != nil {
			s.logger.WarnContext(ctx, "cart cache write failed", "user_id", userID, "err", err)
		}
	}
	return lines, nil
}

// CheckoutLines reads the user's lines straight from the repository. A cached
// copy may predate a concurrent update, so checkout never charges from it.
func (s *Service) CheckoutLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id required", domain.ErrValidation)
	}
	return s.repo.List(ctx, userID)
}

func (s *Service) GetCartTotal(ctx context.Context, userID string) (domain.CartTotal, error) {
	lines, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.CartTotal{}, err
	}
	return domain.CartTotal{Total: domain.SumCart(lines), Items: lines}, nil
}

// UpdateCartItem sets an absolute quantity after re-checking catalog stock.
func (s *Service) UpdateCartItem(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, error) {
	if err := validateRef(userID, productID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, userID, productID); err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Stock < quantity {
		return nil, domain.ErrInsufficientStock
	}

	line, err := s.repo.SetQuantity(ctx, userID, productID, quantity)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return line, nil
}

func (s *Service) RemoveFromCart(ctx context.Context, userID, productID string) error {
	if err := validateRef(userID, productID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, productID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// RemoveProducts drops only the given products, leaving lines added since checkout started.
func (s *Service) RemoveProducts(ctx context.Context, userID string, productIDs []string) error {
	if err := s.repo.DeleteProducts(ctx, userID, productIDs); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "cart cache invalidation failed", "user_id", userID, "err", err)
	}
}

func validateRef(userID, productID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id required", domain.ErrValidation)
	}
	if strings.TrimSpace(productID) == "" {
		return fmt.Errorf("%w: product id required", domain.ErrValidation)
	}
	return nil
}
