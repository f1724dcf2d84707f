package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"marketplace-checkout/internal/domain"
	cartrepo "marketplace-checkout/internal/repository/cart"
)

const DemoBuyerID = "demo-buyer"

type lineSeed struct {
	ProductID string
	Name      string
	Price     string
	Quantity  int
	SellerID  string
}

var demoCart = []lineSeed{
	{
		ProductID: "8f6c1e52-3f0a-4c0e-9d5e-1a2b3c4d5e01",
		Name:      "Demo T-Shirt",
		Price:     "19.99",
		Quantity:  2,
		SellerID:  "demo-seller-apparel",
	},
	{
		ProductID: "8f6c1e52-3f0a-4c0e-9d5e-1a2b3c4d5e02",
		Name:      "Demo Mug",
		Price:     "12.99",
		Quantity:  1,
		SellerID:  "demo-seller-home",
	},
}

// Apply fills the demo buyer's cart for manual checkout testing. Rerunning it
// resets the quantities instead of adding to them.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	return apply(ctx, cartrepo.NewPostgres(pool), DemoBuyerID, demoCart)
}

func apply(ctx context.Context, repo cartrepo.Repository, userID string, lines []lineSeed) error {
	for _, l := range lines {
		if err := upsertLine(ctx, repo, userID, l); err != nil {
			return fmt.Errorf("seed cart line %s: %w", l.ProductID, err)
		}
	}
	return nil
}

func upsertLine(ctx context.Context, repo cartrepo.Repository, userID string, l lineSeed) error {
	price, err := decimal.NewFromString(l.Price)
	if err != nil {
		return err
	}
	_, err = repo.Get(ctx, userID, l.ProductID)
	switch {
	case err == nil:
		_, err = repo.SetQuantity(ctx, userID, l.ProductID, l.Quantity)
		return err
	case errors.Is(err, domain.ErrCartItemNotFound):
		_, err = repo.Add(ctx, domain.CartLine{
			UserID:      userID,
			ProductID:   l.ProductID,
			ProductName: l.Name,
			UnitPrice:   price,
			Quantity:    l.Quantity,
			SellerID:    l.SellerID,
		})
		return err
	default:
		return err
	}
}
