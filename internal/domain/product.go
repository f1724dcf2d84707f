package domain

import "github.com/shopspring/decimal"

// ProductSnapshot is the catalog's view of a product at the time it was fetched.
type ProductSnapshot struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	SellerID string          `json:"sellerId"`
	IsActive bool            `json:"isActive"`
}

// CheckAvailable reports whether quantity units can be sold from this snapshot.
func (p ProductSnapshot) CheckAvailable(quantity int) error {
	if !p.IsActive {
		return ErrProductUnavailable
	}
	if p.Stock < quantity {
		return ErrInsufficientStock
	}
	return nil
}
