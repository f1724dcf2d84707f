package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one pending product in a user's cart, unique per (UserID, ProductID).
type CartLine struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"productPrice"`
	Quantity    int             `json:"quantity"`
	SellerID    string          `json:"sellerId"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CartTotal struct {
	Total decimal.Decimal `json:"total"`
	Items []CartLine      `json:"items"`
}

// SumCart totals the captured unit prices of the given lines.
func SumCart(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}
