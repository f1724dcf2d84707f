package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys used on the events exchange.
const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
	EventOrderShipped   = "order.shipped"
	EventOrderDelivered = "order.delivered"
	EventPaymentOrder   = "payment.order"
)

type EventItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	SellerID  string          `json:"sellerId,omitempty"`
}

type OrderCreatedEvent struct {
	OrderID     string          `json:"orderId"`
	BuyerID     string          `json:"buyerId"`
	SellerIDs   []string        `json:"sellerIds"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []EventItem     `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type OrderConfirmedEvent struct {
	OrderID     string          `json:"orderId"`
	BuyerID     string          `json:"buyerId"`
	SellerIDs   []string        `json:"sellerIds"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	PaymentID   string          `json:"paymentId"`
	Items       []EventItem     `json:"items"`
	ConfirmedAt time.Time       `json:"confirmedAt"`
}

type OrderCancelledEvent struct {
	OrderID     string    `json:"orderId"`
	BuyerID     string    `json:"buyerId"`
	SellerIDs   []string  `json:"sellerIds"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// PaymentOrderMessage is the single message of the queue-only checkout flow.
type PaymentOrderMessage struct {
	OrderID       string          `json:"orderId"`
	UserID        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Items         []EventItem     `json:"items"`
	PaymentMethod string          `json:"paymentMethod"`
	Description   string          `json:"description,omitempty"`
}

// EventItems denormalizes order items for downstream consumers.
func EventItems(items []OrderItem) []EventItem {
	out := make([]EventItem, 0, len(items))
	for _, it := range items {
		out = append(out, EventItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.UnitPrice,
			SellerID:  it.SellerID,
		})
	}
	return out
}

// OrderShippedEvent is emitted once per seller when fulfillment marks the order shipped.
type OrderShippedEvent struct {
	OrderID        string    `json:"orderId"`
	BuyerID        string    `json:"buyerId"`
	SellerID       string    `json:"sellerId"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	ShippedAt      time.Time `json:"shippedAt"`
}

type OrderDeliveredEvent struct {
	OrderID     string    `json:"orderId"`
	BuyerID     string    `json:"buyerId"`
	SellerID    string    `json:"sellerId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}
