package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace-checkout/internal/domain"
)

const (
	flowCart   = "cart"
	flowDirect = "direct"
	flowQueue  = "queue"
)

type CheckoutInput struct {
	PaymentMethod   string
	Notes           string
	ShippingAddress string
	BillingAddress  string
}

type ItemInput struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	Items           []ItemInput
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	Notes           string
}

type QueueResult struct {
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

// StockDecrementError reports a stock update that failed after payment was captured.
// The order is left CONFIRMED and the charge is not refunded; reconciling stock
// is up to the operator.
type StockDecrementError struct {
	OrderID   string
	ProductID string
	Err       error
}

func (e *StockDecrementError) Error() string {
	return fmt.Sprintf("order %s confirmed but stock decrement for product %s failed: %v", e.OrderID, e.ProductID, e.Err)
}

func (e *StockDecrementError) Unwrap() error { return e.Err }

// Checkout turns the user's cart into a confirmed order, priced at the cart's captured prices.
func (s *Service) Checkout(ctx context.Context, userID string, in CheckoutInput) (*domain.Order, error) {
	lines, err := s.checkoutLines(ctx, userID, in.PaymentMethod)
	if err != nil {
		s.metrics.CheckoutOutcome(flowCart, "rejected")
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.catalog.ValidateProducts(ctx, ids)
	if err != nil {
		s.metrics.CheckoutOutcome(flowCart, "rejected")
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for i, l := range lines {
		if err := products[i].CheckAvailable(l.Quantity); err != nil {
			s.metrics.CheckoutOutcome(flowCart, "rejected")
			return nil, fmt.Errorf("%w: %s", err, l.ProductID)
		}
		items = append(items, domain.NewOrderItem(l.ProductID, l.ProductName, l.SellerID, l.UnitPrice, l.Quantity))
	}

	o := s.newOrder(userID, items, in.ShippingAddress, in.BillingAddress, in.PaymentMethod, in.Notes)
	return s.run(ctx, flowCart, o, func(ctx context.Context) error {
		return s.cart.RemoveProducts(ctx, userID, ids)
	})
}

// CreateOrder places an order for explicit items at current catalog prices.
// The buyer's cart is left untouched.
func (s *Service) CreateOrder(ctx context.Context, buyerID string, in CreateOrderInput) (*domain.Order, error) {
	requested, err := validateCreate(buyerID, in)
	if err != nil {
		s.metrics.CheckoutOutcome(flowDirect, "rejected")
		return nil, err
	}

	ids := make([]string, 0, len(requested))
	for _, it := range requested {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.ValidateProducts(ctx, ids)
	if err != nil {
		s.metrics.CheckoutOutcome(flowDirect, "rejected")
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(requested))
	for i, it := range requested {
		p := products[i]
		if err := p.CheckAvailable(it.Quantity); err != nil {
			s.metrics.CheckoutOutcome(flowDirect, "rejected")
			return nil, fmt.Errorf("%w: %s", err, it.ProductID)
		}
		items = append(items, domain.NewOrderItem(it.ProductID, p.Name, p.SellerID, p.Price, it.Quantity))
	}

	o := s.newOrder(buyerID, items, in.ShippingAddress, in.BillingAddress, in.PaymentMethod, in.Notes)
	return s.run(ctx, flowDirect, o, nil)
}

// QueueCheckout hands the cart to the payments service as a single message
// instead of running the saga inline.
func (s *Service) QueueCheckout(ctx context.Context, userID string, in CheckoutInput) (QueueResult, error) {
	lines, err := s.checkoutLines(ctx, userID, in.PaymentMethod)
	if err != nil {
		s.metrics.CheckoutOutcome(flowQueue, "rejected")
		return QueueResult{}, err
	}

	orderID := s.newID()
	ids := make([]string, 0, len(lines))
	items := make([]domain.EventItem, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
		items = append(items, domain.EventItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
			SellerID:  l.SellerID,
		})
	}
	description := strings.TrimSpace(in.Notes)
	if description == "" {
		description = "Order " + orderID
	}

	// The message is the only record of a queued order; without it the cart must stay.
	err = s.events.PublishPaymentOrder(ctx, domain.PaymentOrderMessage{
		OrderID:       orderID,
		UserID:        userID,
		Amount:        domain.SumCart(lines),
		Items:         items,
		PaymentMethod: in.PaymentMethod,
		Description:   description,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "payment order not queued, cart kept", "order_id", orderID, "user_id", userID, "err", err)
		s.metrics.CheckoutOutcome(flowQueue, "error")
		return QueueResult{}, fmt.Errorf("%w: payment order not queued: %v", domain.ErrServiceUnavailable, err)
	}

	if err := s.cart.RemoveProducts(ctx, userID, ids); err != nil {
		s.logger.ErrorContext(ctx, "clear cart after queued checkout", "order_id", orderID, "user_id", userID, "err", err)
		s.metrics.CheckoutOutcome(flowQueue, "error")
		return QueueResult{}, err
	}

	s.logger.InfoContext(ctx, "checkout queued", "order_id", orderID, "user_id", userID, "lines", len(lines))
	s.metrics.CheckoutOutcome(flowQueue, "queued")
	return QueueResult{
		OrderID: orderID,
		Message: "Checkout processed successfully. Payment order created.",
	}, nil
}

// run executes the saga from persistence onward. Steps are strictly sequential.
func (s *Service) run(ctx context.Context, flow string, o *domain.Order, clearCart func(context.Context) error) (*domain.Order, error) {
	o.TotalAmount = o.ItemsTotal()
	log := s.logger.With("flow", flow, "order_id", o.ID, "buyer_id", o.BuyerID)

	if err := s.repo.Create(ctx, o); err != nil {
		log.ErrorContext(ctx, "persist pending order", "err", err)
		s.metrics.CheckoutOutcome(flow, "error")
		return nil, err
	}
	log.InfoContext(ctx, "order created", "total", o.TotalAmount.StringFixed(2), "items", len(o.Items))
	s.events.PublishOrderCreated(ctx, domain.OrderCreatedEvent{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		SellerIDs:   o.SellerIDs(),
		TotalAmount: o.TotalAmount,
		Items:       domain.EventItems(o.Items),
		CreatedAt:   o.CreatedAt,
	})

	res, err := s.payments.ProcessPayment(ctx, domain.PaymentRequest{
		OrderID:       o.ID,
		Amount:        o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		BuyerID:       o.BuyerID,
	})
	if err != nil {
		log.ErrorContext(ctx, "payment failed, cancelling order", "err", err)
		s.cancel(context.WithoutCancel(ctx), o, err)
		s.metrics.CheckoutOutcome(flow, "cancelled")
		return nil, err
	}

	// Payment is captured; from here on the caller can no longer abort the saga.
	ctx = context.WithoutCancel(ctx)

	o.PaymentID = &res.PaymentID
	o.PaymentStatus = res.Status
	o.Status = domain.OrderStatusConfirmed
	if err := s.repo.Save(ctx, o); err != nil {
		log.ErrorContext(ctx, "persist confirmed order", "payment_id", res.PaymentID, "err", err)
		s.metrics.CheckoutOutcome(flow, "error")
		return nil, err
	}
	log.InfoContext(ctx, "payment captured", "payment_id", res.PaymentID, "payment_status", res.Status)

	// A failed decrement is surfaced, not compensated: there is no refund or void.
	for _, it := range o.Items {
		if err := s.catalog.UpdateStock(ctx, it.ProductID, -it.Quantity); err != nil {
			log.ErrorContext(ctx, "stock decrement failed after payment", "product_id", it.ProductID, "quantity", it.Quantity, "err", err)
			s.metrics.CheckoutOutcome(flow, "stock_failed")
			return nil, &StockDecrementError{OrderID: o.ID, ProductID: it.ProductID, Err: err}
		}
	}

	if clearCart != nil {
		if err := clearCart(ctx); err != nil {
			log.WarnContext(ctx, "clear checked-out cart lines", "err", err)
		}
	}

	s.events.PublishOrderConfirmed(ctx, domain.OrderConfirmedEvent{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		SellerIDs:   o.SellerIDs(),
		TotalAmount: o.TotalAmount,
		PaymentID:   res.PaymentID,
		Items:       domain.EventItems(o.Items),
		ConfirmedAt: s.now(),
	})
	s.metrics.CheckoutOutcome(flow, "confirmed")
	log.InfoContext(ctx, "order confirmed")

	return s.repo.GetByID(ctx, o.ID)
}

// cancel is the saga's only compensation: the order row is kept as a CANCELLED record.
func (s *Service) cancel(ctx context.Context, o *domain.Order, cause error) {
	o.Status = domain.OrderStatusCancelled
	if err := s.repo.Save(ctx, o); err != nil {
		s.logger.ErrorContext(ctx, "persist cancelled order", "order_id", o.ID, "err", err)
	}
	s.events.PublishOrderCancelled(ctx, domain.OrderCancelledEvent{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		SellerIDs:   o.SellerIDs(),
		Reason:      cause.Error(),
		CancelledAt: s.now(),
	})
}

func (s *Service) checkoutLines(ctx context.Context, userID, paymentMethod string) ([]domain.CartLine, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id required", domain.ErrValidation)
	}
	if !domain.PaymentMethod(paymentMethod).Valid() {
		return nil, fmt.Errorf("%w: unsupported payment method %q", domain.ErrValidation, paymentMethod)
	}
	lines, err := s.cart.CheckoutLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	return lines, nil
}

func (s *Service) newOrder(buyerID string, items []domain.OrderItem, shipping, billing, method, notes string) *domain.Order {
	o := &domain.Order{
		ID:              s.newID(),
		BuyerID:         buyerID,
		Status:          domain.OrderStatusPending,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		PaymentMethod:   method,
		PaymentStatus:   domain.PaymentStatusPending,
		Items:           items,
	}
	if n := strings.TrimSpace(notes); n != "" {
		o.Notes = &n
	}
	return o
}

// validateCreate checks the request shape and merges repeated product ids,
// keeping the order in which products first appear.
func validateCreate(buyerID string, in CreateOrderInput) ([]ItemInput, error) {
	var errs []error
	if strings.TrimSpace(buyerID) == "" {
		errs = append(errs, errors.New("buyer id required"))
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		errs = append(errs, errors.New("payment method required"))
	}
	if len(in.Items) == 0 {
		errs = append(errs, errors.New("at least one item required"))
	}

	merged := make([]ItemInput, 0, len(in.Items))
	index := make(map[string]int, len(in.Items))
	for i, it := range in.Items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			errs = append(errs, fmt.Errorf("items[%d]: product id required", i))
			continue
		}
		if it.Quantity < 1 {
			errs = append(errs, fmt.Errorf("items[%d]: quantity must be at least 1", i))
			continue
		}
		if j, ok := index[id]; ok {
			merged[j].Quantity += it.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, ItemInput{ProductID: id, Quantity: it.Quantity})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, errors.Join(errs...))
	}
	return merged, nil
}
