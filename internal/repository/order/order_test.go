package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-checkout/internal/db/dbtest"
	"marketplace-checkout/internal/domain"
)

func newPendingOrder(buyerID string) *domain.Order {
	o := &domain.Order{
		BuyerID:         buyerID,
		Status:          domain.OrderStatusPending,
		ShippingAddress: "1 Main St",
		BillingAddress:  "1 Main St",
		PaymentMethod:   string(domain.PaymentMethodCreditCard),
		PaymentStatus:   domain.PaymentStatusPending,
		Items: []domain.OrderItem{
			domain.NewOrderItem("p1", "Mug", "s1", decimal.RequireFromString("10.00"), 2),
			domain.NewOrderItem("p2", "Plate", "s2", decimal.RequireFromString("3.50"), 1),
		},
	}
	o.TotalAmount = o.ItemsTotal()
	return o
}

func TestPostgres_CreateAndGetLoadsItems(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.NewPool(t))

	o := newPendingOrder("u1")
	require.NoError(t, repo.Create(ctx, o))
	require.NotEmpty(t, o.ID)
	assert.False(t, o.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("23.50")))
	require.Len(t, got.Items, 2)
	assert.True(t, got.TotalAmount.Equal(got.ItemsTotal()))
	assert.Equal(t, o.ID, got.Items[0].OrderID)
	assert.Nil(t, got.PaymentID)
}

func TestPostgres_GetMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.NewPool(t))

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_SaveAndStatusUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.NewPool(t))

	o := newPendingOrder("u1")
	require.NoError(t, repo.Create(ctx, o))

	pid := "pay_1"
	o.PaymentID = &pid
	o.PaymentStatus = "completed"
	o.Status = domain.OrderStatusConfirmed
	require.NoError(t, repo.Save(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
	require.NotNil(t, got.PaymentID)
	assert.Equal(t, "pay_1", *got.PaymentID)

	require.NoError(t, repo.UpdateStatus(ctx, o.ID, domain.OrderStatusPending))
	require.NoError(t, repo.UpdatePaymentStatus(ctx, o.ID, "refunded"))
	got, err = repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, "refunded", got.PaymentStatus)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.NewString(), domain.OrderStatusShipped), domain.ErrOrderNotFound)
	assert.ErrorIs(t, repo.UpdatePaymentStatus(ctx, "bogus", "x"), domain.ErrOrderNotFound)
}

func TestPostgres_ListByBuyerNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.NewPool(t))

	first := newPendingOrder("u1")
	require.NoError(t, repo.Create(ctx, first))
	second := newPendingOrder("u1")
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, newPendingOrder("u2")))

	orders, err := repo.ListByBuyer(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
	for _, o := range orders {
		assert.Len(t, o.Items, 2)
	}

	none, err := repo.ListByBuyer(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostgres_CreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.NewPool(t))

	o := newPendingOrder("u1")
	o.Items[1].Quantity = 0 // violates the quantity check
	require.Error(t, repo.Create(ctx, o))

	_, err := repo.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
