package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"
)

const orderColumns = `id::text, buyer_id, status, total_amount::text, shipping_address, billing_address,
       payment_method, payment_id, payment_status, notes, created_at, updated_at`

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
INSERT INTO orders (id, buyer_id, status, total_amount, shipping_address, billing_address,
                    payment_method, payment_id, payment_status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at, updated_at
`,
			o.ID, o.BuyerID, string(o.Status), o.TotalAmount.String(), o.ShippingAddress, o.BillingAddress,
			o.PaymentMethod, o.PaymentID, o.PaymentStatus, o.Notes,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for i := range o.Items {
			it := &o.Items[i]
			if it.ID == "" {
				it.ID = uuid.NewString()
			}
			it.OrderID = o.ID
			batch.Queue(`
INSERT INTO order_items (id, order_id, product_id, product_name, unit_price, quantity, line_total, seller_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, it.ID, it.OrderID, it.ProductID, it.ProductName, it.UnitPrice.String(), it.Quantity, it.LineTotal.String(), it.SellerID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrOrderNotFound
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}
	return o, nil
}

func (r *postgresRepo) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE buyer_id = $1
ORDER BY created_at DESC, id
`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	ids := []string{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}
	return orders, nil
}

func (r *postgresRepo) Save(ctx context.Context, o *domain.Order) error {
	err := r.pool.QueryRow(ctx, `
UPDATE orders
SET status = $2, payment_id = $3, payment_status = $4, updated_at = NOW()
WHERE id = $1
RETURNING updated_at
`, o.ID, string(o.Status), o.PaymentID, o.PaymentStatus).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	return err
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	return r.exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
}

func (r *postgresRepo) UpdatePaymentStatus(ctx context.Context, id, paymentStatus string) error {
	return r.exec(ctx, `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, paymentStatus)
}

func (r *postgresRepo) exec(ctx context.Context, q, id string, arg any) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrOrderNotFound
	}
	cmd, err := r.pool.Exec(ctx, q, id, arg)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepo) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id::text, order_id::text, product_id, product_name, unit_price::text, quantity, line_total::text, seller_id
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id, product_id
`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			it               domain.OrderItem
			unitPrice, total string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &unitPrice, &it.Quantity, &total, &it.SellerID); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("parse unit_price %q: %w", unitPrice, err)
		}
		if it.LineTotal, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse line_total %q: %w", total, err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
		total  string
	)
	if err := row.Scan(
		&o.ID,
		&o.BuyerID,
		&status,
		&total,
		&o.ShippingAddress,
		&o.BillingAddress,
		&o.PaymentMethod,
		&o.PaymentID,
		&o.PaymentStatus,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total_amount %q: %w", total, err)
	}
	o.Status = domain.OrderStatus(status)
	o.TotalAmount = amount
	return &o, nil
}
