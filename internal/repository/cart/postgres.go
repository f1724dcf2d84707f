package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"marketplace-checkout/internal/domain"
)

const lineColumns = `id::text, user_id, product_id, product_name, unit_price::text, quantity, seller_id, created_at, updated_at`

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) List(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+lineColumns+`
FROM cart_items
WHERE user_id = $1
ORDER BY created_at DESC, id
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *postgresRepo) Get(ctx context.Context, userID, productID string) (*domain.CartLine, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+lineColumns+`
FROM cart_items
WHERE user_id = $1 AND product_id = $2
`, userID, productID)
	line, err := scanLine(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCartItemNotFound
	}
	return line, err
}

func (r *postgresRepo) Add(ctx context.Context, in domain.CartLine) (*domain.CartLine, error) {
	// The unique key makes concurrent adds of the same product merge instead of duplicating.
	row := r.pool.QueryRow(ctx, `
INSERT INTO cart_items (user_id, product_id, product_name, unit_price, quantity, seller_id)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, product_id)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity,
              updated_at = NOW()
RETURNING `+lineColumns,
		in.UserID, in.ProductID, in.ProductName, in.UnitPrice.String(), in.Quantity, in.SellerID)
	return scanLine(row)
}

func (r *postgresRepo) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE cart_items
SET quantity = $3, updated_at = NOW()
WHERE user_id = $1 AND product_id = $2
RETURNING `+lineColumns,
		userID, productID, quantity)
	line, err := scanLine(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCartItemNotFound
	}
	return line, err
}

func (r *postgresRepo) Delete(ctx context.Context, userID, productID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteProducts(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)`, userID, productIDs)
	return err
}

func (r *postgresRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func scanLine(row pgx.Row) (*domain.CartLine, error) {
	var (
		line  domain.CartLine
		price string
	)
	if err := row.Scan(
		&line.ID,
		&line.UserID,
		&line.ProductID,
		&line.ProductName,
		&price,
		&line.Quantity,
		&line.SellerID,
		&line.CreatedAt,
		&line.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse unit_price %q: %w", price, err)
	}
	line.UnitPrice = p
	return &line, nil
}
