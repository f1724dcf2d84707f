// Package catalog talks to the product catalog service.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/httpclient"
	"marketplace-checkout/internal/resilience"
)

type Client struct {
	http   *httpclient.Client
	exec   *resilience.Executor
	policy resilience.Policy
}

func NewClient(hc *httpclient.Client, exec *resilience.Executor, policy resilience.Policy) *Client {
	return &Client{http: hc, exec: exec, policy: policy}
}

// GetProduct fetches the current snapshot of one product.
func (c *Client) GetProduct(ctx context.Context, id string) (domain.ProductSnapshot, error) {
	return resilience.Do(ctx, c.exec, "catalog.get_product", c.policy,
		func(ctx context.Context) (domain.ProductSnapshot, error) {
			var p domain.ProductSnapshot
			err := c.http.DoJSON(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &p)
			if status(err) == http.StatusNotFound {
				return p, resilience.Permanent(fmt.Errorf("%w: %s", domain.ErrProductNotFound, id))
			}
			if err != nil {
				return p, err
			}
			if p.ID == "" {
				p.ID = id
			}
			return p, nil
		},
		unavailable[domain.ProductSnapshot]("fetch product"))
}

// ValidateProducts fetches every id concurrently. Any failure fails the batch;
// the result keeps the order of ids.
func (c *Client) ValidateProducts(ctx context.Context, ids []string) ([]domain.ProductSnapshot, error) {
	out := make([]domain.ProductSnapshot, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			p, err := c.GetProduct(gctx, id)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStock applies a signed delta to a product's stock; negative decrements.
// Only a 400 is a business error; any other failure, a 404 included, is unavailability.
func (c *Client) UpdateStock(ctx context.Context, id string, delta int) error {
	_, err := resilience.Do(ctx, c.exec, "catalog.update_stock", c.policy,
		func(ctx context.Context) (struct{}, error) {
			body := map[string]int{"quantity": delta}
			err := c.http.DoJSON(ctx, http.MethodPatch, "/products/"+url.PathEscape(id)+"/stock", body, nil)
			switch status(err) {
			case http.StatusBadRequest:
				return struct{}{}, resilience.Permanent(fmt.Errorf("%w: %s", domain.ErrInsufficientStock, id))
			}
			return struct{}{}, err
		},
		unavailable[struct{}]("update stock"))
	return err
}

// Ping checks the catalog health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.http.DoJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// unavailable lets business errors through and maps the rest to ErrServiceUnavailable.
func unavailable[T any](action string) resilience.Fallback[T] {
	return func(_ context.Context, err error) (T, error) {
		var zero T
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: catalog: %s: %v", domain.ErrServiceUnavailable, action, err)
	}
}

func status(err error) int {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
