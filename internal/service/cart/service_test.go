package cart

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"marketplace-checkout/internal/cache"
	"marketplace-checkout/internal/domain"
)

type stubRepo struct {
	lines   map[string]domain.CartLine
	listErr error
	addErr  error
	lists   int
	removed []string
}

func newStubRepo(lines ...domain.CartLine) *stubRepo {
	r := &stubRepo{lines: map[string]domain.CartLine{}}
	for _, l := range lines {
		r.lines[l.UserID+"/"+l.ProductID] = l
	}
	return r
}

func (s *stubRepo) List(_ context.Context, userID string) ([]domain.CartLine, error) {
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []domain.CartLine{}
	for _, l := range s.lines {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *stubRepo) Get(_ context.Context, userID, productID string) (*domain.CartLine, error) {
	l, ok := s.lines[userID+"/"+productID]
	if !ok {
		return nil, domain.ErrCartItemNotFound
	}
	return &l, nil
}

func (s *stubRepo) Add(_ context.Context, in domain.CartLine) (*domain.CartLine, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	key := in.UserID + "/" + in.ProductID
	if existing, ok := s.lines[key]; ok {
		existing.Quantity += in.Quantity
		s.lines[key] = existing
		return &existing, nil
	}
	s.lines[key] = in
	return &in, nil
}

func (s *stubRepo) SetQuantity(_ context.Context, userID, productID string, quantity int) (*domain.CartLine, error) {
	key := userID + "/" + productID
	l, ok := s.lines[key]
	if !ok {
		return nil, domain.ErrCartItemNotFound
	}
	l.Quantity = quantity
	s.lines[key] = l
	return &l, nil
}

func (s *stubRepo) Delete(_ context.Context, userID, productID string) error {
	key := userID + "/" + productID
	if _, ok := s.lines[key]; !ok {
		return domain.ErrCartItemNotFound
	}
	delete(s.lines, key)
	return nil
}

func (s *stubRepo) DeleteProducts(_ context.Context, userID string, productIDs []string) error {
	for _, p := range productIDs {
		delete(s.lines, userID+"/"+p)
		s.removed = append(s.removed, p)
	}
	return nil
}

func (s *stubRepo) Clear(_ context.Context, userID string) error {
	for k, l := range s.lines {
		if l.UserID == userID {
			delete(s.lines, k)
		}
	}
	return nil
}

type stubCatalog struct {
	products map[string]domain.ProductSnapshot
	err      error
}

func (s *stubCatalog) GetProduct(_ context.Context, id string) (domain.ProductSnapshot, error) {
	if s.err != nil {
		return domain.ProductSnapshot{}, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return domain.ProductSnapshot{}, domain.ErrProductNotFound
	}
	return p, nil
}

func mug(stock int, active bool) *stubCatalog {
	return &stubCatalog{products: map[string]domain.ProductSnapshot{
		"p1": {ID: "p1", Name: "Mug", Price: decimal.RequireFromString("10.00"), Stock: stock, SellerID: "s1", IsActive: active},
	}}
}

func TestAddToCartSnapshotsProduct(t *testing.T) {
	repo := newStubRepo()
	svc := New(repo, mug(5, true), nil, nil)

	line, err := svc.AddToCart(context.Background(), "u1", "p1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.ProductName != "Mug" || line.SellerID != "s1" || !line.UnitPrice.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected snapshot %+v", line)
	}

	line, err = svc.AddToCart(context.Background(), "u1", "p1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", line.Quantity)
	}
	if len(repo.lines) != 1 {
		t.Fatalf("expected one line, got %d", len(repo.lines))
	}
}

func TestAddToCartRejects(t *testing.T) {
	cases := []struct {
		name    string
		catalog *stubCatalog
		qty     int
		want    error
	}{
		{"zero quantity", mug(5, true), 0, domain.ErrValidation},
		{"inactive", mug(5, false), 1, domain.ErrProductUnavailable},
		{"stock", mug(1, true), 2, domain.ErrInsufficientStock},
		{"catalog down", &stubCatalog{err: domain.ErrServiceUnavailable}, 1, domain.ErrServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubRepo()
			svc := New(repo, tc.catalog, nil, nil)
			_, err := svc.AddToCart(context.Background(), "u1", "p1", tc.qty)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(repo.lines) != 0 {
				t.Fatalf("nothing should be stored, got %d lines", len(repo.lines))
			}
		})
	}

	svc := New(newStubRepo(), mug(5, true), nil, nil)
	if _, err := svc.AddToCart(context.Background(), "  ", "p1", 1); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank user, got %v", err)
	}
}

func TestGetCartTotal(t *testing.T) {
	repo := newStubRepo(
		domain.CartLine{UserID: "u1", ProductID: "p1", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
		domain.CartLine{UserID: "u1", ProductID: "p2", UnitPrice: decimal.RequireFromString("0.35"), Quantity: 3},
		domain.CartLine{UserID: "u2", ProductID: "p1", UnitPrice: decimal.RequireFromString("99"), Quantity: 1},
	)
	svc := New(repo, mug(5, true), nil, nil)

	total, err := svc.GetCartTotal(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !total.Total.Equal(decimal.RequireFromString("21.05")) {
		t.Fatalf("expected 21.05, got %s", total.Total)
	}
	if len(total.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(total.Items))
	}
}

func TestUpdateCartItem(t *testing.T) {
	repo := newStubRepo(domain.CartLine{UserID: "u1", ProductID: "p1", Quantity: 1})
	svc := New(repo, mug(3, true), nil, nil)

	if _, err := svc.UpdateCartItem(context.Background(), "u1", "missing", 1); !errors.Is(err, domain.ErrCartItemNotFound) {
		t.Fatalf("expected cart item not found, got %v", err)
	}
	if _, err := svc.UpdateCartItem(context.Background(), "u1", "p1", 4); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	line, err := svc.UpdateCartItem(context.Background(), "u1", "p1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", line.Quantity)
	}
}

func TestRemoveAndClear(t *testing.T) {
	repo := newStubRepo(
		domain.CartLine{UserID: "u1", ProductID: "p1", Quantity: 1},
		domain.CartLine{UserID: "u1", ProductID: "p2", Quantity: 1},
		domain.CartLine{UserID: "u1", ProductID: "p3", Quantity: 1},
	)
	svc := New(repo, mug(3, true), nil, nil)

	if err := svc.RemoveFromCart(context.Background(), "u1", "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RemoveFromCart(context.Background(), "u1", "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
	if err := svc.RemoveProducts(context.Background(), "u1", []string{"p2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.lines) != 1 {
		t.Fatalf("expected p3 to remain, got %d lines", len(repo.lines))
	}
	if err := svc.ClearCart(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(repo.lines))
	}
}

func TestGetCartReadsThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newStubRepo()
	svc := New(repo, mug(5, true), cache.NewRedisCache(client, time.Minute), nil)
	ctx := context.Background()

	if _, err := svc.AddToCart(ctx, "u1", "p1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		lines, err := svc.GetCart(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lines) != 1 {
			t.Fatalf("expected one line, got %d", len(lines))
		}
	}
	if repo.lists != 1 {
		t.Fatalf("expected a single repository read, got %d", repo.lists)
	}

	// Mutations invalidate the cached copy.
	if _, err := svc.AddToCart(ctx, "u1", "p1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists("cart:u1") {
		t.Fatalf("expected cache entry to be invalidated")
	}
	lines, err := svc.GetCart(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines[0].Quantity != 2 {
		t.Fatalf("expected fresh quantity 2, got %d", lines[0].Quantity)
	}
}

func TestAddToCartFreezesPriceAtCents(t *testing.T) {
	catalog := &stubCatalog{products: map[string]domain.ProductSnapshot{
		"p1": {ID: "p1", Name: "Pin", Price: decimal.RequireFromString("10.125"), Stock: 5, SellerID: "s1", IsActive: true},
	}}
	svc := New(newStubRepo(), catalog, nil, nil)

	line, err := svc.AddToCart(context.Background(), "u1", "p1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !line.UnitPrice.Equal(decimal.RequireFromString("10.13")) {
		t.Fatalf("expected unit price 10.13, got %s", line.UnitPrice)
	}
}

func TestCheckoutLinesIgnoreStaleCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewRedisCache(client, time.Minute)
	ctx := context.Background()
	stale := []domain.CartLine{
		{UserID: "u1", ProductID: "p1", Quantity: 5, UnitPrice: decimal.RequireFromString("10.00")},
		{UserID: "u1", ProductID: "p2", Quantity: 1, UnitPrice: decimal.RequireFromString("3.00")},
	}
	if err := c.Set(ctx, "u1", stale); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	repo := newStubRepo(domain.CartLine{UserID: "u1", ProductID: "p1", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")})
	svc := New(repo, mug(5, true), c, nil)

	cached, err := svc.GetCart(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cached) != 2 {
		t.Fatalf("expected the cached copy to be served, got %d lines", len(cached))
	}

	lines, err := svc.CheckoutLines(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 || lines[0].ProductID != "p1" || lines[0].Quantity != 1 {
		t.Fatalf("expected repository lines, got %+v", lines)
	}
	if repo.lists != 1 {
		t.Fatalf("expected a repository read, got %d", repo.lists)
	}
}

func TestCheckoutLinesRequiresUser(t *testing.T) {
	svc := New(newStubRepo(), mug(5, true), nil, nil)
	if _, err := svc.CheckoutLines(context.Background(), " "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetCartFallsBackWhenCacheDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	repo := newStubRepo(domain.CartLine{UserID: "u1", ProductID: "p1", Quantity: 1})
	svc := New(repo, mug(5, true), cache.NewRedisCache(client, time.Minute), nil)

	lines, err := svc.GetCart(context.Background(), "u1")
	if err != nil {
		t.Fatalf("cache failure must not fail reads: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected one line from repository, got %d", len(lines))
	}
}
