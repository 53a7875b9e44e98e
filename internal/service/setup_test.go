package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Seeded catalog ids, see migrations/*/000002_seed_products.up.sql.
const (
	iPhoneID   int64 = 1 // 1299, stock 50
	macBookID  int64 = 3 // 1599, stock 25
	deskID     int64 = 6 // 199, stock 40
	vacuumID   int64 = 7 // 699, stock 15
	coreJavaID int64 = 9 // 89, stock 90
)

type testEnv struct {
	repo     *repository.Repository
	auth     *AuthService
	catalog  *CatalogService
	cart     *CartService
	checkout *CheckoutService
	orders   *OrderService
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()
	repo, err := repository.NewRepository(&repository.Credentials{
		Driver: repository.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "shop.db"),
	})
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { repo.Close() })
	return newTestEnv(repo)
}

func newTestEnv(repo *repository.Repository) *testEnv {
	return &testEnv{
		repo:     repo,
		auth:     NewAuthService(repo, bcrypt.MinCost),
		catalog:  NewCatalogService(repo, nil),
		cart:     NewCartService(repo),
		checkout: NewCheckoutService(repo),
		orders:   NewOrderService(repo),
	}
}

func (e *testEnv) user(t *testing.T, username string) *domain.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), domain.Registration{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) product(t *testing.T, name, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Category: "Test",
		Brand:    "Acme",
		Active:   true,
	}
	require.NoError(t, e.repo.CreateProduct(context.Background(), p))
	return p
}

func (e *testEnv) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := e.repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func testShipping() domain.ShippingInfo {
	return domain.ShippingInfo{
		Address:        "1 Main St, Springfield",
		RecipientName:  "John Doe",
		RecipientPhone: "555-0100",
		PaymentMethod:  "card",
	}
}
