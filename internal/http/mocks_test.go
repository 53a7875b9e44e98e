package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/stretchr/testify/require"
)

type AuthMock struct {
	user      *domain.User
	err       error
	available bool
	// set by Register
	registered domain.Registration
}

func (m *AuthMock) Register(_ context.Context, reg domain.Registration) (*domain.User, error) {
	m.registered = reg
	return m.user, m.err
}

func (m *AuthMock) Login(_ context.Context, username, password string) (*domain.User, error) {
	return m.user, m.err
}

func (m *AuthMock) Get(_ context.Context, userID int64) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.user == nil || m.user.ID != userID {
		return nil, domain.ErrNotFound
	}
	return m.user, nil
}

func (m *AuthMock) UsernameAvailable(context.Context, string) (bool, error) {
	return m.available, m.err
}

func (m *AuthMock) EmailAvailable(context.Context, string) (bool, error) {
	return m.available, m.err
}

type CatalogMock struct {
	page     domain.Page[domain.Product]
	product  *domain.Product
	related  []domain.Product
	values   []string
	products []domain.Product
	err      error

	// captured arguments
	query     domain.ProductQuery
	delta     int
	threshold int
}

func (m *CatalogMock) List(_ context.Context, q domain.ProductQuery) (domain.Page[domain.Product], error) {
	m.query = q
	return m.page, m.err
}

func (m *CatalogMock) Popular(_ context.Context, page, size int) (domain.Page[domain.Product], error) {
	return m.page, m.err
}

func (m *CatalogMock) Get(context.Context, int64) (*domain.Product, error) {
	return m.product, m.err
}

func (m *CatalogMock) Related(context.Context, *domain.Product, int) ([]domain.Product, error) {
	return m.related, m.err
}

func (m *CatalogMock) Categories(context.Context) ([]string, error) {
	return m.values, m.err
}

func (m *CatalogMock) Brands(context.Context) ([]string, error) {
	return m.values, m.err
}

func (m *CatalogMock) Suggestions(context.Context, string, int) ([]domain.Product, error) {
	return m.products, m.err
}

func (m *CatalogMock) LowStock(_ context.Context, threshold int) ([]domain.Product, error) {
	m.threshold = threshold
	return m.products, m.err
}

func (m *CatalogMock) AdjustStock(_ context.Context, _ int64, delta int) (*domain.Product, error) {
	m.delta = delta
	return m.product, m.err
}

func (m *CatalogMock) Deactivate(context.Context, int64) error {
	return m.err
}

type CartMock struct {
	view  *domain.CartView
	short []*domain.StockError
	count int
	err   error
}

func (m *CartMock) Get(context.Context, int64) (*domain.CartView, error) {
	return m.view, m.err
}

func (m *CartMock) Add(context.Context, int64, int64, int) (*domain.CartView, error) {
	return m.view, m.err
}

func (m *CartMock) Update(context.Context, int64, int64, int) (*domain.CartView, error) {
	return m.view, m.err
}

func (m *CartMock) Remove(context.Context, int64, int64) error {
	return m.err
}

func (m *CartMock) Clear(context.Context, int64) error {
	return m.err
}

func (m *CartMock) Count(context.Context, int64) (int, error) {
	return m.count, m.err
}

func (m *CartMock) Validate(context.Context, int64) ([]*domain.StockError, error) {
	return m.short, m.err
}

type CheckoutMock struct {
	order *domain.Order
	err   error

	idempotencyKey string
	shipping       domain.ShippingInfo
}

func (m *CheckoutMock) Checkout(_ context.Context, _ int64, ship domain.ShippingInfo, key string) (*domain.Order, error) {
	m.shipping = ship
	m.idempotencyKey = key
	return m.order, m.err
}

func (m *CheckoutMock) QuickOrder(_ context.Context, _, _ int64, _ int, ship domain.ShippingInfo, key string) (*domain.Order, error) {
	m.shipping = ship
	m.idempotencyKey = key
	return m.order, m.err
}

type OrdersMock struct {
	order *domain.Order
	page  domain.Page[domain.Order]
	err   error

	status *domain.OrderStatus
}

func (m *OrdersMock) Get(context.Context, int64, string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *OrdersMock) ListForUser(_ context.Context, _ int64, status *domain.OrderStatus, _ domain.PageRequest) (domain.Page[domain.Order], error) {
	m.status = status
	return m.page, m.err
}

func (m *OrdersMock) ListAll(_ context.Context, status *domain.OrderStatus, _ domain.PageRequest) (domain.Page[domain.Order], error) {
	m.status = status
	return m.page, m.err
}

func (m *OrdersMock) Pay(context.Context, int64, string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *OrdersMock) Ship(context.Context, string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *OrdersMock) ConfirmDelivery(context.Context, int64, string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *OrdersMock) Cancel(context.Context, int64, string) (*domain.Order, error) {
	return m.order, m.err
}

type PingMock struct{ err error }

func (p PingMock) Ping(context.Context) error { return p.err }

var testSessionKey = []byte("0123456789abcdef0123456789abcdef")

type testServer struct {
	handler  http.Handler
	sessions *Sessions
	auth     *AuthMock
	catalog  *CatalogMock
	cart     *CartMock
	checkout *CheckoutMock
	orders   *OrdersMock
}

func newTestServer() *testServer {
	ts := &testServer{
		sessions: NewSessions(testSessionKey, false),
		auth:     &AuthMock{},
		catalog:  &CatalogMock{},
		cart:     &CartMock{},
		checkout: &CheckoutMock{},
		orders:   &OrdersMock{},
	}
	ts.handler = NewRouter(Services{
		Auth:     ts.auth,
		Catalog:  ts.catalog,
		Cart:     ts.cart,
		Checkout: ts.checkout,
		Orders:   ts.orders,
	}, ts.sessions, PingMock{}, RouterConfig{RequestTimeout: 5 * time.Second, MaxRequestBodySize: 1 << 20})
	return ts
}

// sessionCookies logs userID in and returns the cookies a browser would send back.
func (ts *testServer) sessionCookies(t *testing.T, userID int64) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, ts.sessions.Login(rec, httptest.NewRequest(http.MethodPost, "/", nil), userID))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func (ts *testServer) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}
