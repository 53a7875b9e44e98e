package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout_PassesIdempotencyKeyAndShipping(t *testing.T) {
	ts := newTestServer()
	ts.checkout.order = testOrder(domain.OrderStatusPending)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", jsonBody(t, domain.ShippingInfo{
		Address:        "1 Main St",
		RecipientName:  "John Doe",
		RecipientPhone: "555-0100",
		PaymentMethod:  "card",
	}))
	req.Header.Set(IdempotencyKeyHeader, "req-42")
	rec := ts.do(req, ts.sessionCookies(t, 1)...)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", ts.checkout.idempotencyKey)
	assert.Equal(t, "1 Main St", ts.checkout.shipping.Address)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	var order OrderDTO
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "Pending payment", order.StatusLabel)
	assert.Equal(t, "398.00", order.TotalAmount.String())
	require.Len(t, order.Items, 1)
	assert.Equal(t, "199.00", order.Items[0].Price.String())
}

func TestCheckout_BusinessFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"empty cart", domain.ErrCartEmpty, CodeCartEmpty},
		{"out of stock", &domain.StockError{ProductID: 1, ProductName: "iPhone 15 Pro", Requested: 2, Available: 0}, CodeInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.checkout.err = tt.err

			rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/orders", jsonBodyString(`{}`)), ts.sessionCookies(t, 1)...)

			assert.Equal(t, http.StatusOK, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Code)
		})
	}
}

func TestQuickOrder(t *testing.T) {
	ts := newTestServer()
	ts.checkout.order = testOrder(domain.OrderStatusPending)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/orders/quick",
		jsonBodyString(`{"productId":6,"quantity":2,"shippingAddress":"1 Main St","recipientName":"John","recipientPhone":"555"}`)),
		ts.sessionCookies(t, 1)...)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1 Main St", ts.checkout.shipping.Address)
	assert.Equal(t, "John", ts.checkout.shipping.RecipientName)
}

func TestCancel_StatusNotAllowed(t *testing.T) {
	ts := newTestServer()
	ts.orders.err = &domain.TransitionError{
		OrderNumber: "ORD20240101120000ABCDEF12",
		From:        domain.OrderStatusShipped,
		To:          domain.OrderStatusCancelled,
	}

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/orders/ORD20240101120000ABCDEF12/cancel", nil), ts.sessionCookies(t, 1)...)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, CodeStatusNotAllowed, env.Code)
	assert.JSONEq(t, `{"orderNumber":"ORD20240101120000ABCDEF12","currentStatus":"SHIPPED"}`, string(env.Data))
}

func TestPay(t *testing.T) {
	ts := newTestServer()
	ts.orders.order = testOrder(domain.OrderStatusPaid)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/orders/ORD20240101120000ABCDEF12/pay", nil), ts.sessionCookies(t, 1)...)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "payment received", env.Message)
	assert.Contains(t, string(env.Data), `"status":"PAID"`)
}

func TestGetOrder_OtherUser(t *testing.T) {
	ts := newTestServer()
	ts.orders.err = domain.ErrForbidden

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/orders/ORD20240101120000ABCDEF12", nil), ts.sessionCookies(t, 2)...)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListOrders_StatusFilter(t *testing.T) {
	ts := newTestServer()
	order := testOrder(domain.OrderStatusPaid)
	ts.orders.page = domain.NewPage([]domain.Order{*order}, domain.NewPageRequest(0, 10, "", ""), 1)
	cookies := ts.sessionCookies(t, 1)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/orders?status=paid", nil), cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.orders.status)
	assert.Equal(t, domain.OrderStatusPaid, *ts.orders.status)
	assert.Equal(t, int64(1), decodeEnvelope(t, rec).Pagination.TotalItems)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/orders?status=LOST", nil), cookies...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	ts := newTestServer()
	ts.auth.user = &domain.User{ID: 1, Username: "john"}
	ts.orders.order = testOrder(domain.OrderStatusShipped)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/admin/orders/ORD20240101120000ABCDEF12/ship", nil), ts.sessionCookies(t, 1)...)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	ts.auth.user.IsAdmin = true
	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/admin/orders/ORD20240101120000ABCDEF12/ship", nil), ts.sessionCookies(t, 1)...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "order shipped", decodeEnvelope(t, rec).Message)
}

func TestAdminStock(t *testing.T) {
	ts := newTestServer()
	ts.auth.user = &domain.User{ID: 1, Username: "admin", IsAdmin: true}
	vacuum := testProduct(7, "Dyson V15 Vacuum", "699", 5)
	ts.catalog.product = &vacuum
	ts.catalog.products = []domain.Product{vacuum}
	cookies := ts.sessionCookies(t, 1)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/admin/products/low-stock?threshold=5", nil), cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, ts.catalog.threshold)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/admin/products/7/stock", jsonBodyString(`{"delta":-10}`)), cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -10, ts.catalog.delta)

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/api/admin/products/7", nil), cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeEnvelope(t, rec).Success)
}
