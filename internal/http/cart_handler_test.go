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

func TestGetCart_Success(t *testing.T) {
	ts := newTestServer()
	desk := testProduct(6, "IKEA Study Desk", "199", 40)
	ts.cart.view = &domain.CartView{
		CartID: 11,
		UserID: 1,
		Lines:  []domain.CartLine{{Item: domain.CartItem{ID: 21, ProductID: 6, Quantity: 2}, Product: desk}},
	}

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/cart", nil), ts.sessionCookies(t, 1)...)

	require.Equal(t, http.StatusOK, rec.Code)
	var cart CartDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &cart))
	assert.Equal(t, int64(11), cart.CartID)
	assert.Equal(t, 2, cart.TotalQuantity)
	assert.Equal(t, "398.00", cart.TotalAmount.String())
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(21), cart.Items[0].CartItemID)
	assert.True(t, cart.Items[0].InStock)
	assert.False(t, cart.Empty)
}

func TestAddItem_Validation(t *testing.T) {
	ts := newTestServer()
	cookies := ts.sessionCookies(t, 1)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"productId":`},
		{"missing product", `{"quantity":1}`},
		{"zero quantity", `{"productId":6,"quantity":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/cart/add", jsonBodyString(tt.body))
			rec := ts.do(req, cookies...)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAddItem_InsufficientStockIsBusinessFailure(t *testing.T) {
	ts := newTestServer()
	ts.cart.err = &domain.StockError{ProductID: 7, ProductName: "Dyson V15 Vacuum", Requested: 20, Available: 15}

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/cart/add",
		jsonBody(t, AddItemRequestDTO{ProductID: 7, Quantity: 20})), ts.sessionCookies(t, 1)...)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, CodeInsufficientStock, env.Code)
	var issue StockIssueDTO
	require.NoError(t, json.Unmarshal(env.Data, &issue))
	assert.Equal(t, 15, issue.Available)
}

func TestRemoveItem_OtherUsersItem(t *testing.T) {
	ts := newTestServer()
	ts.cart.err = domain.ErrForbidden

	rec := ts.do(httptest.NewRequest(http.MethodDelete, "/api/cart/remove/21", nil), ts.sessionCookies(t, 2)...)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, CodeForbidden, decodeEnvelope(t, rec).Code)
}

func TestCartValidate(t *testing.T) {
	ts := newTestServer()
	ts.cart.short = []*domain.StockError{{ProductID: 7, ProductName: "Dyson V15 Vacuum", Requested: 3, Available: 1}}

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/cart/validate", nil), ts.sessionCookies(t, 1)...)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"valid":false,"issues":[{"productId":7,"productName":"Dyson V15 Vacuum","requested":3,"available":1}]}`,
		string(decodeEnvelope(t, rec).Data))
}
