package http

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/go-chi/chi/v5"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type CheckoutService interface {
	Checkout(ctx context.Context, userID int64, ship domain.ShippingInfo, idempotencyKey string) (*domain.Order, error)
	QuickOrder(ctx context.Context, userID, productID int64, qty int, ship domain.ShippingInfo, idempotencyKey string) (*domain.Order, error)
}

type OrderService interface {
	Get(ctx context.Context, userID int64, orderNumber string) (*domain.Order, error)
	ListForUser(ctx context.Context, userID int64, status *domain.OrderStatus, page domain.PageRequest) (domain.Page[domain.Order], error)
	ListAll(ctx context.Context, status *domain.OrderStatus, page domain.PageRequest) (domain.Page[domain.Order], error)
	Pay(ctx context.Context, userID int64, orderNumber string) (*domain.Order, error)
	Ship(ctx context.Context, orderNumber string) (*domain.Order, error)
	ConfirmDelivery(ctx context.Context, userID int64, orderNumber string) (*domain.Order, error)
	Cancel(ctx context.Context, userID int64, orderNumber string) (*domain.Order, error)
}

type OrdersHandler struct {
	checkout CheckoutService
	orders   OrderService
	timeout  time.Duration
}

func NewOrdersHandler(checkout CheckoutService, orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		checkout: checkout,
		orders:   orders,
		timeout:  timeout,
	}
}

// POST /api/orders
func (h *OrdersHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	var ship domain.ShippingInfo
	if !decodeJSON(w, r, &ship) {
		return
	}

	order, err := h.checkout.Checkout(ctx, userID, ship, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "order created", orderFromDomain(order))
}

// POST /api/orders/quick
func (h *OrdersHandler) QuickOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	var req QuickOrderRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, CodeValidation, "productId must be positive")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, CodeValidation, "quantity must be at least 1")
		return
	}

	order, err := h.checkout.QuickOrder(ctx, userID, req.ProductID, req.Quantity, req.ShippingInfo, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "order created", orderFromDomain(order))
}

// GET /api/orders?status&page&size
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	status, page, err := orderListQuery(r.URL.Query())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.orders.ListForUser(ctx, userID, status, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondPage(w, ordersFromDomain(result.Items), paginationOf(result))
}

// GET /api/orders/{orderNumber}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	order, err := h.orders.Get(ctx, userID, chi.URLParam(r, "orderNumber"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "", orderFromDomain(order))
}

// POST /api/orders/{orderNumber}/pay
func (h *OrdersHandler) Pay(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "payment received", h.orders.Pay)
}

// POST /api/orders/{orderNumber}/cancel
func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "order cancelled", h.orders.Cancel)
}

// POST /api/orders/{orderNumber}/confirm
func (h *OrdersHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "delivery confirmed", h.orders.ConfirmDelivery)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, message string, apply func(context.Context, int64, string) (*domain.Order, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	order, err := apply(ctx, userID, chi.URLParam(r, "orderNumber"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, message, orderFromDomain(order))
}

// GET /api/admin/orders?status&page&size
func (h *OrdersHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status, page, err := orderListQuery(r.URL.Query())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.orders.ListAll(ctx, status, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondPage(w, ordersFromDomain(result.Items), paginationOf(result))
}

// POST /api/admin/orders/{orderNumber}/ship
func (h *OrdersHandler) Ship(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.Ship(ctx, chi.URLParam(r, "orderNumber"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "order shipped", orderFromDomain(order))
}

func orderListQuery(q url.Values) (*domain.OrderStatus, domain.PageRequest, error) {
	page, err := pageRequestFromQuery(q)
	if err != nil {
		return nil, domain.PageRequest{}, domain.Validationf("%s", err)
	}
	raw := q.Get("status")
	if raw == "" {
		return nil, page, nil
	}
	status, err := domain.ParseOrderStatus(raw)
	if err != nil {
		return nil, domain.PageRequest{}, err
	}
	return &status, page, nil
}
