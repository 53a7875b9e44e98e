package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

type CartService interface {
	Get(ctx context.Context, userID int64) (*domain.CartView, error)
	Add(ctx context.Context, userID, productID int64, qty int) (*domain.CartView, error)
	Update(ctx context.Context, userID, itemID int64, qty int) (*domain.CartView, error)
	Remove(ctx context.Context, userID, itemID int64) error
	Clear(ctx context.Context, userID int64) error
	Count(ctx context.Context, userID int64) (int, error)
	Validate(ctx context.Context, userID int64) ([]*domain.StockError, error)
}

type CartHandler struct {
	cart    CartService
	timeout time.Duration
}

func NewCartHandler(cart CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
	}
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	view, err := h.cart.Get(ctx, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "", cartFromDomain(view))
}

// POST /api/cart/add
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	var req AddItemRequestDTO
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

	view, err := h.cart.Add(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "added to cart", cartFromDomain(view))
}

// PUT /api/cart/update
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	var req UpdateItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CartItemID <= 0 {
		respondError(w, http.StatusBadRequest, CodeValidation, "cartItemId must be positive")
		return
	}

	// quantity <= 0 removes the line
	view, err := h.cart.Update(ctx, userID, req.CartItemID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "cart updated", cartFromDomain(view))
}

// DELETE /api/cart/remove/{cartItemId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	itemID, ok := idParam(w, r, "cartItemId")
	if !ok {
		return
	}

	if err := h.cart.Remove(ctx, userID, itemID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "item removed", nil)
}

// DELETE /api/cart/clear
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	if err := h.cart.Clear(ctx, userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "cart cleared", nil)
}

// GET /api/cart/count
func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	n, err := h.cart.Count(ctx, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "", map[string]int{"count": n})
}

// GET /api/cart/validate
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	short, err := h.cart.Validate(ctx, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	issues := make([]StockIssueDTO, 0, len(short))
	for _, s := range short {
		issues = append(issues, stockIssueFromDomain(s))
	}
	respondOK(w, "", map[string]interface{}{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}
