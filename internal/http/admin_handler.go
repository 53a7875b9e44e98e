package http

import (
	"context"
	"net/http"
	"time"
)

// AdminHandler serves the back-office stock endpoints. Routes are mounted
// behind RequireAdmin.
type AdminHandler struct {
	catalog CatalogService
	timeout time.Duration
}

func NewAdminHandler(catalog CatalogService, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

// GET /api/admin/products/low-stock?threshold
func (h *AdminHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	threshold, err := intParam(r.URL.Query(), "threshold", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	products, err := h.catalog.LowStock(ctx, threshold)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "", productsFromDomain(products))
}

// POST /api/admin/products/{id}/stock
func (h *AdminHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req AdjustStockRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.catalog.AdjustStock(ctx, id, req.Delta)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "stock updated", productFromDomain(p))
}

// DELETE /api/admin/products/{id}
func (h *AdminHandler) DeactivateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalog.Deactivate(ctx, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "product removed from sale", nil)
}
