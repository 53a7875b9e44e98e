package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CatalogService interface {
	List(ctx context.Context, q domain.ProductQuery) (domain.Page[domain.Product], error)
	Popular(ctx context.Context, page, size int) (domain.Page[domain.Product], error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	Related(ctx context.Context, p *domain.Product, limit int) ([]domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Brands(ctx context.Context) ([]string, error)
	Suggestions(ctx context.Context, q string, limit int) ([]domain.Product, error)
	LowStock(ctx context.Context, threshold int) ([]domain.Product, error)
	AdjustStock(ctx context.Context, productID int64, delta int) (*domain.Product, error)
	Deactivate(ctx context.Context, productID int64) error
}

type ProductHandler struct {
	catalog CatalogService
	timeout time.Duration
}

func NewProductHandler(catalog CatalogService, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

// GET /api/products?q&category&brand&minPrice&maxPrice&page&size&sortBy&sortDir
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	query := r.URL.Query()
	page, err := pageRequestFromQuery(query)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	q := domain.ProductQuery{
		Keyword:  query.Get("q"),
		Category: query.Get("category"),
		Brand:    query.Get("brand"),
		Page:     page,
	}
	if q.MinPrice, err = decimalParam(query, "minPrice"); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	if q.MaxPrice, err = decimalParam(query, "maxPrice"); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	result, err := h.catalog.List(ctx, q)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondPage(w, productsFromDomain(result.Items), paginationOf(result))
}

// GET /api/products/popular?page&size
func (h *ProductHandler) Popular(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := pageRequestFromQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	result, err := h.catalog.Popular(ctx, page.Page, page.Size)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondPage(w, productsFromDomain(result.Items), paginationOf(result))
}

// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.catalog.Get(ctx, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	related, err := h.catalog.Related(ctx, p, 0)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondOK(w, "", ProductDetailDTO{
		ProductDTO:      productFromDomain(p),
		RelatedProducts: productsFromDomain(related),
	})
}

// GET /api/products/categories
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	h.facet(w, r, h.catalog.Categories)
}

// GET /api/products/brands
func (h *ProductHandler) Brands(w http.ResponseWriter, r *http.Request) {
	h.facet(w, r, h.catalog.Brands)
}

func (h *ProductHandler) facet(w http.ResponseWriter, r *http.Request, load func(context.Context) ([]string, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	values, err := load(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "", values)
}

// GET /api/products/suggestions?q&limit
func (h *ProductHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, err := intParam(r.URL.Query(), "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	products, err := h.catalog.Suggestions(ctx, r.URL.Query().Get("q"), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "", productsFromDomain(products))
}

func pageRequestFromQuery(q url.Values) (domain.PageRequest, error) {
	page, err := intParam(q, "page", 0)
	if err != nil {
		return domain.PageRequest{}, err
	}
	size, err := intParam(q, "size", domain.DefaultPageSize)
	if err != nil {
		return domain.PageRequest{}, err
	}
	return domain.NewPageRequest(page, size, q.Get("sortBy"), q.Get("sortDir")), nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func decimalParam(q url.Values, name string) (*decimal.Decimal, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
