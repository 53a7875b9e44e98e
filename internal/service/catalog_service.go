package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRelatedLimit    = 4
	DefaultSuggestionLimit = 5
	MinSuggestionLength    = 2
	DefaultLowStockLimit   = 10
)

type CatalogService struct {
	products repository.ProductStore
	cache    cache.CatalogCache
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCatalogService(products repository.ProductStore, c cache.CatalogCache) *CatalogService {
	if c == nil {
		c = cache.Noop{}
	}
	return &CatalogService{products: products, cache: c}
}

// List is the single catalog query; Search, ByCategory and friends only
// preset parts of the query.
func (s *CatalogService) List(ctx context.Context, q domain.ProductQuery) (domain.Page[domain.Product], error) {
	if err := q.Validate(); err != nil {
		return domain.Page[domain.Product]{}, err
	}
	if q.Page.SortBy == "" {
		q.Page.SortBy = domain.SortByName
	}
	if !domain.IsProductSortKey(q.Page.SortBy) {
		return domain.Page[domain.Product]{}, domain.Validationf("cannot sort by %q", q.Page.SortBy)
	}
	q.Page = domain.NewPageRequest(q.Page.Page, q.Page.Size, q.Page.SortBy, string(q.Page.SortDir))

	items, total, err := s.products.ListProducts(ctx, q)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return domain.NewPage(items, q.Page, total), nil
}

func (s *CatalogService) Search(ctx context.Context, keyword string, page domain.PageRequest) (domain.Page[domain.Product], error) {
	return s.List(ctx, domain.ProductQuery{Keyword: keyword, Page: page})
}

func (s *CatalogService) ByCategory(ctx context.Context, category string, page domain.PageRequest) (domain.Page[domain.Product], error) {
	return s.List(ctx, domain.ProductQuery{Category: category, Page: page})
}

func (s *CatalogService) ByBrand(ctx context.Context, brand string, page domain.PageRequest) (domain.Page[domain.Product], error) {
	return s.List(ctx, domain.ProductQuery{Brand: brand, Page: page})
}

func (s *CatalogService) ByPriceRange(ctx context.Context, lo, hi decimal.Decimal, page domain.PageRequest) (domain.Page[domain.Product], error) {
	if page.SortBy == "" {
		page.SortBy = domain.SortByPrice
	}
	return s.List(ctx, domain.ProductQuery{MinPrice: &lo, MaxPrice: &hi, Page: page})
}

func (s *CatalogService) Popular(ctx context.Context, page, size int) (domain.Page[domain.Product], error) {
	return s.List(ctx, domain.ProductQuery{Page: domain.NewPageRequest(page, size, domain.SortByPopularity, "")})
}

// Get returns any product, including deactivated ones, so old orders can
// still link to it.
func (s *CatalogService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.products.GetProduct(ctx, id)
}

// Related fills up to limit slots from the same category, then the same
// brand, then the most reviewed products, never repeating a product.
func (s *CatalogService) Related(ctx context.Context, p *domain.Product, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	key := cache.RelatedKey(p.ID, limit)

	if ids, err := s.cache.GetIDs(ctx, key); err == nil {
		if related, ok := s.loadActive(ctx, ids); ok {
			return related, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		slog.WarnContext(ctx, "cache get error", "key", key, "error", err)
	}

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		related, err := s.computeRelated(ctx, p, limit)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(related))
		for _, r := range related {
			ids = append(ids, r.ID)
		}
		if err := s.cache.SetIDs(ctx, key, ids); err != nil {
			slog.WarnContext(ctx, "cache set error", "key", key, "error", err)
		}
		return related, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (s *CatalogService) computeRelated(ctx context.Context, p *domain.Product, limit int) ([]domain.Product, error) {
	related := []domain.Product{}
	exclude := []int64{p.ID}

	take := func(found []domain.Product) {
		for _, f := range found {
			if len(related) == limit {
				return
			}
			related = append(related, f)
			exclude = append(exclude, f.ID)
		}
	}

	if p.Category != "" {
		found, err := s.products.ProductsByCategory(ctx, p.Category, exclude, limit)
		if err != nil {
			return nil, err
		}
		take(found)
	}
	if len(related) < limit && p.Brand != "" {
		found, err := s.products.ProductsByBrand(ctx, p.Brand, exclude, limit-len(related))
		if err != nil {
			return nil, err
		}
		take(found)
	}
	if len(related) < limit {
		found, err := s.products.MostReviewed(ctx, exclude, limit-len(related))
		if err != nil {
			return nil, err
		}
		take(found)
	}
	return related, nil
}

// loadActive resolves cached ids; ok is false when any entry went stale.
func (s *CatalogService) loadActive(ctx context.Context, ids []int64) ([]domain.Product, bool) {
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.products.GetProduct(ctx, id)
		if err != nil || !p.Active {
			return nil, false
		}
		out = append(out, *p)
	}
	return out, true
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	return s.cachedStrings(ctx, cache.KeyCategories, s.products.Categories)
}

func (s *CatalogService) Brands(ctx context.Context) ([]string, error) {
	return s.cachedStrings(ctx, cache.KeyBrands, s.products.Brands)
}

func (s *CatalogService) cachedStrings(ctx context.Context, key string, load func(context.Context) ([]string, error)) ([]string, error) {
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		values, err := s.cache.GetStrings(ctx, key)
		if err == nil {
			return values, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.WarnContext(ctx, "cache get error", "key", key, "error", err)
		}

		values, err = load(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetStrings(ctx, key, values); err != nil {
			slog.WarnContext(ctx, "cache set error", "key", key, "error", err)
		}
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Suggestions returns the most reviewed matches for a partially typed query.
func (s *CatalogService) Suggestions(ctx context.Context, q string, limit int) ([]domain.Product, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinSuggestionLength {
		return []domain.Product{}, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	page, err := s.List(ctx, domain.ProductQuery{
		Keyword: q,
		Page:    domain.NewPageRequest(0, limit, domain.SortByReviewCount, string(domain.SortDesc)),
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (s *CatalogService) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockLimit
	}
	products, err := s.products.LowStock(ctx, threshold)
	if products == nil && err == nil {
		products = []domain.Product{}
	}
	return products, err
}

// AdjustStock adds delta units, or removes -delta units if they are all there.
func (s *CatalogService) AdjustStock(ctx context.Context, productID int64, delta int) (*domain.Product, error) {
	var err error
	switch {
	case delta > 0:
		err = s.products.AddStock(ctx, productID, delta)
	case delta < 0:
		err = s.products.ReduceStock(ctx, productID, -delta)
	default:
		return nil, domain.Validationf("stock delta must not be zero")
	}
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "stock adjusted", "product_id", productID, "delta", delta, "stock", p.Stock)
	return p, nil
}

// Deactivate hides the product from the catalog. Existing orders keep it.
func (s *CatalogService) Deactivate(ctx context.Context, productID int64) error {
	if err := s.products.SetProductActive(ctx, productID, false); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cache.KeyCategories, cache.KeyBrands); err != nil {
		slog.WarnContext(ctx, "cache delete error", "error", err)
	}
	slog.InfoContext(ctx, "product deactivated", "product_id", productID)
	return nil
}
