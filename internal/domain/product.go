package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	ImageURL    string          `json:"imageUrl"`
	Rating      float64         `json:"rating"`
	ReviewCount int             `json:"reviewCount"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CanSupply reports whether the product is on sale with at least qty units left.
func (p *Product) CanSupply(qty int) bool {
	return p.Active && qty > 0 && p.Stock >= qty
}

// ProductQuery is the single catalog filter. Zero values mean "no filter".
type ProductQuery struct {
	Keyword  string
	Category string
	Brand    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     PageRequest
}

func (q ProductQuery) Validate() error {
	if q.MinPrice != nil && q.MinPrice.IsNegative() {
		return Validationf("minPrice must not be negative")
	}
	if q.MaxPrice != nil && q.MaxPrice.IsNegative() {
		return Validationf("maxPrice must not be negative")
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return Validationf("minPrice must not exceed maxPrice")
	}
	return nil
}

// Product sort keys accepted from clients.
const (
	SortByName        = "name"
	SortByPrice       = "price"
	SortByRating      = "rating"
	SortByReviewCount = "reviewCount"
	SortByCreatedAt   = "createdAt"
	SortByStock       = "stock"
	// SortByPopularity orders by rating then review count, both descending.
	SortByPopularity = "popularity"
)

var productSortKeys = map[string]bool{
	SortByName:        true,
	SortByPrice:       true,
	SortByRating:      true,
	SortByReviewCount: true,
	SortByCreatedAt:   true,
	SortByStock:       true,
	SortByPopularity:  true,
}

func IsProductSortKey(key string) bool {
	return productSortKeys[key]
}
