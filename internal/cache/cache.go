package cache

import (
	"context"
	"errors"
)

// CatalogCache holds catalog facets and related-product lists. Nothing that
// checkout or the cart depend on is ever read from it.
type CatalogCache interface {
	GetStrings(ctx context.Context, key string) ([]string, error)
	SetStrings(ctx context.Context, key string, values []string) error
	GetIDs(ctx context.Context, key string) ([]int64, error)
	SetIDs(ctx context.Context, key string, ids []int64) error
	Delete(ctx context.Context, keys ...string) error
}

var ErrCacheMiss = errors.New("cache miss")

const (
	KeyCategories = "catalog:categories"
	KeyBrands     = "catalog:brands"
)

// Noop is used when no redis is configured; every read misses.
type Noop struct{}

func (Noop) GetStrings(context.Context, string) ([]string, error) { return nil, ErrCacheMiss }
func (Noop) SetStrings(context.Context, string, []string) error { return nil }
func (Noop) GetIDs(context.Context, string) ([]int64, error) { return nil, ErrCacheMiss }
func (Noop) SetIDs(context.Context, string, []int64) error { return nil }
func (Noop) Delete(context.Context, ...string) error { return nil }
