package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/catalog/domain"
)

type CatalogCache interface {
	GetProduct(ctx context.Context, key string) (*domain.Product, error)
	SetProduct(ctx context.Context, key string, product *domain.Product) error
	GetProducts(ctx context.Context, key string) ([]*domain.Product, error)
	SetProducts(ctx context.Context, key string, products []*domain.Product) error
}

var ErrCacheMiss = errors.New("cache miss")

func ProductIDKey(id string) string {
	return fmt.Sprintf("catalog:product:id:%s", id)
}

func ProductSlugKey(slug string) string {
	return fmt.Sprintf("catalog:product:slug:%s", slug)
}

// ListKey keys a product listing; the empty category is the full catalog.
func ListKey(category string) string {
	if category == "" {
		return "catalog:products:all"
	}
	return fmt.Sprintf("catalog:products:category:%s", category)
}

// NopCache always misses. Used when no Redis address is configured.
type NopCache struct{}

func (NopCache) GetProduct(context.Context, string) (*domain.Product, error) {
	return nil, ErrCacheMiss
}

func (NopCache) SetProduct(context.Context, string, *domain.Product) error { return nil }

func (NopCache) GetProducts(context.Context, string) ([]*domain.Product, error) {
	return nil, ErrCacheMiss
}

func (NopCache) SetProducts(context.Context, string, []*domain.Product) error { return nil }
