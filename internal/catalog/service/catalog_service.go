package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/catalog/cache"
	"github.com/fjod/go_storefront/internal/catalog/domain"
	"github.com/fjod/go_storefront/internal/catalog/repository"
	"github.com/fjod/go_storefront/internal/logging"
	"github.com/fjod/go_storefront/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RelatedLimit is the number of related products shown next to a product.
const RelatedLimit = 4

const cacheWriteTimeout = time.Second

type CatalogService struct {
	repo    repository.RepoInterface
	cache   cache.CatalogCache
	metrics *metrics.Metrics
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCatalogService(repo repository.RepoInterface, c cache.CatalogCache, m *metrics.Metrics) *CatalogService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &CatalogService{
		repo:    repo,
		cache:   c,
		metrics: m,
	}
}

func (s *CatalogService) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return s.product(ctx, cache.ProductSlugKey(slug), func(ctx context.Context) (*domain.Product, error) {
		return s.repo.GetProductBySlug(ctx, slug)
	})
}

func (s *CatalogService) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.product(ctx, cache.ProductIDKey(id), func(ctx context.Context) (*domain.Product, error) {
		return s.repo.GetProduct(ctx, id)
	})
}

// List returns the catalog, optionally restricted to one category. The
// pseudo-category "all" is the same as no filter.
func (s *CatalogService) List(ctx context.Context, category string) ([]*domain.Product, error) {
	if category == "all" {
		category = ""
	}
	key := cache.ListKey(category)

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		products, err := s.cache.GetProducts(ctx, key)
		if err == nil {
			s.metrics.CacheLookup("hit")
			return products, nil
		}
		s.cacheError(ctx, key, err)

		if category == "" {
			products, err = s.repo.GetAllProducts(ctx)
		} else {
			products, err = s.repo.ListByCategory(ctx, category)
		}
		if err != nil {
			return nil, err
		}

		s.store(ctx, key, func(ctx context.Context) error {
			return s.cache.SetProducts(ctx, key, products)
		})
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Product), nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.Categories(ctx)
}

// Related returns up to limit other products from p's category.
func (s *CatalogService) Related(ctx context.Context, p *domain.Product, limit int) ([]*domain.Product, error) {
	products, err := s.List(ctx, p.Category)
	if err != nil {
		return nil, err
	}

	related := make([]*domain.Product, 0, limit)
	for _, candidate := range products {
		if len(related) == limit {
			break
		}
		if candidate.ID == p.ID {
			continue
		}
		related = append(related, candidate)
	}
	return related, nil
}

func (s *CatalogService) product(ctx context.Context, key string, load func(context.Context) (*domain.Product, error)) (*domain.Product, error) {
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		p, err := s.cache.GetProduct(ctx, key)
		if err == nil {
			s.metrics.CacheLookup("hit")
			return p, nil
		}
		s.cacheError(ctx, key, err)

		p, err = load(ctx)
		if err != nil {
			return nil, err
		}

		s.store(ctx, key, func(ctx context.Context) error {
			return s.cache.SetProduct(ctx, key, p)
		})
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (s *CatalogService) cacheError(ctx context.Context, key string, err error) {
	if errors.Is(err, cache.ErrCacheMiss) {
		s.metrics.CacheLookup("miss")
		return
	}
	s.metrics.CacheLookup("error")
	// cache errors are not fatal, the repository is the source of truth
	logging.FromContext(ctx).Warn("catalog_cache_get_failed", zap.String("key", key), zap.Error(err))
}

func (s *CatalogService) store(ctx context.Context, key string, set func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := set(ctx); err != nil {
		logging.FromContext(ctx).Warn("catalog_cache_set_failed", zap.String("key", key), zap.Error(err))
	}
}
