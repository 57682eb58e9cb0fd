package cache

import (
	"context"

	"food-explorer/pkg/catalog"
	"food-explorer/pkg/logger"
	"food-explorer/pkg/models"

	"golang.org/x/sync/singleflight"
)

// Source puts the cache in front of a catalog source's barcode lookups.
// Concurrent lookups of the same code share one upstream request.
type Source struct {
	catalog.Source
	cache *Cache
	group singleflight.Group
}

func NewSource(inner catalog.Source, cache *Cache) *Source {
	return &Source{Source: inner, cache: cache}
}

func (s *Source) LookupBarcode(ctx context.Context, code string) (*models.Product, error) {
	if cached, ok := s.cache.Get(code); ok {
		logger.Dedup("Cache hit for %s", code)
		return cached, nil
	}

	v, err, _ := s.group.Do(code, func() (any, error) {
		product, err := s.Source.LookupBarcode(ctx, code)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, models.ErrProductNotFound
		}
		s.cache.Set(code, product)
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	product := *v.(*models.Product)
	return &product, nil
}
