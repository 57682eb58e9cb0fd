package cache

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"food-explorer/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	c, err := New(db, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_SetGetExpire(t *testing.T) {
	c := newCache(t, time.Hour)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok := c.Get("3017620422003")
	assert.False(t, ok)

	c.Set("3017620422003", &models.Product{Code: "3017620422003", ProductName: "Nutella", NutritionGrades: "e"})

	got, ok := c.Get("3017620422003")
	require.True(t, ok)
	assert.Equal(t, "Nutella", got.ProductName)
	assert.Equal(t, "e", got.NutritionGrades)

	now = now.Add(2 * time.Hour)
	_, ok = c.Get("3017620422003")
	assert.False(t, ok, "entry past ttl must miss")

	purged, err := c.Purge()
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

type countingSource struct {
	calls   atomic.Int32
	release chan struct{}
}

func (s *countingSource) FetchPage(ctx context.Context, page, pageSize int) ([]models.Product, error) {
	return nil, nil
}

func (s *countingSource) Categories(ctx context.Context) ([]models.Category, error) {
	return []models.Category{{ID: "en:snacks", Name: "Snacks"}}, nil
}

func (s *countingSource) SearchByName(ctx context.Context, query string, pageSize int) ([]models.Product, error) {
	return nil, nil
}

func (s *countingSource) LookupBarcode(ctx context.Context, code string) (*models.Product, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if code == "000" {
		return nil, models.ErrProductNotFound
	}
	return &models.Product{Code: code, ProductName: "Product " + code}, nil
}

func TestSource_CachesLookups(t *testing.T) {
	inner := &countingSource{}
	src := NewSource(inner, newCache(t, time.Hour))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := src.LookupBarcode(ctx, "123")
		require.NoError(t, err)
		assert.Equal(t, "Product 123", p.ProductName)
	}
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err := src.LookupBarcode(ctx, "000")
	assert.ErrorIs(t, err, models.ErrProductNotFound)
	_, err = src.LookupBarcode(ctx, "000")
	assert.ErrorIs(t, err, models.ErrProductNotFound)
	assert.Equal(t, int32(3), inner.calls.Load(), "misses are not cached")

	cats, err := src.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestSource_CollapsesConcurrentLookups(t *testing.T) {
	inner := &countingSource{release: make(chan struct{})}
	src := NewSource(inner, newCache(t, time.Hour))

	var wg sync.WaitGroup
	results := make([]*models.Product, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := src.LookupBarcode(context.Background(), "555")
			if err == nil {
				results[i] = p
			}
		}(i)
	}

	require.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.LessOrEqual(t, inner.calls.Load(), int32(2))
	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, "555", p.Code)
	}
}
