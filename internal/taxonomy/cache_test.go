package taxonomy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTaxonomyStore struct {
	mu            sync.Mutex
	categories    []model.Category
	subcategories []model.Subcategory
	err           error
	loads         int
}

func (s *countingTaxonomyStore) GetCategories(_ context.Context) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.categories, nil
}

func (s *countingTaxonomyStore) GetSubcategories(_ context.Context) ([]model.Subcategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.subcategories, nil
}

func (s *countingTaxonomyStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *countingTaxonomyStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func testStore() *countingTaxonomyStore {
	return &countingTaxonomyStore{
		categories: []model.Category{
			{ID: 1, Slug: "food", Name: "Food & Dining", IsActive: true},
			{ID: 2, Slug: "travel", Name: "Travel", IsActive: true},
		},
		subcategories: []model.Subcategory{
			{ID: 10, CategoryID: 1, Slug: "restaurants", IsDefault: true, IsActive: true},
			{ID: 11, CategoryID: 1, Slug: "food-delivery", Keywords: []string{"zomato"}, IsActive: true},
			{ID: 12, CategoryID: 2, Slug: "flights", IsActive: true},
		},
	}
}

func TestCategoryCacheLookups(t *testing.T) {
	ctx := context.Background()
	cache := NewCategoryCache(testStore(), time.Hour)

	cat, err := cache.FindBySlug(ctx, "FOOD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cat.ID, "slug lookup is case-insensitive")

	cat, err = cache.FindByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "travel", cat.Slug)

	_, err = cache.FindBySlug(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)

	all, err := cache.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCategoryCacheLoadsOncePerTTL(t *testing.T) {
	ctx := context.Background()
	store := testStore()
	cache := NewCategoryCache(store, time.Hour)

	for i := 0; i < 5; i++ {
		_, err := cache.FindBySlug(ctx, "food")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.loadCount())
	assert.False(t, cache.Stale())
}

func TestCategoryCacheRefreshesAfterTTL(t *testing.T) {
	ctx := context.Background()
	store := testStore()
	cache := NewCategoryCache(store, time.Nanosecond)

	_, err := cache.FindBySlug(ctx, "food")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	assert.True(t, cache.Stale())

	_, err = cache.FindBySlug(ctx, "food")
	require.NoError(t, err)
	assert.Equal(t, 2, store.loadCount())
}

func TestCategoryCacheServesStaleOnRefreshFailure(t *testing.T) {
	ctx := context.Background()
	store := testStore()
	cache := NewCategoryCache(store, time.Nanosecond)

	_, err := cache.FindBySlug(ctx, "food")
	require.NoError(t, err)

	store.setErr(errors.New("db gone"))
	time.Sleep(time.Millisecond)

	cat, err := cache.FindBySlug(ctx, "food")
	require.NoError(t, err, "stale data must be served when refresh fails")
	assert.Equal(t, int64(1), cat.ID)
}

func TestCategoryCacheFirstLoadFailure(t *testing.T) {
	store := testStore()
	store.setErr(errors.New("db gone"))
	cache := NewCategoryCache(store, time.Hour)

	_, err := cache.FindBySlug(context.Background(), "food")
	assert.Error(t, err, "with no snapshot there is nothing to fall back to")
}

func TestCategoryCacheRefreshAndClear(t *testing.T) {
	ctx := context.Background()
	store := testStore()
	cache := NewCategoryCache(store, time.Hour)

	require.NoError(t, cache.Refresh(ctx))
	assert.Equal(t, 1, store.loadCount())

	cache.Clear()
	assert.True(t, cache.Stale())

	_, err := cache.FindBySlug(ctx, "food")
	require.NoError(t, err)
	assert.Equal(t, 2, store.loadCount())
}

func TestSubcategoryCacheGrouping(t *testing.T) {
	ctx := context.Background()
	cache := NewSubcategoryCache(testStore(), time.Hour)

	subs, err := cache.ForCategory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	def, err := cache.DefaultFor(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "restaurants", def.Slug)

	// travel has no default
	def, err = cache.DefaultFor(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, def)

	sub, err := cache.FindBySlug(ctx, "Food-Delivery")
	require.NoError(t, err)
	assert.Equal(t, int64(11), sub.ID)
}

func TestSubcategoryCacheConcurrentReads(t *testing.T) {
	ctx := context.Background()
	cache := NewSubcategoryCache(testStore(), time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.ForCategory(ctx, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
