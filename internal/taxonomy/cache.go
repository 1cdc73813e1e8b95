// Package taxonomy provides TTL-bound, concurrency-safe read-through caches
// over the category and subcategory stores. Categories change rarely, so the
// caches favor availability: a reader that cannot win the refresh race serves
// possibly-stale data instead of blocking, and a failed reload keeps the
// previous snapshot rather than emptying the cache.
package taxonomy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/service"
)

// DefaultTTL is how long a snapshot is served before a refresh is attempted.
const DefaultTTL = time.Hour

type categorySnapshot struct {
	loadedAt time.Time
	bySlug   map[string]model.Category
	byID     map[int64]model.Category
	all      []model.Category
}

// CategoryCache is a read-through cache over the category taxonomy.
// Construct one per process and pass it by reference.
type CategoryCache struct {
	store     service.TaxonomyStore
	ttl       time.Duration
	snap      atomic.Pointer[categorySnapshot]
	refreshMu sync.Mutex
}

// NewCategoryCache creates a category cache with the given TTL. A zero ttl
// uses DefaultTTL.
func NewCategoryCache(store service.TaxonomyStore, ttl time.Duration) *CategoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CategoryCache{store: store, ttl: ttl}
}

// FindBySlug returns the category with the given slug, case-insensitively.
func (c *CategoryCache) FindBySlug(ctx context.Context, slug string) (*model.Category, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if cat, ok := snap.bySlug[strings.ToLower(slug)]; ok {
		return &cat, nil
	}
	return nil, fmt.Errorf("category %q: %w", slug, common.ErrNotFound)
}

// FindByID returns the category with the given id.
func (c *CategoryCache) FindByID(ctx context.Context, id int64) (*model.Category, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if cat, ok := snap.byID[id]; ok {
		return &cat, nil
	}
	return nil, fmt.Errorf("category id %d: %w", id, common.ErrNotFound)
}

// All returns every cached category.
func (c *CategoryCache) All(ctx context.Context) ([]model.Category, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return snap.all, nil
}

// Stale reports whether the snapshot has outlived the TTL.
func (c *CategoryCache) Stale() bool {
	snap := c.snap.Load()
	return snap == nil || time.Since(snap.loadedAt) > c.ttl
}

// Refresh forces a reload. A failed reload keeps the existing snapshot.
func (c *CategoryCache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.reload(ctx)
}

// Clear drops the snapshot. Test hook.
func (c *CategoryCache) Clear() {
	c.snap.Store(nil)
}

func (c *CategoryCache) ensureLoaded(ctx context.Context) (*categorySnapshot, error) {
	snap := c.snap.Load()
	if snap == nil {
		// Nothing to serve yet, so the first load blocks.
		c.refreshMu.Lock()
		defer c.refreshMu.Unlock()
		if snap = c.snap.Load(); snap != nil {
			return snap, nil
		}
		if err := c.reload(ctx); err != nil {
			return nil, err
		}
		return c.snap.Load(), nil
	}

	if time.Since(snap.loadedAt) > c.ttl && c.refreshMu.TryLock() {
		if err := c.reload(ctx); err != nil {
			common.LogError(err, "category cache refresh failed, serving stale data", nil)
		}
		c.refreshMu.Unlock()
		snap = c.snap.Load()
	}
	return snap, nil
}

func (c *CategoryCache) reload(ctx context.Context) error {
	categories, err := c.store.GetCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	snap := &categorySnapshot{
		loadedAt: time.Now(),
		bySlug:   make(map[string]model.Category, len(categories)),
		byID:     make(map[int64]model.Category, len(categories)),
		all:      categories,
	}
	for _, cat := range categories {
		snap.bySlug[strings.ToLower(cat.Slug)] = cat
		snap.byID[cat.ID] = cat
	}
	c.snap.Store(snap)
	return nil
}
