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

type subcategorySnapshot struct {
	loadedAt   time.Time
	bySlug     map[string]model.Subcategory
	byID       map[int64]model.Subcategory
	byCategory map[int64][]model.Subcategory
	defaults   map[int64]model.Subcategory
	all        []model.Subcategory
}

// SubcategoryCache is a read-through cache over the subcategory taxonomy,
// with per-category grouping and per-category default lookup.
type SubcategoryCache struct {
	store     service.TaxonomyStore
	ttl       time.Duration
	snap      atomic.Pointer[subcategorySnapshot]
	refreshMu sync.Mutex
}

// NewSubcategoryCache creates a subcategory cache with the given TTL. A zero
// ttl uses DefaultTTL.
func NewSubcategoryCache(store service.TaxonomyStore, ttl time.Duration) *SubcategoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SubcategoryCache{store: store, ttl: ttl}
}

// FindBySlug returns the subcategory with the given slug, case-insensitively.
func (c *SubcategoryCache) FindBySlug(ctx context.Context, slug string) (*model.Subcategory, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if sub, ok := snap.bySlug[strings.ToLower(slug)]; ok {
		return &sub, nil
	}
	return nil, fmt.Errorf("subcategory %q: %w", slug, common.ErrNotFound)
}

// FindByID returns the subcategory with the given id.
func (c *SubcategoryCache) FindByID(ctx context.Context, id int64) (*model.Subcategory, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if sub, ok := snap.byID[id]; ok {
		return &sub, nil
	}
	return nil, fmt.Errorf("subcategory id %d: %w", id, common.ErrNotFound)
}

// ForCategory returns the subcategories belonging to a category.
func (c *SubcategoryCache) ForCategory(ctx context.Context, categoryID int64) ([]model.Subcategory, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return snap.byCategory[categoryID], nil
}

// DefaultFor returns the category's default subcategory, or nil when the
// category has none.
func (c *SubcategoryCache) DefaultFor(ctx context.Context, categoryID int64) (*model.Subcategory, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if sub, ok := snap.defaults[categoryID]; ok {
		return &sub, nil
	}
	return nil, nil
}

// All returns every cached subcategory.
func (c *SubcategoryCache) All(ctx context.Context) ([]model.Subcategory, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return snap.all, nil
}

// Stale reports whether the snapshot has outlived the TTL.
func (c *SubcategoryCache) Stale() bool {
	snap := c.snap.Load()
	return snap == nil || time.Since(snap.loadedAt) > c.ttl
}

// Refresh forces a reload. A failed reload keeps the existing snapshot.
func (c *SubcategoryCache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.reload(ctx)
}

// Clear drops the snapshot. Test hook.
func (c *SubcategoryCache) Clear() {
	c.snap.Store(nil)
}

func (c *SubcategoryCache) ensureLoaded(ctx context.Context) (*subcategorySnapshot, error) {
	snap := c.snap.Load()
	if snap == nil {
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
			common.LogError(err, "subcategory cache refresh failed, serving stale data", nil)
		}
		c.refreshMu.Unlock()
		snap = c.snap.Load()
	}
	return snap, nil
}

func (c *SubcategoryCache) reload(ctx context.Context) error {
	subcategories, err := c.store.GetSubcategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load subcategories: %w", err)
	}

	snap := &subcategorySnapshot{
		loadedAt:   time.Now(),
		bySlug:     make(map[string]model.Subcategory, len(subcategories)),
		byID:       make(map[int64]model.Subcategory, len(subcategories)),
		byCategory: make(map[int64][]model.Subcategory),
		defaults:   make(map[int64]model.Subcategory),
		all:        subcategories,
	}
	for _, sub := range subcategories {
		snap.bySlug[strings.ToLower(sub.Slug)] = sub
		snap.byID[sub.ID] = sub
		snap.byCategory[sub.CategoryID] = append(snap.byCategory[sub.CategoryID], sub)
		if sub.IsDefault {
			snap.defaults[sub.CategoryID] = sub
		}
	}
	c.snap.Store(snap)
	return nil
}
