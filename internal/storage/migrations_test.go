package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateReachesExpectedVersion(t *testing.T) {
	s := createTestStorage(t)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestMigrateSeedsDefaultTaxonomy(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	categories, err := s.GetCategories(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, categories)

	bySlug := make(map[string]int64, len(categories))
	for _, c := range categories {
		assert.True(t, c.IsActive)
		bySlug[c.Slug] = c.ID
	}
	for _, slug := range []string{"food", "transport", "salary", "transfer", "emi", "investment"} {
		assert.Contains(t, bySlug, slug)
	}

	subcategories, err := s.GetSubcategories(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, subcategories)

	var foodDelivery bool
	var foodDefault int
	for _, sub := range subcategories {
		if sub.CategoryID != bySlug["food"] {
			continue
		}
		if sub.Slug == "food-delivery" {
			foodDelivery = true
			assert.Contains(t, sub.Keywords, "zomato")
		}
		if sub.IsDefault {
			foodDefault++
		}
	}
	assert.True(t, foodDelivery, "seed taxonomy carries the food-delivery keywords")
	assert.Equal(t, 1, foodDefault, "exactly one default subcategory per category")
}
