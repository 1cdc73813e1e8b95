package llm

import (
	"context"
	"testing"
	"time"

	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/taxonomy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTaxonomyStore struct{}

func (stubTaxonomyStore) GetCategories(_ context.Context) ([]model.Category, error) {
	return []model.Category{
		{ID: 1, Slug: "food", Name: "Food & Dining", IsActive: true},
		{ID: 2, Slug: "entertainment", Name: "Entertainment", IsActive: true},
	}, nil
}

func (stubTaxonomyStore) GetSubcategories(_ context.Context) ([]model.Subcategory, error) {
	return []model.Subcategory{
		{ID: 10, CategoryID: 1, Slug: "food-delivery", IsActive: true},
		{ID: 11, CategoryID: 1, Slug: "restaurants", IsActive: true},
		{ID: 20, CategoryID: 2, Slug: "streaming", IsActive: true},
	}, nil
}

func taxonomyCategorizer() *Categorizer {
	return &Categorizer{
		categories:    taxonomy.NewCategoryCache(stubTaxonomyStore{}, time.Hour),
		subcategories: taxonomy.NewSubcategoryCache(stubTaxonomyStore{}, time.Hour),
	}
}

func TestToResultKeepsMatchingSubcategory(t *testing.T) {
	c := taxonomyCategorizer()
	txn := &model.Transaction{ID: "t1"}

	res := c.toResult(context.Background(), &categorization{
		Category:    "Food",
		Subcategory: "Food-Delivery",
		Confidence:  0.8,
	}, txn)

	require.NotNil(t, res)
	assert.Equal(t, "food", res.CategorySlug)
	assert.Equal(t, "food-delivery", res.SubcategorySlug)
	assert.Equal(t, model.MethodLLM, res.Method)
}

func TestToResultDropsForeignSubcategory(t *testing.T) {
	// streaming belongs to entertainment, not food; the category is kept but
	// the mismatched subcategory must not be persisted.
	c := taxonomyCategorizer()
	txn := &model.Transaction{ID: "t1"}

	res := c.toResult(context.Background(), &categorization{
		Category:    "food",
		Subcategory: "streaming",
		Confidence:  0.8,
	}, txn)

	require.NotNil(t, res)
	assert.Equal(t, "food", res.CategorySlug)
	assert.Empty(t, res.SubcategorySlug)
}

func TestToResultRejectsUnknownCategory(t *testing.T) {
	c := taxonomyCategorizer()
	txn := &model.Transaction{ID: "t1"}

	res := c.toResult(context.Background(), &categorization{
		Category:   "crypto",
		Confidence: 0.9,
	}, txn)
	assert.Nil(t, res)
}

func TestToResultDropsInvalidKind(t *testing.T) {
	c := taxonomyCategorizer()
	txn := &model.Transaction{ID: "t1"}

	res := c.toResult(context.Background(), &categorization{
		Category:   "food",
		Kind:       "gift",
		Confidence: 0.8,
	}, txn)

	require.NotNil(t, res)
	assert.Empty(t, res.Kind)

	res = c.toResult(context.Background(), &categorization{
		Category:   "food",
		Kind:       "SPEND",
		Confidence: 0.8,
	}, txn)
	require.NotNil(t, res)
	assert.Equal(t, model.KindSpend, res.Kind)
}
