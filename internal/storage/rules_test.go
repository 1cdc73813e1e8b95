package storage

import (
	"context"
	"testing"

	"github.com/arthaledger/artha/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(userID, pattern, categorySlug string) *model.UserRule {
	return &model.UserRule{
		UserID:       userID,
		Pattern:      pattern,
		PatternType:  model.PatternKeyword,
		MatchField:   model.FieldNormalized,
		CategorySlug: categorySlug,
		Provenance:   model.ProvenanceUser,
		Confidence:   0.9,
		IsActive:     true,
	}
}

func TestFindOrCreateRule(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	rule := testRule("user-1", "Zomato Order", "food")
	created, err := s.FindOrCreateRule(ctx, rule)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, rule.ID)
	assert.Equal(t, "zomato order", rule.Pattern, "patterns are normalized on write")

	// Same (user, pattern, category) resolves to the existing row.
	dup := testRule("user-1", "ZOMATO ORDER", "food")
	created, err = s.FindOrCreateRule(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rule.ID, dup.ID)

	// A different category for the same pattern is a distinct rule.
	other := testRule("user-1", "zomato order", "groceries")
	created, err = s.FindOrCreateRule(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, rule.ID, other.ID)
}

func TestGetActiveRulesOrdering(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	low := testRule("user-1", "zomato order", "food")
	_, err := s.FindOrCreateRule(ctx, low)
	require.NoError(t, err)

	high := testRule("user-1", "swiggy order", "food")
	high.Priority = 10
	_, err = s.FindOrCreateRule(ctx, high)
	require.NoError(t, err)

	inactive := testRule("user-1", "uber ride", "transport")
	inactive.IsActive = false
	_, err = s.FindOrCreateRule(ctx, inactive)
	require.NoError(t, err)

	foreign := testRule("user-2", "zomato order", "food")
	_, err = s.FindOrCreateRule(ctx, foreign)
	require.NoError(t, err)

	rules, err := s.GetActiveRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "swiggy order", rules[0].Pattern, "highest priority first")
	assert.Equal(t, "zomato order", rules[1].Pattern)
}

func TestCountAutoRules(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	auto := testRule("user-1", "zomato order", "food")
	auto.Provenance = model.ProvenanceLLMAuto
	_, err := s.FindOrCreateRule(ctx, auto)
	require.NoError(t, err)

	manual := testRule("user-1", "swiggy order", "food")
	_, err = s.FindOrCreateRule(ctx, manual)
	require.NoError(t, err)

	count, err := s.CountAutoRules(ctx, "user-1", "food")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only llm_auto rules count against the cap")
}

func TestRecordRuleMatch(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	rule := testRule("user-1", "zomato order", "food")
	_, err := s.FindOrCreateRule(ctx, rule)
	require.NoError(t, err)

	require.NoError(t, s.RecordRuleMatch(ctx, rule.ID))
	require.NoError(t, s.RecordRuleMatch(ctx, rule.ID))

	rules, err := s.GetActiveRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 2, rules[0].MatchCount)
	assert.NotNil(t, rules[0].LastMatchedAt)
}
