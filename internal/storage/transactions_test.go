package storage

import (
	"context"
	"testing"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGetTransaction(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	txns := testTransactions("user-1", 3)
	require.NoError(t, s.SaveTransactions(ctx, txns))

	got, err := s.GetTransaction(ctx, txns[1].ID)
	require.NoError(t, err)
	assert.Equal(t, txns[1].Description, got.Description)
	assert.Equal(t, txns[1].Amount, got.Amount)
	assert.Equal(t, model.DirectionDebit, got.Direction)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.True(t, txns[1].OccurredAt.Equal(got.OccurredAt))
}

func TestGetTransactionNotFound(t *testing.T) {
	s := createTestStorage(t)

	_, err := s.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveTransactionsIsReimportSafe(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	txns := testTransactions("user-1", 2)
	require.NoError(t, s.SaveTransactions(ctx, txns))

	// Categorize one row, then import the same statement again.
	first, err := s.GetTransaction(ctx, txns[0].ID)
	require.NoError(t, err)
	first.Status = model.StatusCompleted
	first.AICategorySlug = "food"
	require.NoError(t, s.UpdateCategorization(ctx, first))

	require.NoError(t, s.SaveTransactions(ctx, txns))

	got, err := s.GetTransaction(ctx, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status, "re-import must not reset categorized rows")
	assert.Equal(t, "food", got.AICategorySlug)
}

func TestGetTransactionsByUser(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTransactions(ctx, testTransactions("user-1", 5)))
	require.NoError(t, s.SaveTransactions(ctx, testTransactions("user-2", 2)))

	got, err := s.GetTransactionsByUser(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 5)

	// Newest first.
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i-1].OccurredAt.Before(got[i].OccurredAt))
	}

	limited, err := s.GetTransactionsByUser(ctx, "user-1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpdateCategorizationRoundTrip(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	txns := testTransactions("user-1", 1)
	require.NoError(t, s.SaveTransactions(ctx, txns))

	txn, err := s.GetTransaction(ctx, txns[0].ID)
	require.NoError(t, err)
	txn.Status = model.StatusCompleted
	txn.NormalizedDescription = "zomato order"
	txn.AICategorySlug = "food"
	txn.AISubcategorySlug = "food-delivery"
	txn.Kind = model.KindSpend
	txn.Confidence = 0.92
	txn.Method = model.MethodSystemRule
	txn.Explanation = "matched keywords: zomato"
	require.NoError(t, s.UpdateCategorization(ctx, txn))

	got, err := s.GetTransaction(ctx, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "food", got.AICategorySlug)
	assert.Equal(t, "food-delivery", got.AISubcategorySlug)
	assert.Equal(t, model.KindSpend, got.Kind)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)
	assert.Equal(t, model.MethodSystemRule, got.Method)
	assert.Equal(t, "matched keywords: zomato", got.Explanation)
	assert.Equal(t, "zomato order", got.NormalizedDescription)
}

func TestUpdateCategorizationMissingRow(t *testing.T) {
	s := createTestStorage(t)

	txn := testTransactions("user-1", 1)[0]
	err := s.UpdateCategorization(context.Background(), &txn)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEmbeddingLifecycle(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	txns := testTransactions("user-1", 3)
	require.NoError(t, s.SaveTransactions(ctx, txns))

	missing, err := s.GetTransactionsWithoutEmbedding(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, missing, 3)

	vector := []float32{0.25, -0.5, 1.0}
	require.NoError(t, s.SaveEmbedding(ctx, txns[0].ID, vector))

	got, err := s.GetTransaction(ctx, txns[0].ID)
	require.NoError(t, err)
	require.True(t, got.HasEmbedding())
	assert.Equal(t, vector, got.Embedding)
	require.NotNil(t, got.EmbeddedAt)

	missing, err = s.GetTransactionsWithoutEmbedding(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, missing, 2)
}
