package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testTransactions(userID string, count int) []model.Transaction {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	txns := make([]model.Transaction, count)
	for i := range txns {
		txns[i] = model.Transaction{
			ID:          fmt.Sprintf("%s-txn-%03d", userID, i+1),
			UserID:      userID,
			Description: fmt.Sprintf("Zomato Order %d", i+1),
			Amount:      float64(i+1) * 100.50,
			Direction:   model.DirectionDebit,
			OccurredAt:  base.Add(time.Duration(i) * time.Hour),
			Status:      model.StatusPending,
		}
	}
	return txns
}

func TestNewSQLiteStorageCreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	s, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Migrate(context.Background()))
}

func TestAtomicallyCommits(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	txns := testTransactions("user-1", 1)
	require.NoError(t, s.SaveTransactions(ctx, txns))

	err := s.Atomically(ctx, func(ls service.LearningStore) error {
		txn, err := ls.GetTransaction(ctx, txns[0].ID)
		if err != nil {
			return err
		}
		txn.Status = model.StatusCompleted
		txn.CategorySlug = "food"
		return ls.UpdateCategorization(ctx, txn)
	})
	require.NoError(t, err)

	got, err := s.GetTransaction(ctx, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "food", got.CategorySlug)
}

func TestAtomicallyRollsBackOnError(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	txns := testTransactions("user-1", 1)
	require.NoError(t, s.SaveTransactions(ctx, txns))

	failure := errors.New("abort")
	err := s.Atomically(ctx, func(ls service.LearningStore) error {
		if err := ls.UpdateStatus(ctx, txns[0].ID, model.StatusCompleted); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	got, err := s.GetTransaction(ctx, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status, "update inside failed unit of work must not persist")
}

func TestAtomicallyRejectsNesting(t *testing.T) {
	s := createTestStorage(t)
	ctx := context.Background()

	err := s.Atomically(ctx, func(ls service.LearningStore) error {
		return ls.Atomically(ctx, func(service.LearningStore) error { return nil })
	})
	require.Error(t, err)
}
