package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"
)

const transactionColumns = `
	id, user_id, description, normalized_description, amount, direction,
	occurred_at, category_slug, subcategory_slug, ai_category_slug,
	ai_subcategory_slug, kind, status, method, explanation, confidence,
	needs_review, embedding, embedded_at
`

// SaveTransactions inserts transactions, silently skipping IDs that already
// exist. Statement imports re-run safely.
func (s *store) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	for i := range transactions {
		txn := &transactions[i]
		_, err := s.exec.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, user_id, description, normalized_description, amount,
				direction, occurred_at, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			txn.ID,
			txn.UserID,
			txn.Description,
			txn.NormalizedDescription,
			txn.Amount,
			string(txn.Direction),
			txn.OccurredAt,
			string(model.StatusPending),
		)
		if err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}
	return nil
}

// GetTransaction fetches one transaction by ID.
func (s *store) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.exec.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactionsByUser returns up to limit of a user's transactions, newest
// first. A limit of 0 or less means no limit.
func (s *store) GetTransactionsByUser(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions WHERE user_id = ? ORDER BY occurred_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

// GetTransactionsWithoutEmbedding returns transactions still waiting for a
// vector, oldest first, so embedding workers drain the backlog in order.
func (s *store) GetTransactionsWithoutEmbedding(ctx context.Context, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions WHERE embedding IS NULL ORDER BY occurred_at ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

// UpdateCategorization writes all categorization fields of one row in a
// single statement.
func (s *store) UpdateCategorization(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	result, err := s.exec.ExecContext(ctx, `
		UPDATE transactions SET
			normalized_description = ?,
			category_slug = ?,
			subcategory_slug = ?,
			ai_category_slug = ?,
			ai_subcategory_slug = ?,
			kind = ?,
			status = ?,
			method = ?,
			explanation = ?,
			confidence = ?,
			needs_review = ?
		WHERE id = ?
	`,
		txn.NormalizedDescription,
		txn.CategorySlug,
		txn.SubcategorySlug,
		txn.AICategorySlug,
		txn.AISubcategorySlug,
		string(txn.Kind),
		string(txn.Status),
		txn.Method,
		txn.Explanation,
		txn.Confidence,
		txn.NeedsReview,
		txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update categorization: %w", err)
	}
	return requireRow(result, txn.ID)
}

// UpdateStatus moves a transaction between categorization states.
func (s *store) UpdateStatus(ctx context.Context, id string, status model.CategorizationStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.exec.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return requireRow(result, id)
}

// SaveEmbedding stores the generated vector for a transaction.
func (s *store) SaveEmbedding(ctx context.Context, id string, vector []float32) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: vector", ErrEmptySlice)
	}

	result, err := s.exec.ExecContext(ctx,
		`UPDATE transactions SET embedding = ?, embedded_at = ? WHERE id = ?`,
		encodeVector(vector), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to save embedding: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var normalized, categorySlug, subcategorySlug sql.NullString
	var aiCategorySlug, aiSubcategorySlug sql.NullString
	var kind, method, explanation sql.NullString
	var direction, status string
	var embedding []byte
	var embeddedAt sql.NullTime

	err := row.Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Description,
		&normalized,
		&txn.Amount,
		&direction,
		&txn.OccurredAt,
		&categorySlug,
		&subcategorySlug,
		&aiCategorySlug,
		&aiSubcategorySlug,
		&kind,
		&status,
		&method,
		&explanation,
		&txn.Confidence,
		&txn.NeedsReview,
		&embedding,
		&embeddedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.NormalizedDescription = normalized.String
	txn.CategorySlug = categorySlug.String
	txn.SubcategorySlug = subcategorySlug.String
	txn.AICategorySlug = aiCategorySlug.String
	txn.AISubcategorySlug = aiSubcategorySlug.String
	txn.Kind = model.TransactionKind(kind.String)
	txn.Status = model.CategorizationStatus(status)
	txn.Direction = model.TransactionDirection(direction)
	txn.Method = method.String
	txn.Explanation = explanation.String
	if len(embedding) > 0 {
		txn.Embedding = decodeVector(embedding)
	}
	if embeddedAt.Valid {
		txn.EmbeddedAt = &embeddedAt.Time
	}
	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var out []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return out, nil
}
