package storage

import (
	"context"
	"fmt"

	"github.com/arthaledger/artha/internal/model"
)

// FindOrCreateExample inserts a labeled example unless the user already has
// one for the same normalized description. Existing examples are left
// untouched; the earlier label wins. The returned bool reports whether a row
// was created, and the example's ID is filled in either way.
func (s *store) FindOrCreateExample(ctx context.Context, example *model.LabeledExample) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateExample(example); err != nil {
		return false, err
	}

	var embedding []byte
	if len(example.Embedding) > 0 {
		embedding = encodeVector(example.Embedding)
	}

	result, err := s.exec.ExecContext(ctx, `
		INSERT OR IGNORE INTO labeled_examples (
			user_id, normalized_description, category_slug,
			subcategory_slug, source, embedding
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		example.UserID,
		example.NormalizedDescription,
		example.CategorySlug,
		example.SubcategorySlug,
		string(example.Source),
		embedding,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create example: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}

	if affected > 0 {
		id, idErr := result.LastInsertId()
		if idErr != nil {
			return false, fmt.Errorf("failed to get example id: %w", idErr)
		}
		example.ID = id
		return true, nil
	}

	row := s.exec.QueryRowContext(ctx, `
		SELECT id FROM labeled_examples
		WHERE user_id = ? AND normalized_description = ?
	`, example.UserID, example.NormalizedDescription)
	if err := row.Scan(&example.ID); err != nil {
		return false, fmt.Errorf("failed to look up existing example: %w", err)
	}
	return false, nil
}

// SaveExampleEmbedding stores the generated vector for a labeled example.
func (s *store) SaveExampleEmbedding(ctx context.Context, id int64, vector []float32) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: vector", ErrEmptySlice)
	}

	_, err := s.exec.ExecContext(ctx, `
		UPDATE labeled_examples
		SET embedding = ?, embedded_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, encodeVector(vector), id)
	if err != nil {
		return fmt.Errorf("failed to save example embedding: %w", err)
	}
	return nil
}
