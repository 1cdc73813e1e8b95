package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/arthaledger/artha/internal/embedding"
	"github.com/arthaledger/artha/internal/service"
)

// Embeddings are stored as little-endian float32 blobs. Brute-force scans
// over a single user's vectors are fast enough at personal-finance scale;
// an ANN index would be overkill here.

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vector := make([]float32, len(buf)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vector
}

// ExampleVectors loads every embedded labeled example for the user.
func (s *store) ExampleVectors(ctx context.Context, userID string) ([]service.StoredVector, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, `
		SELECT id, category_slug, subcategory_slug, embedding
		FROM labeled_examples
		WHERE user_id = ? AND embedding IS NOT NULL
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query example embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stored []service.StoredVector
	for rows.Next() {
		var id int64
		var categorySlug, subcategorySlug string
		var blob []byte
		if err := rows.Scan(&id, &categorySlug, &subcategorySlug, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		stored = append(stored, service.StoredVector{
			ID:              fmt.Sprintf("%d", id),
			CategorySlug:    categorySlug,
			SubcategorySlug: subcategorySlug,
			Vector:          decodeVector(blob),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embeddings: %w", err)
	}
	return stored, nil
}

// TransactionVectors loads every embedded, categorized, completed
// transaction for the user. A slug corrected by feedback wins over the
// original AI assignment.
func (s *store) TransactionVectors(ctx context.Context, userID string) ([]service.StoredVector, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, `
		SELECT id,
			COALESCE(NULLIF(category_slug, ''), ai_category_slug),
			COALESCE(NULLIF(subcategory_slug, ''), ai_subcategory_slug),
			embedding
		FROM transactions
		WHERE user_id = ?
			AND embedding IS NOT NULL
			AND status = 'completed'
			AND COALESCE(NULLIF(category_slug, ''), ai_category_slug) != ''
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stored []service.StoredVector
	for rows.Next() {
		var id string
		var categorySlug, subcategorySlug sql.NullString
		var blob []byte
		if err := rows.Scan(&id, &categorySlug, &subcategorySlug, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		stored = append(stored, service.StoredVector{
			ID:              id,
			CategorySlug:    categorySlug.String,
			SubcategorySlug: subcategorySlug.String,
			Vector:          decodeVector(blob),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embeddings: %w", err)
	}
	return stored, nil
}

// NearestExamples returns up to k of the user's labeled examples whose
// embedding similarity to vector clears minSimilarity, most similar first.
func (s *store) NearestExamples(ctx context.Context, userID string, vector []float32, k int, minSimilarity float64) ([]service.Neighbor, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: vector", ErrEmptySlice)
	}
	stored, err := s.ExampleVectors(ctx, userID)
	if err != nil {
		return nil, err
	}
	return embedding.Nearest(stored, vector, k, minSimilarity, ""), nil
}

// NearestTransactions returns up to k of the user's previously categorized
// transactions whose embedding similarity to vector clears minSimilarity,
// most similar first. excludeID keeps a transaction from matching itself.
func (s *store) NearestTransactions(ctx context.Context, userID string, vector []float32, k int, minSimilarity float64, excludeID string) ([]service.Neighbor, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: vector", ErrEmptySlice)
	}
	stored, err := s.TransactionVectors(ctx, userID)
	if err != nil {
		return nil, err
	}
	return embedding.Nearest(stored, vector, k, minSimilarity, excludeID), nil
}
