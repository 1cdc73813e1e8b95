package storage

import (
	"context"
	"fmt"

	"github.com/arthaledger/artha/internal/model"
)

const patternColumns = `
	id, pattern, category_slug, occurrence_count, user_count,
	agreement_count, is_verified, created_at, updated_at
`

// GetVerifiedPatterns returns all verified cross-user patterns.
func (s *store) GetVerifiedPatterns(ctx context.Context) ([]model.GlobalPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, `
		SELECT `+patternColumns+`
		FROM global_patterns
		WHERE is_verified = 1
		ORDER BY occurrence_count DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.GlobalPattern
	for rows.Next() {
		var p model.GlobalPattern
		if err := rows.Scan(&p.ID, &p.Pattern, &p.CategorySlug,
			&p.OccurrenceCount, &p.UserCount, &p.AgreementCount,
			&p.IsVerified, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patterns: %w", err)
	}
	return out, nil
}

// RecordContribution upserts the (pattern, category) row and bumps its
// evidence counters: occurrence and agreement always, user count only on
// this user's first contribution to the row. Returns the updated pattern.
func (s *store) RecordContribution(ctx context.Context, pattern, categorySlug, userID string) (*model.GlobalPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}
	if err := validateString(categorySlug, "categorySlug"); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	_, err := s.exec.ExecContext(ctx, `
		INSERT OR IGNORE INTO global_patterns (pattern, category_slug)
		VALUES (?, ?)
	`, pattern, categorySlug)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern: %w", err)
	}

	var id int64
	err = s.exec.QueryRowContext(ctx, `
		SELECT id FROM global_patterns WHERE pattern = ? AND category_slug = ?
	`, pattern, categorySlug).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pattern: %w", err)
	}

	if err := s.bumpPattern(ctx, id, userID, true); err != nil {
		return nil, err
	}

	var p model.GlobalPattern
	err = s.exec.QueryRowContext(ctx, `
		SELECT `+patternColumns+` FROM global_patterns WHERE id = ?
	`, id).Scan(&p.ID, &p.Pattern, &p.CategorySlug, &p.OccurrenceCount,
		&p.UserCount, &p.AgreementCount, &p.IsVerified, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reload pattern: %w", err)
	}
	return &p, nil
}

// RecordDisagreements bumps the occurrence count of every row sharing the
// pattern text under a different category, without crediting agreement.
// Competing categories dilute each other's agreement rate.
func (s *store) RecordDisagreements(ctx context.Context, pattern, categorySlug, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	rows, err := s.exec.QueryContext(ctx, `
		SELECT id FROM global_patterns
		WHERE pattern = ? AND category_slug != ?
	`, pattern, categorySlug)
	if err != nil {
		return fmt.Errorf("failed to query competing patterns: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan pattern id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("failed to iterate patterns: %w", err)
	}
	_ = rows.Close()

	for _, id := range ids {
		if err := s.bumpPattern(ctx, id, userID, false); err != nil {
			return err
		}
	}
	return nil
}

// bumpPattern increments a pattern row's counters for one contribution.
func (s *store) bumpPattern(ctx context.Context, id int64, userID string, agreed bool) error {
	result, err := s.exec.ExecContext(ctx, `
		INSERT OR IGNORE INTO global_pattern_users (pattern_id, user_id)
		VALUES (?, ?)
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to record pattern user: %w", err)
	}
	newUser, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}

	agreement := 0
	if agreed {
		agreement = 1
	}
	_, err = s.exec.ExecContext(ctx, `
		UPDATE global_patterns SET
			occurrence_count = occurrence_count + 1,
			agreement_count = agreement_count + ?,
			user_count = user_count + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, agreement, newUser, id)
	if err != nil {
		return fmt.Errorf("failed to update pattern counters: %w", err)
	}
	return nil
}

// MarkVerified flips a pattern to verified. Verification is one-way; there
// is no corresponding unmark.
func (s *store) MarkVerified(ctx context.Context, patternID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.exec.ExecContext(ctx, `
		UPDATE global_patterns
		SET is_verified = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, patternID)
	if err != nil {
		return fmt.Errorf("failed to mark pattern verified: %w", err)
	}
	return nil
}
