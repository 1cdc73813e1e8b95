package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arthaledger/artha/internal/model"
)

const ruleColumns = `
	id, user_id, pattern, pattern_type, match_field, category_slug,
	subcategory_slug, provenance, priority, confidence, is_active,
	match_count, last_matched_at, created_at
`

// GetActiveRules returns a user's active rules, highest priority first.
func (s *store) GetActiveRules(ctx context.Context, userID string) ([]model.UserRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM user_rules
		WHERE user_id = ? AND is_active = 1
		ORDER BY priority DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.UserRule
	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return out, nil
}

// FindOrCreateRule inserts the rule unless a (user, pattern, category) row
// already exists. The returned bool reports whether a row was created; on an
// existing row the rule's ID is filled in from it.
func (s *store) FindOrCreateRule(ctx context.Context, rule *model.UserRule) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateRule(rule); err != nil {
		return false, err
	}

	rule.Pattern = model.NormalizePattern(rule.Pattern)

	result, err := s.exec.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_rules (
			user_id, pattern, pattern_type, match_field, category_slug,
			subcategory_slug, provenance, priority, confidence, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rule.UserID,
		rule.Pattern,
		string(rule.PatternType),
		string(rule.MatchField),
		rule.CategorySlug,
		rule.SubcategorySlug,
		string(rule.Provenance),
		rule.Priority,
		rule.Confidence,
		rule.IsActive,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}

	if affected > 0 {
		id, idErr := result.LastInsertId()
		if idErr != nil {
			return false, fmt.Errorf("failed to get rule id: %w", idErr)
		}
		rule.ID = id
		return true, nil
	}

	// Row already existed; surface its ID so callers can reference it.
	row := s.exec.QueryRowContext(ctx, `
		SELECT id FROM user_rules
		WHERE user_id = ? AND pattern = ? AND category_slug = ?
	`, rule.UserID, rule.Pattern, rule.CategorySlug)
	if err := row.Scan(&rule.ID); err != nil {
		return false, fmt.Errorf("failed to look up existing rule: %w", err)
	}
	return false, nil
}

// CountAutoRules counts the auto-learned rules a user has for one category.
func (s *store) CountAutoRules(ctx context.Context, userID, categorySlug string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	if err := validateString(categorySlug, "categorySlug"); err != nil {
		return 0, err
	}

	var count int
	err := s.exec.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_rules
		WHERE user_id = ? AND category_slug = ? AND provenance = ?
	`, userID, categorySlug, string(model.ProvenanceLLMAuto)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count auto rules: %w", err)
	}
	return count, nil
}

// RecordRuleMatch bumps a rule's usage counters.
func (s *store) RecordRuleMatch(ctx context.Context, ruleID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.exec.ExecContext(ctx, `
		UPDATE user_rules
		SET match_count = match_count + 1, last_matched_at = ?
		WHERE id = ?
	`, time.Now().UTC(), ruleID)
	if err != nil {
		return fmt.Errorf("failed to record rule match: %w", err)
	}
	return nil
}

func scanRule(rows *sql.Rows) (*model.UserRule, error) {
	var rule model.UserRule
	var patternType, matchField, provenance string
	var lastMatched sql.NullTime

	err := rows.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.Pattern,
		&patternType,
		&matchField,
		&rule.CategorySlug,
		&rule.SubcategorySlug,
		&provenance,
		&rule.Priority,
		&rule.Confidence,
		&rule.IsActive,
		&rule.MatchCount,
		&lastMatched,
		&rule.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule.PatternType = model.RulePatternType(patternType)
	rule.MatchField = model.RuleMatchField(matchField)
	rule.Provenance = model.RuleProvenance(provenance)
	if lastMatched.Valid {
		rule.LastMatchedAt = &lastMatched.Time
	}
	return &rule, nil
}
