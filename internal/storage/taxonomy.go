package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arthaledger/artha/internal/model"
)

// GetCategories returns all active categories ordered by name.
func (s *store) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, `
		SELECT id, slug, name, parent_slug, description, is_active, created_at
		FROM categories
		WHERE is_active = 1
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Slug, &cat.Name, &cat.ParentSlug,
			&cat.Description, &cat.IsActive, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return out, nil
}

// GetSubcategories returns all active subcategories ordered by category.
func (s *store) GetSubcategories(ctx context.Context) ([]model.Subcategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, `
		SELECT id, category_id, slug, name, keywords, is_default, is_active, created_at
		FROM subcategories
		WHERE is_active = 1
		ORDER BY category_id, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subcategories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Subcategory
	for rows.Next() {
		var sub model.Subcategory
		var keywords string
		if err := rows.Scan(&sub.ID, &sub.CategoryID, &sub.Slug, &sub.Name,
			&keywords, &sub.IsDefault, &sub.IsActive, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subcategory: %w", err)
		}
		if keywords != "" {
			if err := json.Unmarshal([]byte(keywords), &sub.Keywords); err != nil {
				return nil, fmt.Errorf("failed to decode keywords for %s: %w", sub.Slug, err)
			}
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subcategories: %w", err)
	}
	return out, nil
}

func marshalKeywords(keywords []string) (string, error) {
	if len(keywords) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("failed to encode keywords: %w", err)
	}
	return string(data), nil
}
