package rules

import (
	"context"
	"regexp"

	"github.com/arthaledger/artha/internal/taxonomy"
)

// resolveSubcategory picks a subcategory within the chosen category by
// matching subcategory keyword lists against the normalized description,
// falling back to the category's default subcategory. Returns an empty slug
// when the category has neither a keyword match nor a default.
func resolveSubcategory(ctx context.Context, categories *taxonomy.CategoryCache, subcategories *taxonomy.SubcategoryCache, categorySlug, normalized string) string {
	if categories == nil || subcategories == nil {
		return ""
	}

	cat, err := categories.FindBySlug(ctx, categorySlug)
	if err != nil {
		return ""
	}

	subs, err := subcategories.ForCategory(ctx, cat.ID)
	if err != nil {
		return ""
	}
	for _, sub := range subs {
		if !sub.IsActive {
			continue
		}
		for _, kw := range sub.Keywords {
			if wordBoundaryMatch(normalized, kw) {
				return sub.Slug
			}
		}
	}

	def, err := subcategories.DefaultFor(ctx, cat.ID)
	if err != nil || def == nil {
		return ""
	}
	return def.Slug
}

func wordBoundaryMatch(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
