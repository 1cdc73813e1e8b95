package model

import "time"

// Category is a taxonomy node identified by a unique slug.
type Category struct {
	CreatedAt   time.Time
	Slug        string
	Name        string
	ParentSlug  string
	Description string
	ID          int64
	IsActive    bool
}

// Subcategory belongs to exactly one category and carries the keyword list
// used to refine a category-level match. At most one subcategory per
// category is flagged as the default fallback.
type Subcategory struct {
	CreatedAt  time.Time
	Slug       string
	Name       string
	Keywords   []string
	ID         int64
	CategoryID int64
	IsDefault  bool
	IsActive   bool
}
