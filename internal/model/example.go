package model

import "time"

// LabeledExample is a per-user (normalized description -> category) pair
// created from confirmed feedback or high-confidence auto-learning. It is
// the highest-trust similarity anchor, unique per (user, description).
type LabeledExample struct {
	CreatedAt             time.Time
	EmbeddedAt            *time.Time
	UserID                string
	NormalizedDescription string
	CategorySlug          string
	SubcategorySlug       string
	Source                RuleProvenance
	Embedding             []float32
	ID                    int64
}
