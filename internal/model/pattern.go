package model

import "time"

// GlobalPattern is a cross-user (pattern, category) association with running
// evidence counters. It becomes verified once enough independent users agree,
// after which it feeds back into categorization for every user. Verification
// is one-way: IsVerified never flips back to false.
type GlobalPattern struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Pattern         string
	CategorySlug    string
	ID              int64
	OccurrenceCount int
	UserCount       int
	AgreementCount  int
	IsVerified      bool
}

// AgreementRate returns the share of occurrences that agreed with this
// pattern's category. Zero occurrences yield a rate of zero.
func (p *GlobalPattern) AgreementRate() float64 {
	if p.OccurrenceCount == 0 {
		return 0
	}
	return float64(p.AgreementCount) / float64(p.OccurrenceCount)
}
