package model

import (
	"strings"
	"time"
)

// RulePatternType selects how a UserRule pattern is evaluated.
type RulePatternType string

// Rule pattern type constants.
const (
	PatternExact   RulePatternType = "exact"
	PatternKeyword RulePatternType = "keyword"
	PatternRegex   RulePatternType = "regex"
)

// RuleMatchField selects which transaction field a rule is tested against.
type RuleMatchField string

// Rule match field constants.
const (
	FieldDescription RuleMatchField = "description"
	FieldNormalized  RuleMatchField = "normalized"
)

// RuleProvenance records how a rule came into existence.
type RuleProvenance string

// Rule provenance constants.
const (
	ProvenanceUser     RuleProvenance = "user_created"
	ProvenanceFeedback RuleProvenance = "feedback"
	ProvenanceLLMAuto  RuleProvenance = "llm_auto"
)

// UserRule is a per-user fast-path matcher consulted before the generic
// system keyword table. The pattern is immutable once matched against; only
// the usage counters are updated afterwards.
type UserRule struct {
	CreatedAt       time.Time
	LastMatchedAt   *time.Time
	Pattern         string
	CategorySlug    string
	SubcategorySlug string
	PatternType     RulePatternType
	MatchField      RuleMatchField
	Provenance      RuleProvenance
	UserID          string
	ID              int64
	Priority        int
	MatchCount      int
	Confidence      float64
	IsActive        bool
}

// NormalizePattern trims and lower-cases a rule pattern. Every pattern is
// passed through this before storage or comparison.
func NormalizePattern(pattern string) string {
	return strings.ToLower(strings.TrimSpace(pattern))
}
