package model

// Categorization methods, recorded on accepted results for audit.
const (
	MethodTransfer          = "transfer"
	MethodUserRule          = "rule_user"
	MethodSystemRule        = "rule"
	MethodGlobalPattern     = "global_pattern"
	MethodEmbedding         = "embedding"
	MethodEmbeddingFeedback = "embedding_feedback"
	MethodLLM               = "llm"
)

// Result is a single tier's categorization candidate. A nil *Result means
// the tier produced no candidate, which is a normal outcome and never an
// error.
type Result struct {
	CategorySlug    string
	SubcategorySlug string
	Method          string
	Explanation     string
	Kind            TransactionKind
	Confidence      float64
}

// ClampConfidence bounds a confidence value to [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
