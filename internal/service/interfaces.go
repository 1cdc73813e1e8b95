// Package service defines the interfaces for all external collaborators of
// the categorization core: stores, the vector index, the embedding job queue
// and the text-generation client. The core depends only on these contracts.
package service

import (
	"context"

	"github.com/arthaledger/artha/internal/model"
)

// TransactionStore persists transactions and their categorization fields.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionsByUser(ctx context.Context, userID string, limit int) ([]model.Transaction, error)
	GetTransactionsWithoutEmbedding(ctx context.Context, limit int) ([]model.Transaction, error)
	// UpdateCategorization atomically writes the categorization fields
	// (status, category/subcategory slots, kind, confidence, method,
	// explanation, normalized description) of a single row.
	UpdateCategorization(ctx context.Context, txn *model.Transaction) error
	UpdateStatus(ctx context.Context, id string, status model.CategorizationStatus) error
}

// TaxonomyStore provides read access to categories and subcategories. It is
// consumed exclusively through the taxonomy caches.
type TaxonomyStore interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetSubcategories(ctx context.Context) ([]model.Subcategory, error)
}

// RuleStore persists per-user rules with find-or-create semantics.
type RuleStore interface {
	GetActiveRules(ctx context.Context, userID string) ([]model.UserRule, error)
	// FindOrCreateRule returns the existing rule for (user, pattern,
	// category) or creates it. The bool reports whether a row was created.
	FindOrCreateRule(ctx context.Context, rule *model.UserRule) (bool, error)
	CountAutoRules(ctx context.Context, userID, categorySlug string) (int, error)
	RecordRuleMatch(ctx context.Context, ruleID int64) error
}

// ExampleStore persists labeled examples, unique per (user, description).
type ExampleStore interface {
	FindOrCreateExample(ctx context.Context, example *model.LabeledExample) (bool, error)
}

// PatternStore persists cross-user global patterns. Contribution recording
// must be safe under concurrent callers: a uniqueness race is resolved by
// re-reading and updating the existing row.
type PatternStore interface {
	GetVerifiedPatterns(ctx context.Context) ([]model.GlobalPattern, error)
	// RecordContribution upserts the (pattern, category) row: occurrence
	// count always increments, agreement count increments for every
	// agreeing contribution, and user count increments only on this user's
	// first contribution to the row. Returns the updated pattern.
	RecordContribution(ctx context.Context, pattern, categorySlug, userID string) (*model.GlobalPattern, error)
	// RecordDisagreements bumps the occurrence count (and first-time user
	// count) of every row sharing the pattern text under a different
	// category, without incrementing agreement, keeping agreement rates an
	// honest signal.
	RecordDisagreements(ctx context.Context, pattern, categorySlug, userID string) error
	MarkVerified(ctx context.Context, patternID int64) error
}

// Neighbor is one k-nearest-neighbor hit from the vector index.
type Neighbor struct {
	ID              string
	CategorySlug    string
	SubcategorySlug string
	Similarity      float64
}

// StoredVector is one embedded row loaded for in-memory search.
type StoredVector struct {
	ID              string
	CategorySlug    string
	SubcategorySlug string
	Vector          []float32
}

// VectorIndex is the narrow nearest-neighbor contract over stored
// embeddings. Implementations must exclude excludeID from transaction
// searches and return neighbors ordered by descending similarity. The bulk
// loaders return every eligible vector for one user so batch callers can
// search many transactions against a single fetch.
type VectorIndex interface {
	NearestExamples(ctx context.Context, userID string, vector []float32, k int, minSimilarity float64) ([]Neighbor, error)
	NearestTransactions(ctx context.Context, userID string, vector []float32, k int, minSimilarity float64, excludeID string) ([]Neighbor, error)
	ExampleVectors(ctx context.Context, userID string) ([]StoredVector, error)
	TransactionVectors(ctx context.Context, userID string) ([]StoredVector, error)
}

// EmbeddingQueue enqueues asynchronous embedding-generation jobs. The core
// only ever enqueues; generation happens in an external worker.
type EmbeddingQueue interface {
	EnqueueTransactionEmbedding(ctx context.Context, transactionIDs []string) error
	EnqueueExampleEmbedding(ctx context.Context, exampleIDs []int64) error
}

// LearningStore is the unit-of-work surface for auto-learn and feedback.
// Atomically runs fn inside one storage transaction; all writes made through
// the store passed to fn commit or roll back together.
type LearningStore interface {
	TransactionStore
	RuleStore
	ExampleStore
	PatternStore

	Atomically(ctx context.Context, fn func(LearningStore) error) error
}
