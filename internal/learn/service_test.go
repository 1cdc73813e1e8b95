package learn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/service"
	"github.com/arthaledger/artha/internal/taxonomy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLearningStore struct {
	updated       []*model.Transaction
	rules         []*model.UserRule
	examples      []*model.LabeledExample
	disagreements []string
	verified      []int64

	contribution  *model.GlobalPattern
	autoRuleCount int
	exampleExists bool
	updateErr     error
}

func (m *mockLearningStore) GetTransaction(context.Context, string) (*model.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (m *mockLearningStore) GetTransactionsByUser(context.Context, string, int) ([]model.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (m *mockLearningStore) GetTransactionsWithoutEmbedding(context.Context, int) ([]model.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (m *mockLearningStore) UpdateCategorization(_ context.Context, txn *model.Transaction) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, txn)
	return nil
}

func (m *mockLearningStore) UpdateStatus(context.Context, string, model.CategorizationStatus) error {
	return nil
}

func (m *mockLearningStore) GetActiveRules(context.Context, string) ([]model.UserRule, error) {
	return nil, nil
}

func (m *mockLearningStore) FindOrCreateRule(_ context.Context, rule *model.UserRule) (bool, error) {
	m.rules = append(m.rules, rule)
	return true, nil
}

func (m *mockLearningStore) CountAutoRules(context.Context, string, string) (int, error) {
	return m.autoRuleCount, nil
}

func (m *mockLearningStore) RecordRuleMatch(context.Context, int64) error { return nil }

func (m *mockLearningStore) FindOrCreateExample(_ context.Context, example *model.LabeledExample) (bool, error) {
	example.ID = 42
	m.examples = append(m.examples, example)
	return !m.exampleExists, nil
}

func (m *mockLearningStore) GetVerifiedPatterns(context.Context) ([]model.GlobalPattern, error) {
	return nil, nil
}

func (m *mockLearningStore) RecordContribution(_ context.Context, pattern, categorySlug, _ string) (*model.GlobalPattern, error) {
	if m.contribution != nil {
		return m.contribution, nil
	}
	return &model.GlobalPattern{ID: 1, Pattern: pattern, CategorySlug: categorySlug, OccurrenceCount: 1, AgreementCount: 1, UserCount: 1}, nil
}

func (m *mockLearningStore) RecordDisagreements(_ context.Context, pattern, _, _ string) error {
	m.disagreements = append(m.disagreements, pattern)
	return nil
}

func (m *mockLearningStore) MarkVerified(_ context.Context, patternID int64) error {
	m.verified = append(m.verified, patternID)
	return nil
}

func (m *mockLearningStore) Atomically(ctx context.Context, fn func(service.LearningStore) error) error {
	return fn(m)
}

type mockQueue struct {
	exampleBatches [][]int64
	txnBatches     [][]string
}

func (m *mockQueue) EnqueueTransactionEmbedding(_ context.Context, ids []string) error {
	m.txnBatches = append(m.txnBatches, ids)
	return nil
}

func (m *mockQueue) EnqueueExampleEmbedding(_ context.Context, ids []int64) error {
	m.exampleBatches = append(m.exampleBatches, ids)
	return nil
}

func llmResult() *model.Result {
	return &model.Result{
		CategorySlug: "food",
		Kind:         model.KindSpend,
		Confidence:   0.88,
		Method:       model.MethodLLM,
	}
}

func learnableTxn() *model.Transaction {
	return &model.Transaction{
		ID:                    "t1",
		UserID:                "user-1",
		Description:           "Zomato Order Dinner",
		NormalizedDescription: "zomato order dinner",
		Direction:             model.DirectionDebit,
	}
}

func TestDeriveKeywordPattern(t *testing.T) {
	tests := []struct {
		name       string
		normalized string
		want       string
	}{
		{"truncates to three tokens", "zomato order dinner office", "zomato order dinner"},
		{"keeps shorter input", "airtel recharge", "airtel recharge"},
		{"too short", "up", ""},
		{"empty", "", ""},
		{"numeric tokens dropped", "zomato 12345 order", "zomato order"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveKeywordPattern(tt.normalized))
		})
	}
}

func TestLearnFromLLMRecordsAllArtifacts(t *testing.T) {
	store := &mockLearningStore{}
	queue := &mockQueue{}
	svc := NewService(store, queue, nil, nil)
	txn := learnableTxn()

	err := svc.LearnFromLLM(context.Background(), txn, llmResult())
	require.NoError(t, err)

	require.Len(t, store.updated, 1)
	assert.Equal(t, "food", txn.CategorySlug)
	assert.Equal(t, model.StatusCompleted, txn.Status)
	assert.False(t, txn.NeedsReview)

	require.Len(t, store.rules, 1)
	rule := store.rules[0]
	assert.Equal(t, "zomato order dinner", rule.Pattern)
	assert.Equal(t, model.PatternKeyword, rule.PatternType)
	assert.Equal(t, model.FieldNormalized, rule.MatchField)
	assert.Equal(t, model.ProvenanceLLMAuto, rule.Provenance)
	assert.InDelta(t, autoRuleConfidence, rule.Confidence, 1e-9)

	require.Len(t, store.examples, 1)
	assert.Equal(t, model.ProvenanceLLMAuto, store.examples[0].Source)

	assert.Equal(t, []string{"zomato order dinner"}, store.disagreements)

	require.Len(t, queue.exampleBatches, 1)
	assert.Equal(t, []int64{42}, queue.exampleBatches[0])
}

func TestLearnFromLLMRespectsAutoRuleCap(t *testing.T) {
	store := &mockLearningStore{autoRuleCount: maxAutoRulesPerCategory}
	svc := NewService(store, &mockQueue{}, nil, nil)

	err := svc.LearnFromLLM(context.Background(), learnableTxn(), llmResult())
	require.NoError(t, err)

	assert.Empty(t, store.rules, "cap reached, no new auto rule")
	assert.Len(t, store.examples, 1, "examples are not capped")
}

func TestLearnFromLLMVerifiesPattern(t *testing.T) {
	store := &mockLearningStore{
		contribution: &model.GlobalPattern{
			ID:              9,
			UserCount:       2,
			OccurrenceCount: 10,
			AgreementCount:  9,
		},
	}
	svc := NewService(store, &mockQueue{}, nil, nil)

	err := svc.LearnFromLLM(context.Background(), learnableTxn(), llmResult())
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, store.verified)
}

func TestLearnFromLLMVerificationThresholds(t *testing.T) {
	tests := []struct {
		name    string
		pattern *model.GlobalPattern
	}{
		{"single user", &model.GlobalPattern{ID: 9, UserCount: 1, OccurrenceCount: 10, AgreementCount: 10}},
		{"low agreement", &model.GlobalPattern{ID: 9, UserCount: 3, OccurrenceCount: 10, AgreementCount: 7}},
		{"already verified", &model.GlobalPattern{ID: 9, UserCount: 5, OccurrenceCount: 10, AgreementCount: 10, IsVerified: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockLearningStore{contribution: tt.pattern}
			svc := NewService(store, &mockQueue{}, nil, nil)

			err := svc.LearnFromLLM(context.Background(), learnableTxn(), llmResult())
			require.NoError(t, err)
			assert.Empty(t, store.verified)
		})
	}
}

func TestLearnFromLLMPropagatesStoreFailure(t *testing.T) {
	store := &mockLearningStore{updateErr: errors.New("disk full")}
	queue := &mockQueue{}
	svc := NewService(store, queue, nil, nil)

	err := svc.LearnFromLLM(context.Background(), learnableTxn(), llmResult())
	require.Error(t, err)
	assert.Empty(t, queue.exampleBatches, "nothing queued when the unit of work fails")
}

func TestApplyFeedback(t *testing.T) {
	store := &mockLearningStore{}
	queue := &mockQueue{}
	svc := NewService(store, queue, nil, nil)
	txn := learnableTxn()

	err := svc.ApplyFeedback(context.Background(), txn, "groceries", "supermarket")
	require.NoError(t, err)

	assert.Equal(t, "groceries", txn.CategorySlug)
	assert.Equal(t, "supermarket", txn.SubcategorySlug)
	assert.Equal(t, model.KindSpend, txn.Kind)
	assert.Equal(t, model.StatusCompleted, txn.Status)

	require.Len(t, store.rules, 1)
	assert.Equal(t, model.ProvenanceFeedback, store.rules[0].Provenance)

	assert.Empty(t, store.disagreements, "feedback does not touch global patterns")
	require.Len(t, queue.exampleBatches, 1)
}

func TestApplyFeedbackExistingExampleNotRequeued(t *testing.T) {
	store := &mockLearningStore{exampleExists: true}
	queue := &mockQueue{}
	svc := NewService(store, queue, nil, nil)

	err := svc.ApplyFeedback(context.Background(), learnableTxn(), "groceries", "")
	require.NoError(t, err)
	assert.Empty(t, queue.exampleBatches)
}

type feedbackTaxonomyStore struct{}

func (feedbackTaxonomyStore) GetCategories(_ context.Context) ([]model.Category, error) {
	return []model.Category{
		{ID: 1, Slug: "groceries", Name: "Groceries", IsActive: true},
		{ID: 2, Slug: "entertainment", Name: "Entertainment", IsActive: true},
	}, nil
}

func (feedbackTaxonomyStore) GetSubcategories(_ context.Context) ([]model.Subcategory, error) {
	return []model.Subcategory{
		{ID: 10, CategoryID: 1, Slug: "supermarket", IsActive: true},
		{ID: 20, CategoryID: 2, Slug: "streaming", IsActive: true},
	}, nil
}

func validatingService(store *mockLearningStore, queue *mockQueue) *Service {
	categories := taxonomy.NewCategoryCache(feedbackTaxonomyStore{}, time.Hour)
	subcategories := taxonomy.NewSubcategoryCache(feedbackTaxonomyStore{}, time.Hour)
	return NewService(store, queue, categories, subcategories)
}

func TestApplyFeedbackRejectsUnknownCategory(t *testing.T) {
	store := &mockLearningStore{}
	svc := validatingService(store, &mockQueue{})

	err := svc.ApplyFeedback(context.Background(), learnableTxn(), "crypto", "")
	require.Error(t, err)
	assert.Empty(t, store.updated, "rejected feedback must leave the transaction untouched")
}

func TestApplyFeedbackRejectsForeignSubcategory(t *testing.T) {
	// streaming belongs to entertainment, not groceries.
	store := &mockLearningStore{}
	svc := validatingService(store, &mockQueue{})
	txn := learnableTxn()

	err := svc.ApplyFeedback(context.Background(), txn, "groceries", "streaming")
	require.Error(t, err)
	assert.Empty(t, store.updated)
	assert.Empty(t, txn.CategorySlug)
}

func TestApplyFeedbackAcceptsMatchingSubcategory(t *testing.T) {
	store := &mockLearningStore{}
	svc := validatingService(store, &mockQueue{})
	txn := learnableTxn()

	err := svc.ApplyFeedback(context.Background(), txn, "Groceries", "Supermarket")
	require.NoError(t, err)
	assert.Equal(t, "groceries", txn.CategorySlug, "slugs are lowercased before persisting")
	assert.Equal(t, "supermarket", txn.SubcategorySlug)
}

func TestLearnFromLLMDerivesNormalizedDescription(t *testing.T) {
	store := &mockLearningStore{}
	svc := NewService(store, &mockQueue{}, nil, nil)
	txn := &model.Transaction{
		ID:          "t1",
		UserID:      "user-1",
		Description: "Swiggy Instamart Order",
		Direction:   model.DirectionDebit,
	}

	err := svc.LearnFromLLM(context.Background(), txn, llmResult())
	require.NoError(t, err)
	assert.NotEmpty(t, txn.NormalizedDescription)
}
