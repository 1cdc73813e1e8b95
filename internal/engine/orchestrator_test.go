package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/arthaledger/artha/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTxnStore struct {
	statusCalls int
	updates     []*model.Transaction
	updateErr   error
}

func (s *stubTxnStore) GetTransaction(context.Context, string) (*model.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTxnStore) GetTransactionsByUser(context.Context, string, int) ([]model.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTxnStore) GetTransactionsWithoutEmbedding(context.Context, int) ([]model.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTxnStore) UpdateCategorization(_ context.Context, txn *model.Transaction) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, txn)
	return nil
}

func (s *stubTxnStore) UpdateStatus(context.Context, string, model.CategorizationStatus) error {
	s.statusCalls++
	return nil
}

// stubTier serves both the single and batch shapes of the rule and embedding
// tiers, recording which transactions it was asked about.
type stubTier struct {
	results     map[string]*model.Result
	singleCalls []string
	batchCalls  [][]string
}

func (s *stubTier) Categorize(_ context.Context, txn *model.Transaction) *model.Result {
	s.singleCalls = append(s.singleCalls, txn.ID)
	return s.results[txn.ID]
}

func (s *stubTier) CategorizeBatch(_ context.Context, txns []*model.Transaction) map[string]*model.Result {
	ids := make([]string, 0, len(txns))
	out := make(map[string]*model.Result)
	for _, txn := range txns {
		ids = append(ids, txn.ID)
		if res := s.results[txn.ID]; res != nil {
			out[txn.ID] = res
		}
	}
	s.batchCalls = append(s.batchCalls, ids)
	return out
}

type stubLLM struct {
	stubTier
	enabled bool
}

func (s *stubLLM) Enabled() bool { return s.enabled }

type stubLearner struct {
	learned []string
}

func (s *stubLearner) LearnFromLLM(_ context.Context, txn *model.Transaction, _ *model.Result) error {
	s.learned = append(s.learned, txn.ID)
	return nil
}

type stubQueue struct {
	batches [][]string
}

func (s *stubQueue) EnqueueTransactionEmbedding(_ context.Context, ids []string) error {
	s.batches = append(s.batches, ids)
	return nil
}

func (s *stubQueue) EnqueueExampleEmbedding(context.Context, []int64) error { return nil }

type fixture struct {
	orch       *Orchestrator
	store      *stubTxnStore
	rules      *stubTier
	similarity *stubTier
	llm        *stubLLM
	learner    *stubLearner
	queue      *stubQueue
}

func newFixture() *fixture {
	f := &fixture{
		store:      &stubTxnStore{},
		rules:      &stubTier{results: map[string]*model.Result{}},
		similarity: &stubTier{results: map[string]*model.Result{}},
		llm:        &stubLLM{stubTier: stubTier{results: map[string]*model.Result{}}, enabled: true},
		learner:    &stubLearner{},
		queue:      &stubQueue{},
	}
	f.orch = &Orchestrator{
		transactions:    f.store,
		rules:           f.rules,
		batchRules:      f.rules,
		similarity:      f.similarity,
		batchSimilarity: f.similarity,
		llm:             f.llm,
		learner:         f.learner,
		queue:           f.queue,
	}
	return f
}

func pendingTxn(id string) *model.Transaction {
	return &model.Transaction{
		ID:          id,
		UserID:      "user-1",
		Description: "Zomato Order",
		Direction:   model.DirectionDebit,
		Status:      model.StatusPending,
	}
}

func ruleHit(conf float64) *model.Result {
	return &model.Result{
		CategorySlug: "food",
		Kind:         model.KindSpend,
		Confidence:   conf,
		Method:       model.MethodSystemRule,
	}
}

func TestCategorizeRuleHitSkipsLaterTiers(t *testing.T) {
	f := newFixture()
	txn := pendingTxn("t1")
	f.rules.results["t1"] = ruleHit(0.90)

	require.NoError(t, f.orch.Categorize(context.Background(), txn))

	assert.Empty(t, f.similarity.singleCalls)
	assert.Empty(t, f.llm.singleCalls)
	assert.Equal(t, model.StatusCompleted, txn.Status)
	assert.Equal(t, "food", txn.AICategorySlug)
	assert.Equal(t, model.MethodSystemRule, txn.Method)
	assert.NotEmpty(t, txn.NormalizedDescription)

	// No stored vector and the embedding tier never ran, so generation is
	// queued for next time.
	require.Len(t, f.queue.batches, 1)
	assert.Equal(t, []string{"t1"}, f.queue.batches[0])
}

func TestCategorizeFallsThroughToEmbedding(t *testing.T) {
	f := newFixture()
	txn := pendingTxn("t1")
	txn.Embedding = []float32{0.1, 0.2}
	f.rules.results["t1"] = ruleHit(0.50)
	f.similarity.results["t1"] = &model.Result{
		CategorySlug: "food",
		Confidence:   0.80,
		Method:       model.MethodEmbedding,
	}

	require.NoError(t, f.orch.Categorize(context.Background(), txn))

	assert.Equal(t, []string{"t1"}, f.similarity.singleCalls)
	assert.Empty(t, f.llm.singleCalls, "embedding hit above threshold stops the waterfall")
	assert.Equal(t, model.MethodEmbedding, txn.Method)
	assert.Empty(t, f.queue.batches, "embedding tier ran, nothing to queue")
}

func TestCategorizeLLMFallback(t *testing.T) {
	f := newFixture()
	txn := pendingTxn("t1")
	f.llm.results["t1"] = &model.Result{
		CategorySlug: "food",
		Kind:         model.KindSpend,
		Confidence:   0.75,
		Method:       model.MethodLLM,
	}

	require.NoError(t, f.orch.Categorize(context.Background(), txn))

	assert.Equal(t, model.MethodLLM, txn.Method)
	assert.Empty(t, f.learner.learned, "confidence below the auto-learn threshold")
	require.Len(t, f.queue.batches, 1)
}

func TestCategorizeAutoLearnsHighConfidenceLLM(t *testing.T) {
	f := newFixture()
	txn := pendingTxn("t1")
	f.llm.results["t1"] = &model.Result{
		CategorySlug: "food",
		Kind:         model.KindSpend,
		Confidence:   0.88,
		Method:       model.MethodLLM,
	}

	require.NoError(t, f.orch.Categorize(context.Background(), txn))
	assert.Equal(t, []string{"t1"}, f.learner.learned)
}

func TestCategorizeNeverAutoLearnsRuleHits(t *testing.T) {
	f := newFixture()
	txn := pendingTxn("t1")
	f.rules.results["t1"] = ruleHit(0.95)

	require.NoError(t, f.orch.Categorize(context.Background(), txn))
	assert.Empty(t, f.learner.learned)
}

func TestTiePrefersEarlierTier(t *testing.T) {
	f := newFixture()
	txn := pendingTxn("t1")
	txn.Embedding = []float32{0.1}
	f.rules.results["t1"] = ruleHit(0.65)
	f.similarity.results["t1"] = &model.Result{
		CategorySlug: "shopping",
		Confidence:   0.65,
		Method:       model.MethodEmbedding,
	}

	require.NoError(t, f.orch.Categorize(context.Background(), txn))
	assert.Equal(t, model.MethodSystemRule, txn.Method)
	assert.Equal(t, "food", txn.AICategorySlug)
}

func TestCategorizeTwiceYieldsSameOutcome(t *testing.T) {
	// Re-running a completed transaction must land on the same category and
	// confidence: the waterfall is deterministic for a fixed tier outcome.
	f := newFixture()
	txn := pendingTxn("t1")
	f.rules.results["t1"] = ruleHit(0.90)

	require.NoError(t, f.orch.Categorize(context.Background(), txn))
	firstCategory := txn.AICategorySlug
	firstConfidence := txn.Confidence
	firstMethod := txn.Method

	require.NoError(t, f.orch.Categorize(context.Background(), txn))

	assert.Equal(t, firstCategory, txn.AICategorySlug)
	assert.Equal(t, firstConfidence, txn.Confidence)
	assert.Equal(t, firstMethod, txn.Method)
	assert.Equal(t, model.StatusCompleted, txn.Status)
	assert.False(t, txn.NeedsReview)
}

func TestCategorizeNoCandidateMarksNeedsReview(t *testing.T) {
	f := newFixture()
	txn := pendingTxn("t1")

	require.NoError(t, f.orch.Categorize(context.Background(), txn))

	assert.Equal(t, model.StatusCompleted, txn.Status)
	assert.True(t, txn.NeedsReview)
	assert.Empty(t, txn.AICategorySlug)
	assert.Empty(t, txn.Method)
	assert.Zero(t, txn.Confidence)
}

func TestCategorizePersistFailureLeavesProcessing(t *testing.T) {
	f := newFixture()
	f.store.updateErr = errors.New("disk full")
	txn := pendingTxn("t1")
	f.llm.results["t1"] = &model.Result{
		CategorySlug: "food",
		Confidence:   0.88,
		Method:       model.MethodLLM,
	}

	err := f.orch.Categorize(context.Background(), txn)
	require.Error(t, err)
	assert.Equal(t, model.StatusProcessing, txn.Status)
	assert.Empty(t, f.learner.learned)
	assert.Empty(t, f.queue.batches)
}

func TestCategorizeDerivesKindWhenTierLeavesItEmpty(t *testing.T) {
	f := newFixture()
	txn := pendingTxn("t1")
	txn.Direction = model.DirectionCredit
	txn.Embedding = []float32{0.1}
	f.similarity.results["t1"] = &model.Result{
		CategorySlug: "salary",
		Confidence:   0.85,
		Method:       model.MethodEmbeddingFeedback,
	}

	require.NoError(t, f.orch.Categorize(context.Background(), txn))
	assert.Equal(t, model.KindIncomeSalary, txn.Kind)
}

func TestSmallBatchRunsAsSingles(t *testing.T) {
	f := newFixture()
	txns := []*model.Transaction{pendingTxn("t1"), pendingTxn("t2")}
	f.rules.results["t1"] = ruleHit(0.90)
	f.rules.results["t2"] = ruleHit(0.90)

	require.NoError(t, f.orch.CategorizeBatch(context.Background(), txns))

	assert.Len(t, f.rules.singleCalls, 2)
	assert.Empty(t, f.rules.batchCalls)
}

func TestLargeBatchTriage(t *testing.T) {
	f := newFixture()

	txns := make([]*model.Transaction, BatchCutover)
	for i := range txns {
		txns[i] = pendingTxn(fmt.Sprintf("t%02d", i))
	}
	// t03 already has a stored vector.
	txns[3].Embedding = []float32{0.1, 0.2}

	f.rules.results["t00"] = ruleHit(0.90)
	f.similarity.results["t01"] = &model.Result{
		CategorySlug: "transport",
		Confidence:   0.80,
		Method:       model.MethodEmbedding,
	}
	f.llm.results["t02"] = &model.Result{
		CategorySlug: "shopping",
		Kind:         model.KindSpend,
		Confidence:   0.88,
		Method:       model.MethodLLM,
	}

	require.NoError(t, f.orch.CategorizeBatch(context.Background(), txns))

	require.Len(t, f.rules.batchCalls, 1)
	assert.Len(t, f.rules.batchCalls[0], BatchCutover)

	// The rule hit on t00 is excluded from the similarity pass.
	require.Len(t, f.similarity.batchCalls, 1)
	assert.Len(t, f.similarity.batchCalls[0], BatchCutover-1)
	assert.NotContains(t, f.similarity.batchCalls[0], "t00")

	// t00 and t01 are resolved before the LLM pass.
	require.Len(t, f.llm.batchCalls, 1)
	assert.Len(t, f.llm.batchCalls[0], BatchCutover-2)
	assert.NotContains(t, f.llm.batchCalls[0], "t01")

	assert.Equal(t, []string{"t02"}, f.learner.learned)

	for _, txn := range txns {
		assert.Equal(t, model.StatusCompleted, txn.Status)
	}
	assert.True(t, txns[5].NeedsReview)
	assert.False(t, txns[0].NeedsReview)

	// One embedding job for everything without a vector that the embedding
	// tier did not already cover: all ids except t01 (tier hit) and t03
	// (stored vector).
	require.Len(t, f.queue.batches, 1)
	assert.Len(t, f.queue.batches[0], BatchCutover-2)
	assert.NotContains(t, f.queue.batches[0], "t01")
	assert.NotContains(t, f.queue.batches[0], "t03")
}

func TestLargeBatchSkipsDisabledLLM(t *testing.T) {
	f := newFixture()
	f.llm.enabled = false

	txns := make([]*model.Transaction, BatchCutover)
	for i := range txns {
		txns[i] = pendingTxn(fmt.Sprintf("t%02d", i))
	}

	require.NoError(t, f.orch.CategorizeBatch(context.Background(), txns))
	assert.Empty(t, f.llm.batchCalls)
}
