// Package engine implements the top-level categorization orchestrator: a
// per-transaction state machine that runs the rule, embedding and LLM tiers
// in confidence order, merges their candidates, triggers learning, and
// persists the outcome.
package engine

import (
	"context"
	"fmt"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/embedding"
	"github.com/arthaledger/artha/internal/learn"
	"github.com/arthaledger/artha/internal/llm"
	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/normalize"
	"github.com/arthaledger/artha/internal/rules"
	"github.com/arthaledger/artha/internal/service"
)

// Tier acceptance thresholds and the single/batch cutover.
const (
	RuleThreshold      = 0.70
	EmbeddingThreshold = 0.60
	BatchCutover       = 20
)

// ruleTier, embeddingTier and llmTier let tests substitute the tier
// implementations.
type ruleTier interface {
	Categorize(ctx context.Context, txn *model.Transaction) *model.Result
}

type batchRuleTier interface {
	CategorizeBatch(ctx context.Context, txns []*model.Transaction) map[string]*model.Result
}

type embeddingTier interface {
	Categorize(ctx context.Context, txn *model.Transaction) *model.Result
}

type batchEmbeddingTier interface {
	CategorizeBatch(ctx context.Context, txns []*model.Transaction) map[string]*model.Result
}

type llmTier interface {
	Categorize(ctx context.Context, txn *model.Transaction) *model.Result
	CategorizeBatch(ctx context.Context, txns []*model.Transaction) map[string]*model.Result
	Enabled() bool
}

type learner interface {
	LearnFromLLM(ctx context.Context, txn *model.Transaction, res *model.Result) error
}

// Orchestrator runs the triage waterfall. Within one call the tiers execute
// strictly in sequence; each is cheaper, or cheaper to skip, than the next.
type Orchestrator struct {
	transactions    service.TransactionStore
	rules           ruleTier
	batchRules      batchRuleTier
	similarity      embeddingTier
	batchSimilarity batchEmbeddingTier
	llm             llmTier
	learner         learner
	queue           service.EmbeddingQueue
}

// New creates an orchestrator from concrete tier implementations. similarity,
// llmCategorizer, learnSvc and queue may be nil; the corresponding steps are
// skipped.
func New(transactions service.TransactionStore, ruleEngine *rules.Engine, similarity *embedding.Similarity, llmCategorizer *llm.Categorizer, learnSvc *learn.Service, queue service.EmbeddingQueue) *Orchestrator {
	o := &Orchestrator{
		transactions: transactions,
		rules:        ruleEngine,
		batchRules:   rules.NewBatchEngine(ruleEngine),
		queue:        queue,
	}
	if similarity != nil {
		o.similarity = similarity
		o.batchSimilarity = embedding.NewBatchSimilarity(similarity)
	}
	if llmCategorizer != nil {
		o.llm = llmCategorizer
	}
	if learnSvc != nil {
		o.learner = learnSvc
	}
	return o
}

// Categorize triages one transaction: pending -> processing -> completed.
// Completed is reached whether or not a category was found; an uncategorized
// outcome is terminal, not an error. The call only fails when a store update
// fails, in which case the transaction is left in processing for a later
// retry pass.
func (o *Orchestrator) Categorize(ctx context.Context, txn *model.Transaction) error {
	if err := o.markProcessing(ctx, txn); err != nil {
		return err
	}

	if txn.NormalizedDescription == "" {
		txn.NormalizedDescription = normalize.Description(txn.Description)
	}

	best := o.rules.Categorize(ctx, txn)

	var embeddingCandidate *model.Result
	if !accepted(best, RuleThreshold) && o.similarity != nil {
		embeddingCandidate = o.similarity.Categorize(ctx, txn)
		best = higher(best, embeddingCandidate)
	}

	if !accepted(best, EmbeddingThreshold) && o.llm != nil {
		best = higher(best, o.llm.Categorize(ctx, txn))
	}

	if err := o.persist(ctx, txn, best); err != nil {
		return err
	}

	o.autoLearn(ctx, txn, best)
	if embeddingCandidate == nil && !txn.HasEmbedding() {
		o.queueEmbeddings(ctx, []string{txn.ID})
	}
	return nil
}

// CategorizeBatch triages many transactions. Small batches run as
// independent single-record calls; at BatchCutover and above, the batch rule
// engine and batch similarity search amortize setup across the batch, LLM
// calls cover only what remains, and embedding generation is queued as one
// job for the whole batch.
func (o *Orchestrator) CategorizeBatch(ctx context.Context, txns []*model.Transaction) error {
	if len(txns) < BatchCutover {
		var firstErr error
		for _, txn := range txns {
			if err := o.Categorize(ctx, txn); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, txn := range txns {
		if err := o.markProcessing(ctx, txn); err != nil {
			return err
		}
		if txn.NormalizedDescription == "" {
			txn.NormalizedDescription = normalize.Description(txn.Description)
		}
	}

	best := o.batchRules.CategorizeBatch(ctx, txns)

	embeddingHits := make(map[string]bool)
	if o.batchSimilarity != nil {
		remainder := unresolved(txns, best, RuleThreshold)
		for id, res := range o.batchSimilarity.CategorizeBatch(ctx, remainder) {
			embeddingHits[id] = true
			best[id] = higher(best[id], res)
		}
	}

	if o.llm != nil && o.llm.Enabled() {
		remainder := unresolved(txns, best, EmbeddingThreshold)
		for id, res := range o.llm.CategorizeBatch(ctx, remainder) {
			best[id] = higher(best[id], res)
		}
	}

	var firstErr error
	var needEmbedding []string
	for _, txn := range txns {
		res := best[txn.ID]
		if err := o.persist(ctx, txn, res); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		o.autoLearn(ctx, txn, res)
		if !embeddingHits[txn.ID] && !txn.HasEmbedding() {
			needEmbedding = append(needEmbedding, txn.ID)
		}
	}

	if len(needEmbedding) > 0 {
		o.queueEmbeddings(ctx, needEmbedding)
	}
	return firstErr
}

func (o *Orchestrator) markProcessing(ctx context.Context, txn *model.Transaction) error {
	txn.Status = model.StatusProcessing
	if err := o.transactions.UpdateStatus(ctx, txn.ID, model.StatusProcessing); err != nil {
		return fmt.Errorf("failed to mark transaction processing: %w", err)
	}
	return nil
}

// persist writes the accepted candidate, or a terminal uncategorized state,
// to the transaction row.
func (o *Orchestrator) persist(ctx context.Context, txn *model.Transaction, res *model.Result) error {
	txn.Status = model.StatusCompleted

	if res != nil {
		txn.AICategorySlug = res.CategorySlug
		txn.AISubcategorySlug = res.SubcategorySlug
		txn.Kind = res.Kind
		if txn.Kind == "" {
			txn.Kind = rules.DeriveKind(res.CategorySlug, txn.Direction)
		}
		txn.Confidence = model.ClampConfidence(res.Confidence)
		txn.Method = res.Method
		txn.Explanation = res.Explanation
	} else {
		txn.AICategorySlug = ""
		txn.AISubcategorySlug = ""
		txn.Confidence = 0
		txn.Method = ""
		txn.Explanation = ""
		txn.NeedsReview = true
	}

	if err := o.transactions.UpdateCategorization(ctx, txn); err != nil {
		// Leave the row in processing so a retry pass picks it up.
		txn.Status = model.StatusProcessing
		return fmt.Errorf("failed to persist categorization: %w", err)
	}
	return nil
}

func (o *Orchestrator) autoLearn(ctx context.Context, txn *model.Transaction, res *model.Result) {
	if o.learner == nil || res == nil ||
		res.Method != model.MethodLLM || res.Confidence < llm.AutoLearnThreshold {
		return
	}
	if err := o.learner.LearnFromLLM(ctx, txn, res); err != nil {
		common.LogError(err, "auto-learn failed", common.Fields{
			"transaction_id": txn.ID,
		})
	}
}

func (o *Orchestrator) queueEmbeddings(ctx context.Context, ids []string) {
	if o.queue == nil {
		return
	}
	if err := o.queue.EnqueueTransactionEmbedding(ctx, ids); err != nil {
		common.LogError(err, "failed to queue embedding generation", common.Fields{
			"count": len(ids),
		})
	}
}

// accepted reports whether a candidate clears the given threshold.
func accepted(res *model.Result, threshold float64) bool {
	return res != nil && res.Confidence >= threshold
}

// higher keeps the higher-confidence of two candidates, preferring the
// earlier tier on ties.
func higher(a, b *model.Result) *model.Result {
	if a == nil {
		return b
	}
	if b == nil || b.Confidence <= a.Confidence {
		return a
	}
	return b
}

// unresolved returns the transactions whose best candidate so far is below
// the threshold.
func unresolved(txns []*model.Transaction, best map[string]*model.Result, threshold float64) []*model.Transaction {
	var out []*model.Transaction
	for _, txn := range txns {
		if !accepted(best[txn.ID], threshold) {
			out = append(out, txn)
		}
	}
	return out
}
