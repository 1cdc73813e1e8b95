// Package learn converts high-confidence LLM results and explicit user
// corrections into durable artifacts: per-user rules, labeled examples, and
// cross-user global patterns with a verification threshold.
package learn

import (
	"context"
	"fmt"
	"strings"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/normalize"
	"github.com/arthaledger/artha/internal/rules"
	"github.com/arthaledger/artha/internal/service"
	"github.com/arthaledger/artha/internal/taxonomy"
)

const (
	// patternTokenCount and minPatternLength bound the keyword pattern
	// derived from a normalized description.
	patternTokenCount = 3
	minPatternLength  = 5

	// maxAutoRulesPerCategory caps llm_auto rules per (user, category) so
	// auto-learning cannot grow without bound.
	maxAutoRulesPerCategory = 100

	// Verification thresholds for global patterns.
	verifyMinUsers         = 2
	verifyMinAgreementRate = 0.80

	// autoRuleConfidence is assigned to learned rules; above the user-rule
	// acceptance threshold but below fully manual rules.
	autoRuleConfidence = 0.85
)

// Service persists learning artifacts. Each learn or feedback event runs as
// one atomic unit of work; embedding generation for new examples is queued
// afterwards, never performed inline.
type Service struct {
	store         service.LearningStore
	queue         service.EmbeddingQueue
	categories    *taxonomy.CategoryCache
	subcategories *taxonomy.SubcategoryCache
}

// NewService creates a learning service. The caches validate user-supplied
// category corrections; nil caches skip that validation.
func NewService(store service.LearningStore, queue service.EmbeddingQueue, categories *taxonomy.CategoryCache, subcategories *taxonomy.SubcategoryCache) *Service {
	return &Service{
		store:         store,
		queue:         queue,
		categories:    categories,
		subcategories: subcategories,
	}
}

// LearnFromLLM records artifacts for a high-confidence LLM categorization.
// Call only when the accepted result came from the LLM tier with confidence
// at or above the auto-learn threshold.
func (s *Service) LearnFromLLM(ctx context.Context, txn *model.Transaction, res *model.Result) error {
	var exampleID int64

	err := s.store.Atomically(ctx, func(ls service.LearningStore) error {
		id, err := s.recordArtifacts(ctx, ls, txn, res, model.ProvenanceLLMAuto)
		if err != nil {
			return err
		}
		exampleID = id

		return s.recordGlobalPattern(ctx, ls, txn, res)
	})
	if err != nil {
		return fmt.Errorf("auto-learn failed: %w", err)
	}

	s.queueExampleEmbedding(ctx, exampleID)
	return nil
}

// ApplyFeedback records an explicit user correction: the transaction's
// confirmed category is updated and a feedback rule plus labeled example are
// created in the same unit of work. The category must exist and the
// subcategory, when given, must belong to it.
func (s *Service) ApplyFeedback(ctx context.Context, txn *model.Transaction, categorySlug, subcategorySlug string) error {
	categorySlug = strings.ToLower(strings.TrimSpace(categorySlug))
	subcategorySlug = strings.ToLower(strings.TrimSpace(subcategorySlug))
	if err := s.validateCorrection(ctx, categorySlug, subcategorySlug); err != nil {
		return err
	}

	res := &model.Result{
		CategorySlug:    categorySlug,
		SubcategorySlug: subcategorySlug,
		Kind:            rules.DeriveKind(categorySlug, txn.Direction),
		Confidence:      1.0,
		Method:          model.MethodUserRule,
		Explanation:     "user correction",
	}

	var exampleID int64
	err := s.store.Atomically(ctx, func(ls service.LearningStore) error {
		id, err := s.recordArtifacts(ctx, ls, txn, res, model.ProvenanceFeedback)
		exampleID = id
		return err
	})
	if err != nil {
		return fmt.Errorf("feedback failed: %w", err)
	}

	s.queueExampleEmbedding(ctx, exampleID)
	return nil
}

// validateCorrection rejects corrections naming an unknown category or a
// subcategory that belongs to a different category.
func (s *Service) validateCorrection(ctx context.Context, categorySlug, subcategorySlug string) error {
	if s.categories == nil {
		return nil
	}

	cat, err := s.categories.FindBySlug(ctx, categorySlug)
	if err != nil {
		return fmt.Errorf("unknown category %q: %w", categorySlug, err)
	}
	if subcategorySlug == "" || s.subcategories == nil {
		return nil
	}

	subs, err := s.subcategories.ForCategory(ctx, cat.ID)
	if err != nil {
		return fmt.Errorf("failed to load subcategories: %w", err)
	}
	for i := range subs {
		if strings.EqualFold(subs[i].Slug, subcategorySlug) {
			return nil
		}
	}
	return fmt.Errorf("subcategory %q does not belong to category %q", subcategorySlug, categorySlug)
}

// recordArtifacts updates the transaction's confirmed fields and creates the
// rule and labeled example. Returns the labeled example id when one was
// created, 0 otherwise.
func (s *Service) recordArtifacts(ctx context.Context, ls service.LearningStore, txn *model.Transaction, res *model.Result, provenance model.RuleProvenance) (int64, error) {
	if txn.NormalizedDescription == "" {
		txn.NormalizedDescription = normalize.Description(txn.Description)
	}

	txn.CategorySlug = res.CategorySlug
	txn.SubcategorySlug = res.SubcategorySlug
	txn.Kind = res.Kind
	txn.NeedsReview = false
	txn.Status = model.StatusCompleted
	if err := ls.UpdateCategorization(ctx, txn); err != nil {
		return 0, fmt.Errorf("failed to update transaction: %w", err)
	}

	if pattern := DeriveKeywordPattern(txn.NormalizedDescription); pattern != "" {
		if err := s.createRule(ctx, ls, txn, res, pattern, provenance); err != nil {
			return 0, err
		}
	}

	example := &model.LabeledExample{
		UserID:                txn.UserID,
		NormalizedDescription: txn.NormalizedDescription,
		CategorySlug:          res.CategorySlug,
		SubcategorySlug:       res.SubcategorySlug,
		Source:                provenance,
	}
	created, err := ls.FindOrCreateExample(ctx, example)
	if err != nil {
		return 0, fmt.Errorf("failed to record labeled example: %w", err)
	}
	if !created {
		return 0, nil
	}
	return example.ID, nil
}

func (s *Service) createRule(ctx context.Context, ls service.LearningStore, txn *model.Transaction, res *model.Result, pattern string, provenance model.RuleProvenance) error {
	if provenance == model.ProvenanceLLMAuto {
		count, err := ls.CountAutoRules(ctx, txn.UserID, res.CategorySlug)
		if err != nil {
			return fmt.Errorf("failed to count auto rules: %w", err)
		}
		if count >= maxAutoRulesPerCategory {
			common.LogDebug("auto-rule cap reached, skipping rule creation", common.Fields{
				"user_id":  txn.UserID,
				"category": res.CategorySlug,
			})
			return nil
		}
	}

	rule := &model.UserRule{
		UserID:          txn.UserID,
		Pattern:         model.NormalizePattern(pattern),
		PatternType:     model.PatternKeyword,
		MatchField:      model.FieldNormalized,
		CategorySlug:    res.CategorySlug,
		SubcategorySlug: res.SubcategorySlug,
		Provenance:      provenance,
		Confidence:      autoRuleConfidence,
		IsActive:        true,
	}
	if _, err := ls.FindOrCreateRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to record rule: %w", err)
	}
	return nil
}

// recordGlobalPattern updates cross-user evidence and flips verification
// once the thresholds are crossed. Verification is one-way.
func (s *Service) recordGlobalPattern(ctx context.Context, ls service.LearningStore, txn *model.Transaction, res *model.Result) error {
	pattern := DeriveKeywordPattern(txn.NormalizedDescription)
	if pattern == "" {
		return nil
	}

	// A suggestion for this category is an implicit disagreement with any
	// other category already recorded under the same pattern text.
	if err := ls.RecordDisagreements(ctx, pattern, res.CategorySlug, txn.UserID); err != nil {
		return fmt.Errorf("failed to record pattern disagreements: %w", err)
	}

	updated, err := ls.RecordContribution(ctx, pattern, res.CategorySlug, txn.UserID)
	if err != nil {
		return fmt.Errorf("failed to record pattern contribution: %w", err)
	}

	if !updated.IsVerified &&
		updated.UserCount >= verifyMinUsers &&
		updated.AgreementRate() >= verifyMinAgreementRate {
		if err := ls.MarkVerified(ctx, updated.ID); err != nil {
			return fmt.Errorf("failed to verify pattern: %w", err)
		}
	}
	return nil
}

func (s *Service) queueExampleEmbedding(ctx context.Context, exampleID int64) {
	if s.queue == nil || exampleID == 0 {
		return
	}
	if err := s.queue.EnqueueExampleEmbedding(ctx, []int64{exampleID}); err != nil {
		common.LogError(err, "failed to queue example embedding", common.Fields{
			"example_id": exampleID,
		})
	}
}

// DeriveKeywordPattern builds the short keyword pattern stored on learned
// rules and global patterns: the first three meaningful tokens of the
// normalized description, kept only when at least five characters long.
func DeriveKeywordPattern(normalized string) string {
	tokens := normalize.MeaningfulTokens(normalized)
	if len(tokens) > patternTokenCount {
		tokens = tokens[:patternTokenCount]
	}
	pattern := strings.Join(tokens, " ")
	if len(pattern) < minPatternLength {
		return ""
	}
	return pattern
}
