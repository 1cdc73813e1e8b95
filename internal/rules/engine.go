// Package rules implements keyword and pattern matching over per-user rules,
// the fixed system keyword table, and verified cross-user patterns. The
// single-transaction Engine and the throughput-oriented BatchEngine share
// every match and confidence computation, so their results are identical for
// any input.
package rules

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/normalize"
	"github.com/arthaledger/artha/internal/service"
	"github.com/arthaledger/artha/internal/taxonomy"
	"github.com/arthaledger/artha/internal/transfer"
)

// UserRuleThreshold is the minimum confidence at which a user-rule match is
// accepted.
const UserRuleThreshold = 0.70

// Engine categorizes one transaction at a time by running, in order, the
// transfer classifier, per-user rules, the system keyword table, and
// verified global patterns, returning the first tier that yields a result.
type Engine struct {
	transfers     *transfer.Classifier
	ruleStore     service.RuleStore
	patternStore  service.PatternStore
	categories    *taxonomy.CategoryCache
	subcategories *taxonomy.SubcategoryCache
}

// NewEngine creates a rule engine. ruleStore and patternStore may be nil,
// which disables the corresponding stages.
func NewEngine(ruleStore service.RuleStore, patternStore service.PatternStore, categories *taxonomy.CategoryCache, subcategories *taxonomy.SubcategoryCache) *Engine {
	return &Engine{
		transfers:     transfer.NewClassifier(),
		ruleStore:     ruleStore,
		patternStore:  patternStore,
		categories:    categories,
		subcategories: subcategories,
	}
}

// Categorize returns the rule tier's candidate for the transaction, or nil
// when no stage produced one. Store failures are absorbed: the failing stage
// is logged and skipped.
func (e *Engine) Categorize(ctx context.Context, txn *model.Transaction) *model.Result {
	if txn.NormalizedDescription == "" {
		txn.NormalizedDescription = normalize.Description(txn.Description)
	}

	if res := e.transfers.Classify(txn); res != nil {
		return res
	}

	if res := e.categorizeByUserRules(ctx, txn); res != nil {
		return res
	}

	if res := e.categorizeBySystemRules(ctx, txn); res != nil {
		return res
	}

	return e.categorizeByGlobalPatterns(ctx, txn)
}

func (e *Engine) categorizeByUserRules(ctx context.Context, txn *model.Transaction) *model.Result {
	if e.ruleStore == nil || txn.UserID == "" {
		return nil
	}

	userRules, err := e.ruleStore.GetActiveRules(ctx, txn.UserID)
	if err != nil {
		common.LogError(err, "user rule lookup failed, skipping stage", common.Fields{
			"user_id": txn.UserID,
		})
		return nil
	}

	return e.applyUserRules(ctx, compileRules(userRules), txn)
}

// applyUserRules evaluates precompiled rules; shared with the batch engine.
func (e *Engine) applyUserRules(ctx context.Context, compiled []compiledRule, txn *model.Transaction) *model.Result {
	best := bestRuleMatch(compiled, txn)
	if best == nil || best.rule.Confidence < UserRuleThreshold {
		return nil
	}

	if err := e.ruleStore.RecordRuleMatch(ctx, best.rule.ID); err != nil {
		common.LogDebug("failed to record rule match", common.Fields{
			"rule_id": best.rule.ID,
			"error":   err.Error(),
		})
	}

	subSlug := best.rule.SubcategorySlug
	if subSlug == "" {
		subSlug = resolveSubcategory(ctx, e.categories, e.subcategories, best.rule.CategorySlug, txn.NormalizedDescription)
	}

	return &model.Result{
		CategorySlug:    best.rule.CategorySlug,
		SubcategorySlug: subSlug,
		Kind:            DeriveKind(best.rule.CategorySlug, txn.Direction),
		Confidence:      model.ClampConfidence(best.rule.Confidence),
		Method:          model.MethodUserRule,
		Explanation:     fmt.Sprintf("matched your rule %q", best.rule.Pattern),
	}
}

func (e *Engine) categorizeBySystemRules(ctx context.Context, txn *model.Transaction) *model.Result {
	scores := scoreSystemLinear(txn.NormalizedDescription)
	return e.systemResult(ctx, scores, txn)
}

// systemResult converts accumulated keyword scores into a tier result;
// shared with the batch engine.
func (e *Engine) systemResult(ctx context.Context, scores map[string]*categoryScore, txn *model.Transaction) *model.Result {
	slug, best := bestCategory(scores)
	if best == nil || best.score == 0 {
		return nil
	}

	return &model.Result{
		CategorySlug:    slug,
		SubcategorySlug: resolveSubcategory(ctx, e.categories, e.subcategories, slug, txn.NormalizedDescription),
		Kind:            DeriveKind(slug, txn.Direction),
		Confidence:      model.ClampConfidence(confidenceFor(*best)),
		Method:          model.MethodSystemRule,
		Explanation:     fmt.Sprintf("keyword evidence for %s (score %d)", slug, best.score),
	}
}

func (e *Engine) categorizeByGlobalPatterns(ctx context.Context, txn *model.Transaction) *model.Result {
	if e.patternStore == nil {
		return nil
	}

	patterns, err := e.patternStore.GetVerifiedPatterns(ctx)
	if err != nil {
		common.LogError(err, "global pattern lookup failed, skipping stage", nil)
		return nil
	}

	return e.applyGlobalPatterns(ctx, patterns, txn)
}

// applyGlobalPatterns evaluates verified patterns; shared with the batch
// engine.
func (e *Engine) applyGlobalPatterns(ctx context.Context, patterns []model.GlobalPattern, txn *model.Transaction) *model.Result {
	var best *model.GlobalPattern
	var bestConf float64

	for i := range patterns {
		p := &patterns[i]
		if !p.IsVerified || !patternMatches(p.Pattern, txn.NormalizedDescription) {
			continue
		}
		conf := globalPatternConfidence(p)
		if best == nil || conf > bestConf {
			best, bestConf = p, conf
		}
	}
	if best == nil {
		return nil
	}

	return &model.Result{
		CategorySlug:    best.CategorySlug,
		SubcategorySlug: resolveSubcategory(ctx, e.categories, e.subcategories, best.CategorySlug, txn.NormalizedDescription),
		Kind:            DeriveKind(best.CategorySlug, txn.Direction),
		Confidence:      model.ClampConfidence(bestConf),
		Method:          model.MethodGlobalPattern,
		Explanation:     fmt.Sprintf("verified pattern %q (%d users)", best.Pattern, best.UserCount),
	}
}

// globalPatternConfidence rewards patterns with more contributing users (up
// to +0.10) and more sightings (up to +0.05), capped at 0.90.
func globalPatternConfidence(p *model.GlobalPattern) float64 {
	userBonus := math.Min(0.10, 0.02*float64(p.UserCount))
	countBonus := math.Min(0.05, 0.005*float64(p.OccurrenceCount))
	return math.Min(0.90, 0.75+userBonus+countBonus)
}

// patternMatches requires every token of the stored pattern to appear in the
// normalized description on a word boundary.
func patternMatches(pattern, normalized string) bool {
	if pattern == "" || normalized == "" {
		return false
	}
	for _, tok := range strings.Fields(pattern) {
		if !wordBoundaryMatch(normalized, tok) {
			return false
		}
	}
	return true
}

// scoreSystemLinear scans the full keyword table once per transaction.
func scoreSystemLinear(normalized string) map[string]*categoryScore {
	scores := make(map[string]*categoryScore)
	if normalized == "" {
		return scores
	}

	for idx, entry := range systemKeywords {
		if !entry.re.MatchString(normalized) {
			continue
		}
		addKeywordScore(scores, idx)
	}
	return scores
}

func addKeywordScore(scores map[string]*categoryScore, idx int) {
	entry := systemKeywords[idx]
	s, ok := scores[entry.category]
	if !ok {
		s = &categoryScore{firstOrdinal: idx}
		scores[entry.category] = s
	}
	s.score += entry.weight
	if entry.multiWord {
		s.phraseMatch = true
	}
	if idx < s.firstOrdinal {
		s.firstOrdinal = idx
	}
}
