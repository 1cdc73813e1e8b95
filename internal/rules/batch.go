package rules

import (
	"context"
	"strings"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/normalize"
)

// BatchEngine evaluates the same tiers as Engine but amortizes setup over a
// whole batch: the system keyword inverted index is consulted per token
// instead of per keyword, each user's active rules are compiled once, and
// verified global patterns are fetched once. Match and confidence semantics
// are identical to the single-transaction engine.
type BatchEngine struct {
	engine *Engine
}

// NewBatchEngine creates a batch engine sharing the single engine's
// dependencies.
func NewBatchEngine(engine *Engine) *BatchEngine {
	return &BatchEngine{engine: engine}
}

// CategorizeBatch returns a result per transaction id for every transaction
// that any stage matched. Store failures disable the affected stage for the
// whole batch rather than failing it.
func (b *BatchEngine) CategorizeBatch(ctx context.Context, txns []*model.Transaction) map[string]*model.Result {
	results := make(map[string]*model.Result, len(txns))
	if len(txns) == 0 {
		return results
	}

	rulesByUser := b.compileUserRules(ctx, txns)
	patterns := b.loadVerifiedPatterns(ctx)

	for _, txn := range txns {
		if txn.NormalizedDescription == "" {
			txn.NormalizedDescription = normalize.Description(txn.Description)
		}

		if res := b.engine.transfers.Classify(txn); res != nil {
			results[txn.ID] = res
			continue
		}

		if compiled, ok := rulesByUser[txn.UserID]; ok {
			if res := b.engine.applyUserRules(ctx, compiled, txn); res != nil {
				results[txn.ID] = res
				continue
			}
		}

		scores := scoreSystemIndexed(txn.NormalizedDescription)
		if res := b.engine.systemResult(ctx, scores, txn); res != nil {
			results[txn.ID] = res
			continue
		}

		if res := b.engine.applyGlobalPatterns(ctx, patterns, txn); res != nil {
			results[txn.ID] = res
		}
	}

	return results
}

func (b *BatchEngine) compileUserRules(ctx context.Context, txns []*model.Transaction) map[string][]compiledRule {
	rulesByUser := make(map[string][]compiledRule)
	if b.engine.ruleStore == nil {
		return rulesByUser
	}

	for _, txn := range txns {
		if txn.UserID == "" {
			continue
		}
		if _, done := rulesByUser[txn.UserID]; done {
			continue
		}
		userRules, err := b.engine.ruleStore.GetActiveRules(ctx, txn.UserID)
		if err != nil {
			common.LogError(err, "user rule lookup failed for batch, skipping user", common.Fields{
				"user_id": txn.UserID,
			})
			rulesByUser[txn.UserID] = nil
			continue
		}
		rulesByUser[txn.UserID] = compileRules(userRules)
	}
	return rulesByUser
}

func (b *BatchEngine) loadVerifiedPatterns(ctx context.Context) []model.GlobalPattern {
	if b.engine.patternStore == nil {
		return nil
	}
	patterns, err := b.engine.patternStore.GetVerifiedPatterns(ctx)
	if err != nil {
		common.LogError(err, "global pattern lookup failed for batch, skipping stage", nil)
		return nil
	}
	return patterns
}

// scoreSystemIndexed scores via the inverted index: exact lookup for
// single-word keywords, first-word candidate lookup plus a precompiled
// phrase pattern for multi-word keywords. Each keyword counts once no matter
// how often it occurs, matching the linear scan.
func scoreSystemIndexed(normalized string) map[string]*categoryScore {
	scores := make(map[string]*categoryScore)
	if normalized == "" {
		return scores
	}

	matched := make(map[int]struct{})
	for _, token := range indexTokens(normalized) {
		for _, idx := range keywordIndex.singles[token] {
			if _, seen := matched[idx]; seen {
				continue
			}
			matched[idx] = struct{}{}
			addKeywordScore(scores, idx)
		}
		for _, idx := range keywordIndex.phrases[token] {
			if _, seen := matched[idx]; seen {
				continue
			}
			if systemKeywords[idx].re.MatchString(normalized) {
				matched[idx] = struct{}{}
				addKeywordScore(scores, idx)
			}
		}
	}
	return scores
}

// indexTokens splits on spaces and hyphens so lookup agrees with the linear
// scan's word-boundary regexes.
func indexTokens(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || r == '-'
	})
}
