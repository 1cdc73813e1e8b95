package llm

import (
	"context"
	"strings"
	"time"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/taxonomy"
)

const (
	// BatchSize is the maximum number of transactions packed into one
	// batch prompt.
	BatchSize = 10

	maxAttempts   = 3
	backoffPerTry = 2 * time.Second
)

// AutoLearnThreshold is the confidence at or above which an accepted LLM
// result triggers auto-learning.
const AutoLearnThreshold = 0.85

var validKinds = map[string]model.TransactionKind{
	string(model.KindSpend):          model.KindSpend,
	string(model.KindTransferSelf):   model.KindTransferSelf,
	string(model.KindTransferP2P):    model.KindTransferP2P,
	string(model.KindTransferWallet): model.KindTransferWallet,
	string(model.KindIncomeSalary):   model.KindIncomeSalary,
	string(model.KindIncomeInterest): model.KindIncomeInterest,
	string(model.KindIncomeDividend): model.KindIncomeDividend,
	string(model.KindIncomeOther):    model.KindIncomeOther,
	string(model.KindInvestment):     model.KindInvestment,
	string(model.KindLoanEMI):        model.KindLoanEMI,
	string(model.KindTax):            model.KindTax,
	string(model.KindRefund):         model.KindRefund,
}

// Categorizer is the LLM fallback tier. A Categorizer constructed without an
// API key is disabled: every call silently yields no candidate.
type Categorizer struct {
	client        Client
	limiter       *rateLimiter
	categories    *taxonomy.CategoryCache
	subcategories *taxonomy.SubcategoryCache
}

// NewCategorizer creates the fallback tier. An empty API key produces a
// disabled categorizer, not an error.
func NewCategorizer(cfg Config, categories *taxonomy.CategoryCache, subcategories *taxonomy.SubcategoryCache) (*Categorizer, error) {
	c := &Categorizer{
		categories:    categories,
		subcategories: subcategories,
	}
	if cfg.APIKey == "" {
		return c, nil
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	c.client = client
	c.limiter = newRateLimiter(cfg.RequestsPerMinute)
	return c, nil
}

// Enabled reports whether an API credential was configured.
func (c *Categorizer) Enabled() bool {
	return c != nil && c.client != nil
}

// Close releases the rate limiter.
func (c *Categorizer) Close() {
	if c != nil && c.limiter != nil {
		c.limiter.Close()
	}
}

// Categorize asks the model for a category for one transaction. Returns nil
// when the tier is disabled, the request ultimately fails, or the output is
// unparseable; all failures are logged and absorbed.
func (c *Categorizer) Categorize(ctx context.Context, txn *model.Transaction) *model.Result {
	if !c.Enabled() {
		return nil
	}

	systemPrompt, err := c.buildSystemPrompt(ctx)
	if err != nil {
		common.LogError(err, "failed to build taxonomy prompt", nil)
		return nil
	}

	content, err := c.complete(ctx, systemPrompt, buildUserPrompt(txn))
	if err != nil {
		common.LogError(err, "LLM categorization failed", common.Fields{
			"transaction_id": txn.ID,
			"description":    common.Truncate(txn.Description, 40),
		})
		return nil
	}

	parsed, err := parseCategorization(content)
	if err != nil {
		common.LogError(err, "unparseable LLM response", common.Fields{
			"transaction_id": txn.ID,
		})
		return nil
	}

	return c.toResult(ctx, parsed, txn)
}

// CategorizeBatch packs up to BatchSize transactions per call, id-tagged,
// and expects an array of per-id results. Emptied or garbled batches yield
// an empty map.
func (c *Categorizer) CategorizeBatch(ctx context.Context, txns []*model.Transaction) map[string]*model.Result {
	results := make(map[string]*model.Result)
	if !c.Enabled() || len(txns) == 0 {
		return results
	}

	systemPrompt, err := c.buildSystemPrompt(ctx)
	if err != nil {
		common.LogError(err, "failed to build taxonomy prompt", nil)
		return results
	}

	byID := make(map[string]*model.Transaction, len(txns))
	for _, txn := range txns {
		byID[txn.ID] = txn
	}

	for start := 0; start < len(txns); start += BatchSize {
		end := start + BatchSize
		if end > len(txns) {
			end = len(txns)
		}
		chunk := txns[start:end]

		content, err := c.complete(ctx, systemPrompt, buildBatchUserPrompt(chunk))
		if err != nil {
			common.LogError(err, "LLM batch categorization failed", common.Fields{
				"batch_size": len(chunk),
			})
			continue
		}

		for id, parsed := range parseBatchCategorization(content) {
			txn, ok := byID[id]
			if !ok {
				continue
			}
			if res := c.toResult(ctx, parsed, txn); res != nil {
				results[id] = res
			}
		}
	}

	return results
}

// complete runs one request under the rate limiter, retrying rate-limit
// failures up to maxAttempts with linear backoff.
func (c *Categorizer) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var content string
	err := common.WithRetry(ctx, func() error {
		if err := c.limiter.wait(ctx); err != nil {
			return err
		}
		var err error
		content, err = c.client.Complete(ctx, systemPrompt, userPrompt)
		return err
	}, common.RetryOptions{
		MaxAttempts:  maxAttempts,
		InitialDelay: backoffPerTry,
		Linear:       true,
	})
	return content, err
}

func (c *Categorizer) toResult(ctx context.Context, parsed *categorization, txn *model.Transaction) *model.Result {
	slug := strings.ToLower(strings.TrimSpace(parsed.Category))
	subSlug := strings.ToLower(strings.TrimSpace(parsed.Subcategory))
	if c.categories != nil {
		cat, err := c.categories.FindBySlug(ctx, slug)
		if err != nil {
			common.LogDebug("LLM returned unknown category", common.Fields{
				"category":       slug,
				"transaction_id": txn.ID,
			})
			return nil
		}
		slug = strings.ToLower(cat.Slug)
		subSlug = c.checkSubcategory(ctx, cat.ID, subSlug, txn.ID)
	}

	kind, ok := validKinds[strings.ToLower(strings.TrimSpace(parsed.Kind))]
	if !ok {
		kind = ""
	}

	return &model.Result{
		CategorySlug:    slug,
		SubcategorySlug: subSlug,
		Kind:            kind,
		Confidence:      parsed.Confidence,
		Method:          model.MethodLLM,
		Explanation:     parsed.Explanation,
	}
}

// checkSubcategory keeps the model's subcategory only when it belongs to the
// chosen category. Models occasionally pair a valid category with a
// subcategory from a different branch of the taxonomy; those are dropped.
func (c *Categorizer) checkSubcategory(ctx context.Context, categoryID int64, slug, transactionID string) string {
	if slug == "" || c.subcategories == nil {
		return slug
	}

	subs, err := c.subcategories.ForCategory(ctx, categoryID)
	if err != nil {
		common.LogError(err, "failed to load subcategories", common.Fields{
			"transaction_id": transactionID,
		})
		return ""
	}
	for i := range subs {
		if strings.EqualFold(subs[i].Slug, slug) {
			return strings.ToLower(subs[i].Slug)
		}
	}

	common.LogDebug("LLM returned subcategory outside the chosen category", common.Fields{
		"subcategory":    slug,
		"transaction_id": transactionID,
	})
	return ""
}
