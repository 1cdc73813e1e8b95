package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/service"
)

// Search parameters. Labeled examples are feedback-sourced and trusted more
// than prior transactions, so their corroboration damping is lower and their
// confidence ceiling higher.
const (
	MinSimilarity = 0.75
	NeighborK     = 5

	exampleDamping     = 8.0
	transactionDamping = 10.0
)

// Similarity categorizes transactions by nearest-neighbor search over the
// user's labeled examples first, then their prior categorized transactions.
type Similarity struct {
	index service.VectorIndex
}

// NewSimilarity creates a similarity service over the given vector index.
func NewSimilarity(index service.VectorIndex) *Similarity {
	return &Similarity{index: index}
}

// Categorize returns an embedding-tier candidate, or nil when the
// transaction has no stored embedding or no neighbor group clears the
// similarity floor. Index failures are absorbed and logged.
func (s *Similarity) Categorize(ctx context.Context, txn *model.Transaction) *model.Result {
	if s == nil || s.index == nil || !txn.HasEmbedding() {
		return nil
	}

	if res := s.searchExamples(ctx, txn); res != nil {
		return res
	}
	return s.searchTransactions(ctx, txn)
}

func (s *Similarity) searchExamples(ctx context.Context, txn *model.Transaction) *model.Result {
	neighbors, err := s.index.NearestExamples(ctx, txn.UserID, txn.Embedding, NeighborK, MinSimilarity)
	if err != nil {
		common.LogError(err, "labeled example search failed", common.Fields{
			"user_id": txn.UserID,
		})
		return nil
	}
	return exampleResult(neighbors)
}

func (s *Similarity) searchTransactions(ctx context.Context, txn *model.Transaction) *model.Result {
	neighbors, err := s.index.NearestTransactions(ctx, txn.UserID, txn.Embedding, NeighborK, MinSimilarity, txn.ID)
	if err != nil {
		common.LogError(err, "transaction similarity search failed", common.Fields{
			"user_id": txn.UserID,
		})
		return nil
	}
	return transactionResult(neighbors)
}

// exampleResult turns labeled-example neighbors into a candidate, or nil
// when no group clears the similarity floor.
func exampleResult(neighbors []service.Neighbor) *model.Result {
	group := topGroup(neighbors, exampleDamping)
	if group == nil || group.avgSimilarity < MinSimilarity {
		return nil
	}

	conf := math.Min(0.98, group.avgSimilarity*0.95+0.02*float64(group.count))
	return &model.Result{
		CategorySlug:    group.categorySlug,
		SubcategorySlug: group.subcategorySlug,
		Confidence:      model.ClampConfidence(conf),
		Method:          model.MethodEmbeddingFeedback,
		Explanation: fmt.Sprintf("%d labeled examples with %.0f%% average similarity",
			group.count, group.avgSimilarity*100),
	}
}

// transactionResult turns prior-transaction neighbors into a candidate, or
// nil when no group clears the similarity floor.
func transactionResult(neighbors []service.Neighbor) *model.Result {
	group := topGroup(neighbors, transactionDamping)
	if group == nil || group.avgSimilarity < MinSimilarity {
		return nil
	}

	conf := math.Min(0.95, group.avgSimilarity*0.90+0.02*float64(group.count))
	return &model.Result{
		CategorySlug:    group.categorySlug,
		SubcategorySlug: group.subcategorySlug,
		Confidence:      model.ClampConfidence(conf),
		Method:          model.MethodEmbedding,
		Explanation: fmt.Sprintf("%d similar past transactions with %.0f%% average similarity",
			group.count, group.avgSimilarity*100),
	}
}

// neighborGroup aggregates neighbors sharing a target category.
type neighborGroup struct {
	categorySlug    string
	subcategorySlug string
	count           int
	avgSimilarity   float64
	rank            float64
}

// topGroup groups neighbors by category and ranks each group by
// avgSimilarity * (1 + ln(count+1)/damping), rewarding corroboration from
// multiple neighbors.
func topGroup(neighbors []service.Neighbor, damping float64) *neighborGroup {
	if len(neighbors) == 0 {
		return nil
	}

	groups := make(map[string]*neighborGroup)
	order := make([]string, 0, len(neighbors))
	sums := make(map[string]float64)

	for _, n := range neighbors {
		g, ok := groups[n.CategorySlug]
		if !ok {
			g = &neighborGroup{categorySlug: n.CategorySlug, subcategorySlug: n.SubcategorySlug}
			groups[n.CategorySlug] = g
			order = append(order, n.CategorySlug)
		}
		g.count++
		sums[n.CategorySlug] += n.Similarity
	}

	var best *neighborGroup
	for _, slug := range order {
		g := groups[slug]
		g.avgSimilarity = sums[slug] / float64(g.count)
		g.rank = g.avgSimilarity * (1 + math.Log(float64(g.count)+1)/damping)
		if best == nil || g.rank > best.rank {
			best = g
		}
	}
	return best
}
