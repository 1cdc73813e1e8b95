package embedding

import (
	"context"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/service"
)

// BatchSimilarity runs the two-stage similarity search over many
// transactions. Instead of querying the index per transaction it loads each
// user's vectors once and searches them in memory, so a batch of N
// transactions for one user costs two index reads, not 2N.
type BatchSimilarity struct {
	index service.VectorIndex
}

// NewBatchSimilarity creates a batch similarity service sharing the single
// service's index.
func NewBatchSimilarity(single *Similarity) *BatchSimilarity {
	b := &BatchSimilarity{}
	if single != nil {
		b.index = single.index
	}
	return b
}

// CategorizeBatch returns a result per transaction id for every transaction
// whose stored embedding found a qualifying neighbor group. Transactions
// without embeddings are skipped; they are queued for generation by the
// orchestrator, never embedded inline.
func (b *BatchSimilarity) CategorizeBatch(ctx context.Context, txns []*model.Transaction) map[string]*model.Result {
	results := make(map[string]*model.Result)
	if b == nil || b.index == nil {
		return results
	}

	byUser := make(map[string][]*model.Transaction)
	for _, txn := range txns {
		if !txn.HasEmbedding() {
			continue
		}
		byUser[txn.UserID] = append(byUser[txn.UserID], txn)
	}

	for userID, userTxns := range byUser {
		if ctx.Err() != nil {
			return results
		}

		examples, err := b.index.ExampleVectors(ctx, userID)
		if err != nil {
			common.LogError(err, "labeled example vector load failed", common.Fields{
				"user_id": userID,
			})
			continue
		}
		transactions, err := b.index.TransactionVectors(ctx, userID)
		if err != nil {
			common.LogError(err, "transaction vector load failed", common.Fields{
				"user_id": userID,
			})
			continue
		}

		for _, txn := range userTxns {
			res := exampleResult(Nearest(examples, txn.Embedding, NeighborK, MinSimilarity, ""))
			if res == nil {
				res = transactionResult(Nearest(transactions, txn.Embedding, NeighborK, MinSimilarity, txn.ID))
			}
			if res != nil {
				results[txn.ID] = res
			}
		}
	}
	return results
}
