package queue

import (
	"context"
	"log/slog"
)

// Noop is the queue used when no broker is configured. Jobs are logged and
// dropped; embeddings can still be backfilled later from the rows that
// remain unembedded.
type Noop struct{}

// EnqueueTransactionEmbedding logs and drops the job.
func (Noop) EnqueueTransactionEmbedding(ctx context.Context, transactionIDs []string) error {
	slog.DebugContext(ctx, "embedding queue disabled, dropping job",
		"kind", JobTransactionEmbedding,
		"count", len(transactionIDs))
	return nil
}

// EnqueueExampleEmbedding logs and drops the job.
func (Noop) EnqueueExampleEmbedding(ctx context.Context, exampleIDs []int64) error {
	slog.DebugContext(ctx, "embedding queue disabled, dropping job",
		"kind", JobExampleEmbedding,
		"count", len(exampleIDs))
	return nil
}
