package main

import (
	"fmt"
	"log/slog"

	"github.com/arthaledger/artha/internal/llm"
	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/normalize"

	"github.com/spf13/cobra"
)

// embedBatchSize bounds how many descriptions go into one embedding request.
const embedBatchSize = 50

func embedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Generate embeddings for transactions that lack one",
		Long: `Drain the backlog of transactions without a stored embedding.

Categorization queues embedding jobs instead of calling the embedding
API inline; this command works through that backlog so the similarity
tier has vectors to search on the next run.`,
		RunE: runEmbed,
	}

	cmd.Flags().Int("limit", 0, "embed at most this many transactions (0 = all)")

	return cmd
}

func runEmbed(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	embedder, err := llm.NewEmbedder(llmConfig())
	if err != nil {
		return fmt.Errorf("failed to build embedder: %w", err)
	}
	if embedder == nil {
		return fmt.Errorf("configured LLM provider does not support embeddings")
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()

	txns, err := store.GetTransactionsWithoutEmbedding(ctx, limit)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		slog.Info("No transactions waiting for embeddings")
		return nil
	}

	slog.Info("Generating embeddings", "count", len(txns))
	bar := newProgressBar(len(txns), "Embedding transactions...")
	defer func() { _ = bar.Finish() }()

	embedded := 0
	for start := 0; start < len(txns); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(txns) {
			end = len(txns)
		}
		chunk := txns[start:end]

		vectors, err := embedder.Embed(ctx, embedTexts(chunk))
		if err != nil {
			return fmt.Errorf("embedding request failed: %w", err)
		}
		if len(vectors) != len(chunk) {
			return fmt.Errorf("embedding response size mismatch: got %d vectors for %d transactions",
				len(vectors), len(chunk))
		}

		for i := range chunk {
			if err := store.SaveEmbedding(ctx, chunk[i].ID, vectors[i]); err != nil {
				return fmt.Errorf("failed to save embedding for %s: %w", chunk[i].ID, err)
			}
			embedded++
			_ = bar.Add(1)
		}
	}

	slog.Info("Embedding complete", "embedded", embedded)
	return nil
}

func embedTexts(txns []model.Transaction) []string {
	texts := make([]string, len(txns))
	for i := range txns {
		text := txns[i].NormalizedDescription
		if text == "" {
			text = normalize.Description(txns[i].Description)
		}
		texts[i] = text
	}
	return texts
}
