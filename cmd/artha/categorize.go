package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/arthaledger/artha/internal/engine"
	"github.com/arthaledger/artha/internal/model"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Categorize pending transactions",
		Long: `Run the categorization pipeline over a user's pending transactions.

Each transaction passes through transfer detection, matching rules,
embedding similarity and (when configured) the LLM, stopping at the
first tier confident enough to answer.`,
		RunE: runCategorize,
	}

	cmd.Flags().String("user", "", "user whose transactions to categorize (required)")
	cmd.Flags().Int("limit", 0, "categorize at most this many transactions (0 = all)")
	cmd.Flags().StringSlice("id", nil, "categorize only these transaction IDs")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runCategorize(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	ids, _ := cmd.Flags().GetStringSlice("id")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := embeddingQueue()
	orchestrator, categorizer, err := buildOrchestrator(store, q)
	if err != nil {
		return err
	}
	defer categorizer.Close()

	ctx := cmd.Context()

	var pending []*model.Transaction
	if len(ids) > 0 {
		for _, id := range ids {
			txn, getErr := store.GetTransaction(ctx, id)
			if getErr != nil {
				return getErr
			}
			pending = append(pending, txn)
		}
	} else {
		all, listErr := store.GetTransactionsByUser(ctx, userID, 0)
		if listErr != nil {
			return listErr
		}
		for i := range all {
			if all[i].Status != model.StatusPending {
				continue
			}
			pending = append(pending, &all[i])
			if limit > 0 && len(pending) == limit {
				break
			}
		}
	}

	if len(pending) == 0 {
		slog.Info("No pending transactions to categorize", "user", userID)
		return nil
	}

	slog.Info("Categorizing transactions",
		"user", userID,
		"count", len(pending),
		"llm_enabled", categorizer.Enabled())

	if len(pending) >= engine.BatchCutover {
		bar := newProgressBar(len(pending), "Categorizing transactions...")
		err = orchestrator.CategorizeBatch(ctx, pending)
		_ = bar.Finish()
	} else {
		bar := newProgressBar(len(pending), "Categorizing transactions...")
		for _, txn := range pending {
			if runErr := orchestrator.Categorize(ctx, txn); runErr != nil && err == nil {
				err = runErr
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("categorization finished with errors: %w", err)
	}

	printSummary(pending)
	return nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
	)
}

func printSummary(txns []*model.Transaction) {
	byMethod := make(map[string]int)
	uncategorized := 0
	for _, txn := range txns {
		if txn.AICategorySlug == "" && txn.Kind == "" {
			uncategorized++
			continue
		}
		byMethod[txn.Method]++
	}

	slog.Info("Categorization complete", "total", len(txns), "uncategorized", uncategorized)
	for method, count := range byMethod {
		slog.Info("Tier summary", "method", method, "count", count)
	}
}
