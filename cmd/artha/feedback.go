package main

import (
	"fmt"
	"log/slog"

	"github.com/arthaledger/artha/internal/learn"
	"github.com/arthaledger/artha/internal/taxonomy"

	"github.com/spf13/cobra"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <transaction-id> <category> [subcategory]",
		Short: "Correct a transaction's category",
		Long: `Record a category correction for one transaction.

The correction is stored as the confirmed category and feeds the
learning loop: a matching rule and a labeled example are created so
similar transactions are categorized correctly next time.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: runFeedback,
	}
	return cmd
}

func runFeedback(cmd *cobra.Command, args []string) error {
	transactionID := args[0]
	categorySlug := args[1]
	subcategorySlug := ""
	if len(args) == 3 {
		subcategorySlug = args[2]
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()

	txn, err := store.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}

	categories := taxonomy.NewCategoryCache(store, taxonomy.DefaultTTL)
	subcategories := taxonomy.NewSubcategoryCache(store, taxonomy.DefaultTTL)
	learner := learn.NewService(store, embeddingQueue(), categories, subcategories)
	if err := learner.ApplyFeedback(ctx, txn, categorySlug, subcategorySlug); err != nil {
		return fmt.Errorf("failed to apply feedback: %w", err)
	}

	slog.Info("Feedback recorded",
		"transaction", transactionID,
		"category", categorySlug,
		"subcategory", subcategorySlug)
	return nil
}
