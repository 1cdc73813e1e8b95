package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect categorization rules",
	}
	cmd.AddCommand(rulesListCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's active rules",
		RunE:  runRulesList,
	}

	cmd.Flags().String("user", "", "user whose rules to list (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rules, err := store.GetActiveRules(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	if len(rules) == 0 {
		fmt.Printf("No active rules for user %s\n", userID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPATTERN\tTYPE\tCATEGORY\tPROVENANCE\tCONFIDENCE\tMATCHES")
	for _, rule := range rules {
		category := rule.CategorySlug
		if rule.SubcategorySlug != "" {
			category += "/" + rule.SubcategorySlug
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.2f\t%d\n",
			rule.ID, rule.Pattern, rule.PatternType, category,
			rule.Provenance, rule.Confidence, rule.MatchCount)
	}
	return w.Flush()
}
