package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/arthaledger/artha/internal/model"

	"github.com/spf13/cobra"
)

func taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect the category taxonomy",
	}
	cmd.AddCommand(taxonomyListCmd())
	return cmd
}

func taxonomyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories and their subcategories",
		RunE:  runTaxonomyList,
	}
}

func runTaxonomyList(cmd *cobra.Command, _ []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()

	categories, err := store.GetCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	subcategories, err := store.GetSubcategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load subcategories: %w", err)
	}

	subsByCategory := make(map[int64][]model.Subcategory)
	for _, sub := range subcategories {
		subsByCategory[sub.CategoryID] = append(subsByCategory[sub.CategoryID], sub)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tNAME\tSUBCATEGORIES")
	for _, cat := range categories {
		var subs []string
		for _, sub := range subsByCategory[cat.ID] {
			name := sub.Slug
			if sub.IsDefault {
				name += "*"
			}
			subs = append(subs, name)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", cat.Slug, cat.Name, strings.Join(subs, ", "))
	}
	return w.Flush()
}
