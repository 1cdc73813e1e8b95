package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/normalize"

	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import transactions from a statement CSV",
		Long: `Import transactions from a CSV export of a bank statement.

Expected columns: id, date (YYYY-MM-DD), description, amount, direction
(debit or credit). A header row is detected and skipped. Rows whose IDs
already exist are ignored, so re-importing a statement is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("user", "", "user the transactions belong to (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	transactions, err := parseStatementCSV(file, userID)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		slog.Info("No transactions found in file")
		return nil
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveTransactions(cmd.Context(), transactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	slog.Info("Import complete", "user", userID, "count", len(transactions))
	return nil
}

func parseStatementCSV(r io.Reader, userID string) ([]model.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var transactions []model.Transaction
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line++

		if len(record) < 5 {
			return nil, fmt.Errorf("line %d: expected 5 columns, got %d", line, len(record))
		}

		// Skip a header row.
		if line == 1 && strings.EqualFold(record[0], "id") {
			continue
		}

		occurredAt, err := time.Parse("2006-01-02", record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q: %w", line, record[1], err)
		}

		amount, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid amount %q: %w", line, record[3], err)
		}

		direction := model.TransactionDirection(strings.ToLower(strings.TrimSpace(record[4])))
		switch direction {
		case model.DirectionDebit, model.DirectionCredit:
		default:
			return nil, fmt.Errorf("line %d: invalid direction %q", line, record[4])
		}

		transactions = append(transactions, model.Transaction{
			ID:                    record[0],
			UserID:                userID,
			Description:           record[2],
			NormalizedDescription: normalize.Description(record[2]),
			Amount:                amount,
			Direction:             direction,
			OccurredAt:            occurredAt,
			Status:                model.StatusPending,
		})
	}
	return transactions, nil
}
