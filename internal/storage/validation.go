// Package storage provides the SQLite persistence layer for the
// categorization core.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arthaledger/artha/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidRule        = errors.New("invalid rule")
	ErrInvalidExample     = errors.New("invalid example")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Description == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}
	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateRule validates a user rule prior to storage.
func validateRule(rule *model.UserRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if strings.TrimSpace(rule.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return fmt.Errorf("%w: missing pattern", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.CategorySlug) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidRule)
	}
	switch rule.PatternType {
	case model.PatternExact, model.PatternKeyword, model.PatternRegex:
	default:
		return fmt.Errorf("%w: unknown pattern type %q", ErrInvalidRule, rule.PatternType)
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidRule)
	}
	return nil
}

// validateExample validates a labeled example prior to storage.
func validateExample(example *model.LabeledExample) error {
	if example == nil {
		return fmt.Errorf("%w: example", ErrNilParameter)
	}
	if strings.TrimSpace(example.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidExample)
	}
	if strings.TrimSpace(example.NormalizedDescription) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidExample)
	}
	if strings.TrimSpace(example.CategorySlug) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidExample)
	}
	return nil
}
