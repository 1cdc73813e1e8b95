// Package model defines the core domain models used throughout the application.
package model

import "time"

// TransactionDirection indicates whether money left or entered the account.
type TransactionDirection string

// Transaction direction constants.
const (
	DirectionDebit  TransactionDirection = "debit"
	DirectionCredit TransactionDirection = "credit"
)

// TransactionKind tags what a transaction fundamentally is, beyond its
// category: plain spending, a money movement, or a form of income.
type TransactionKind string

// Transaction kind constants.
const (
	KindSpend          TransactionKind = "spend"
	KindTransferSelf   TransactionKind = "transfer_self"
	KindTransferP2P    TransactionKind = "transfer_p2p"
	KindTransferWallet TransactionKind = "transfer_wallet"
	KindIncomeSalary   TransactionKind = "income_salary"
	KindIncomeInterest TransactionKind = "income_interest"
	KindIncomeDividend TransactionKind = "income_dividend"
	KindIncomeOther    TransactionKind = "income_other"
	KindInvestment     TransactionKind = "investment"
	KindLoanEMI        TransactionKind = "loan_emi"
	KindTax            TransactionKind = "tax"
	KindRefund         TransactionKind = "refund"
)

// CategorizationStatus tracks where a transaction sits in the triage
// lifecycle. Completed is terminal whether or not a category was found.
type CategorizationStatus string

// Categorization status constants.
const (
	StatusPending    CategorizationStatus = "pending"
	StatusProcessing CategorizationStatus = "processing"
	StatusCompleted  CategorizationStatus = "completed"
)

// Transaction represents a single bank transaction record owned by a user.
// Categorization fields are mutated only by the orchestrator or explicit
// feedback; the record itself is never deleted by this core.
type Transaction struct {
	OccurredAt            time.Time
	EmbeddedAt            *time.Time
	ID                    string
	UserID                string
	Description           string // Raw description as parsed from the statement
	NormalizedDescription string // Derived via normalize.Description, cached
	CategorySlug          string // Manually confirmed category
	SubcategorySlug       string
	AICategorySlug        string // AI-suggested category, pending confirmation
	AISubcategorySlug     string
	Explanation           string
	Method                string
	Kind                  TransactionKind
	Status                CategorizationStatus
	Direction             TransactionDirection
	Embedding             []float32
	Amount                float64
	Confidence            float64
	NeedsReview           bool
}

// EffectiveCategory returns the confirmed category if present, otherwise the
// AI suggestion.
func (t *Transaction) EffectiveCategory() string {
	if t.CategorySlug != "" {
		return t.CategorySlug
	}
	return t.AICategorySlug
}

// HasEmbedding reports whether a vector has been generated for this
// transaction's normalized description.
func (t *Transaction) HasEmbedding() bool {
	return len(t.Embedding) > 0
}
