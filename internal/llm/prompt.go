package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/arthaledger/artha/internal/model"
)

const disambiguationRules = `Disambiguation rules:
- transfer_self: movement between the user's own accounts, including credit card bill payments.
- transfer_wallet: loading money into a prepaid wallet (Paytm, PhonePe, Amazon Pay, Mobikwik).
- transfer_p2p: money sent to another person; a personal UPI handle or a human name after NEFT/IMPS/RTGS markers suggests p2p, a merchant or business name does not.
- A merchant name anywhere in the description usually means a purchase, not a transfer, even when a UPI handle is present.
- salary: recurring credits from an employer; use kind income_salary only on credits.
- dividend and interest credits are income, not refunds.
- emi: loan installments; use kind loan_emi.`

// buildSystemPrompt enumerates the live taxonomy and the disambiguation
// rules. Rebuilt per call so taxonomy cache refreshes are picked up.
func (c *Categorizer) buildSystemPrompt(ctx context.Context) (string, error) {
	var b strings.Builder
	b.WriteString("You are a bank transaction categorizer for Indian personal finance data. ")
	b.WriteString("Respond with ONLY a valid JSON object (or JSON array for batch requests), no markdown fences, no commentary.\n\n")
	b.WriteString("Response fields: category (required, one of the slugs below), subcategory (optional slug), kind (optional), confidence (0 to 1), explanation (short).\n\n")

	b.WriteString("Categories:\n")
	if c.categories != nil {
		cats, err := c.categories.All(ctx)
		if err != nil {
			return "", err
		}
		for _, cat := range cats {
			if !cat.IsActive {
				continue
			}
			b.WriteString(fmt.Sprintf("- %s (%s)", cat.Slug, cat.Name))
			if c.subcategories != nil {
				subs, err := c.subcategories.ForCategory(ctx, cat.ID)
				if err == nil && len(subs) > 0 {
					slugs := make([]string, 0, len(subs))
					for _, s := range subs {
						slugs = append(slugs, s.Slug)
					}
					b.WriteString(": " + strings.Join(slugs, ", "))
				}
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(disambiguationRules)
	return b.String(), nil
}

func buildUserPrompt(txn *model.Transaction) string {
	var b strings.Builder
	b.WriteString("Categorize this transaction:\n")
	writeTransaction(&b, txn)
	b.WriteString("\nRespond with a single JSON object.")
	return b.String()
}

func buildBatchUserPrompt(txns []*model.Transaction) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Categorize these %d transactions. ", len(txns)))
	b.WriteString("Respond with a JSON array; each element must include the \"id\" it belongs to.\n")
	for _, txn := range txns {
		b.WriteString(fmt.Sprintf("\nid: %s\n", txn.ID))
		writeTransaction(&b, txn)
	}
	return b.String()
}

func writeTransaction(b *strings.Builder, txn *model.Transaction) {
	b.WriteString(fmt.Sprintf("description: %s\n", txn.Description))
	if txn.NormalizedDescription != "" {
		b.WriteString(fmt.Sprintf("normalized: %s\n", txn.NormalizedDescription))
	}
	b.WriteString(fmt.Sprintf("amount: %.2f\n", txn.Amount))
	b.WriteString(fmt.Sprintf("type: %s\n", txn.Direction))
	if !txn.OccurredAt.IsZero() {
		b.WriteString(fmt.Sprintf("date: %s\n", txn.OccurredAt.Format("2006-01-02")))
	}
}
