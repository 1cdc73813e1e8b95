package rules

import "github.com/arthaledger/artha/internal/model"

// DeriveKind maps a category slug and transaction direction to a
// transaction kind. Income-style categories only count as income on the
// credit side; a debit tagged "salary" is still spending.
func DeriveKind(categorySlug string, direction model.TransactionDirection) model.TransactionKind {
	credit := direction == model.DirectionCredit

	switch categorySlug {
	case "salary":
		if credit {
			return model.KindIncomeSalary
		}
	case "interest":
		if credit {
			return model.KindIncomeInterest
		}
	case "dividend":
		if credit {
			return model.KindIncomeDividend
		}
	case "refund":
		if credit {
			return model.KindRefund
		}
	case "investment":
		return model.KindInvestment
	case "emi":
		return model.KindLoanEMI
	case "tax":
		return model.KindTax
	}
	return model.KindSpend
}
