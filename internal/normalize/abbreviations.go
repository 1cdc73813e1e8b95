package normalize

import "sort"

type abbreviation struct {
	short string
	full  string
}

// Financial abbreviations expanded to canonical terms. Matching is
// whole-token and longest-first, so "pymt" never half-matches "pmt".
var abbreviationsByLength = []abbreviation{
	{"pymt", "payment"},
	{"pmt", "payment"},
	{"pmnt", "payment"},
	{"trf", "transfer"},
	{"trfr", "transfer"},
	{"tfr", "transfer"},
	{"txn", "transaction"},
	{"recd", "received"},
	{"rcvd", "received"},
	{"sal", "salary"},
	{"sln", "salary"},
	{"int", "interest"},
	{"intt", "interest"},
	{"div", "dividend"},
	{"insur", "insurance"},
	{"ins", "insurance"},
	{"prem", "premium"},
	{"chg", "charge"},
	{"chgs", "charges"},
	{"wdl", "withdrawal"},
	{"dep", "deposit"},
	{"bal", "balance"},
	{"elec", "electricity"},
	{"electr", "electricity"},
	{"mob", "mobile"},
	{"rchg", "recharge"},
	{"recharg", "recharge"},
	{"edu", "education"},
	{"med", "medical"},
	{"hosp", "hospital"},
	{"petr", "petrol"},
	{"grocr", "grocery"},
	{"restr", "restaurant"},
	{"invst", "investment"},
	{"mf", "mutual fund"},
	{"sip", "sip"},
	{"fd", "fixed deposit"},
	{"rd", "recurring deposit"},
	{"cc", "credit card"},
	{"dc", "debit card"},
	{"atm", "atm"},
	{"emi", "emi"},
}

// financialSuffixes are fragments split off the tail of concatenated tokens
// ("housingemi" -> "housing emi").
var financialSuffixes = []string{
	"emi", "upi", "neft", "imps", "rtgs", "bill", "loan", "card", "recharge",
}

func init() {
	sort.SliceStable(abbreviationsByLength, func(i, j int) bool {
		return len(abbreviationsByLength[i].short) > len(abbreviationsByLength[j].short)
	})
	sort.SliceStable(financialSuffixes, func(i, j int) bool {
		return len(financialSuffixes[i]) > len(financialSuffixes[j])
	})
}
