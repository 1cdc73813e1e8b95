package rules

import (
	"regexp"
	"strings"
)

// Keyword weights: phrases are stronger evidence than single words.
const (
	singleWordWeight = 2
	multiWordWeight  = 3
)

// systemKeywordTable maps category slugs to their keyword lists. Order is
// fixed so tie-breaking between equally scored categories is deterministic.
var systemKeywordTable = []struct {
	category string
	keywords []string
}{
	{"food", []string{
		"zomato", "swiggy", "restaurant", "cafe", "pizza", "dominos",
		"mcdonalds", "kfc", "biryani", "eatery", "dhaba",
		"food delivery", "fine dining",
	}},
	{"groceries", []string{
		"bigbasket", "blinkit", "zepto", "dmart", "grocery", "supermarket",
		"kirana", "jiomart", "instamart", "vegetables",
	}},
	{"shopping", []string{
		"amazon", "flipkart", "myntra", "ajio", "nykaa", "meesho", "mall",
		"apparel", "footwear", "online shopping",
	}},
	{"transport", []string{
		"uber", "rapido", "metro", "cab", "taxi", "parking", "toll",
		"fastag", "ola cabs", "auto fare",
	}},
	{"fuel", []string{
		"petrol", "diesel", "fuel", "hpcl", "bpcl",
		"indian oil", "petrol pump",
	}},
	{"travel", []string{
		"irctc", "makemytrip", "goibibo", "redbus", "flight", "hotel",
		"airline", "indigo", "vistara", "airbnb", "oyo", "train ticket",
	}},
	{"entertainment", []string{
		"netflix", "spotify", "hotstar", "bookmyshow", "cinema", "movie",
		"concert", "gaming", "sonyliv", "prime video",
	}},
	{"utilities", []string{
		"electricity", "broadband", "wifi", "recharge", "dth", "postpaid",
		"electricity bill", "water bill", "gas bill", "mobile recharge",
	}},
	{"housing", []string{
		"rent", "landlord", "lease",
		"house rent", "society maintenance",
	}},
	{"health", []string{
		"hospital", "pharmacy", "pharmeasy", "netmeds", "doctor", "clinic",
		"medicine", "diagnostic", "apollo pharmacy",
	}},
	{"education", []string{
		"school", "college", "tuition", "course", "udemy", "coursera",
		"exam", "school fees",
	}},
	{"insurance", []string{
		"insurance", "lic", "policybazaar",
		"policy premium", "insurance premium",
	}},
	{"investment", []string{
		"zerodha", "groww", "upstox", "sip", "shares", "stocks", "etf",
		"nps", "ppf", "mutual fund", "fixed deposit", "recurring deposit",
	}},
	{"emi", []string{
		"emi", "repayment",
		"loan emi", "home loan", "car loan", "personal loan",
	}},
	{"tax", []string{
		"tax", "gst", "tds", "challan",
		"income tax", "advance tax",
	}},
	{"salary", []string{
		"salary", "payroll", "wages", "stipend", "salary credit",
	}},
	{"interest", []string{
		"interest", "interest credit", "fd interest",
	}},
	{"dividend", []string{
		"dividend", "dividend credit",
	}},
	{"refund", []string{
		"refund", "reversal", "cashback",
	}},
	{"fees", []string{
		"penalty",
		"bank charges", "annual fee", "late fee", "processing fee",
		"service charge",
	}},
	{"donation", []string{
		"donation", "charity", "ngo", "relief fund",
	}},
	{"personal-care", []string{
		"salon", "spa", "barber", "gym", "haircut",
	}},
}

// keywordEntry is one precompiled system keyword.
type keywordEntry struct {
	re        *regexp.Regexp
	keyword   string
	category  string
	firstWord string
	weight    int
	multiWord bool
}

// systemKeywords holds every entry in table order.
var systemKeywords []keywordEntry

// keywordIndex is the batch engine's inverted index: exact single-word
// lookup plus first-word -> phrase candidates.
var keywordIndex struct {
	singles map[string][]int // token -> indexes into systemKeywords
	phrases map[string][]int // first word -> indexes into systemKeywords
}

func init() {
	keywordIndex.singles = make(map[string][]int)
	keywordIndex.phrases = make(map[string][]int)

	for _, group := range systemKeywordTable {
		for _, kw := range group.keywords {
			entry := keywordEntry{
				keyword:   kw,
				category:  group.category,
				multiWord: strings.Contains(kw, " "),
				re:        regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`),
			}
			if entry.multiWord {
				entry.weight = multiWordWeight
				entry.firstWord = strings.Fields(kw)[0]
			} else {
				entry.weight = singleWordWeight
				entry.firstWord = kw
			}

			systemKeywords = append(systemKeywords, entry)
			idx := len(systemKeywords) - 1
			if entry.multiWord {
				keywordIndex.phrases[entry.firstWord] = append(keywordIndex.phrases[entry.firstWord], idx)
			} else {
				keywordIndex.singles[kw] = append(keywordIndex.singles[kw], idx)
			}
		}
	}
}

// categoryScore accumulates keyword evidence for one category.
type categoryScore struct {
	score        int
	phraseMatch  bool
	firstOrdinal int // table order of first matching keyword, for ties
}

// confidenceFor converts a category score to a confidence per the system
// rule formula: min(0.95, base + score*0.02), base 0.90 when a phrase
// matched, else 0.75.
func confidenceFor(s categoryScore) float64 {
	base := 0.75
	if s.phraseMatch {
		base = 0.90
	}
	conf := base + float64(s.score)*0.02
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// bestCategory picks the highest-scoring category; ties break on the earlier
// table position so single and batch evaluation agree.
func bestCategory(scores map[string]*categoryScore) (string, *categoryScore) {
	var bestSlug string
	var best *categoryScore
	for slug, s := range scores {
		switch {
		case best == nil,
			s.score > best.score,
			s.score == best.score && s.firstOrdinal < best.firstOrdinal:
			bestSlug, best = slug, s
		}
	}
	return bestSlug, best
}
