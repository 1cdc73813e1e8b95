package normalize

import (
	"sort"
	"strings"
)

// merchantAliases maps description fragments to canonical merchant names.
// Fragments are matched against the lower-cased raw description, including
// payment-handle text, longest fragment first.
var merchantAliases = map[string]string{
	// Food & delivery
	"zomato":     "zomato",
	"swiggy":     "swiggy",
	"dominos":    "dominos",
	"domino's":   "dominos",
	"mcdonald":   "mcdonalds",
	"kfc":        "kfc",
	"starbucks":  "starbucks",
	"haldiram":   "haldirams",
	"barbeque":   "barbeque nation",
	"eatfit":     "eatfit",
	"freshmenu":  "freshmenu",
	"box8":       "box8",
	"faasos":     "faasos",
	"pizzahut":   "pizza hut",
	"burgerking": "burger king",

	// Groceries & quick commerce
	"bigbasket": "bigbasket",
	"blinkit":   "blinkit",
	"grofers":   "blinkit",
	"zepto":     "zepto",
	"jiomart":   "jiomart",
	"dmart":     "dmart",
	"instamart": "instamart",
	"milkbasket": "milkbasket",

	// Shopping
	"amazon":   "amazon",
	"amzn":     "amazon",
	"flipkart": "flipkart",
	"fkrt":     "flipkart",
	"myntra":   "myntra",
	"ajio":     "ajio",
	"nykaa":    "nykaa",
	"meesho":   "meesho",
	"snapdeal": "snapdeal",
	"decathlon": "decathlon",
	"croma":    "croma",
	"ikea":     "ikea",

	// Transport & travel
	"uber":       "uber",
	"olacabs":    "ola",
	"olamoney":   "ola",
	"rapido":     "rapido",
	"irctc":      "irctc",
	"makemytrip": "makemytrip",
	"goibibo":    "goibibo",
	"redbus":     "redbus",
	"cleartrip":  "cleartrip",
	"indigo":     "indigo",
	"spicejet":   "spicejet",
	"vistara":    "vistara",

	// Entertainment & subscriptions
	"netflix":    "netflix",
	"spotify":    "spotify",
	"hotstar":    "hotstar",
	"bookmyshow": "bookmyshow",
	"sonyliv":    "sonyliv",
	"audible":    "audible",
	"youtube":    "youtube",
	"prime video": "amazon prime",

	// Utilities & telecom
	"airtel":   "airtel",
	"jio":      "jio",
	"vodafone": "vodafone",
	"bsnl":     "bsnl",
	"tatasky":  "tata play",
	"tataplay": "tata play",

	// Investment & finance
	"zerodha":  "zerodha",
	"groww":    "groww",
	"upstox":   "upstox",
	"etmoney":  "etmoney",
	"smallcase": "smallcase",
	"indmoney": "indmoney",
	"policybazaar": "policybazaar",

	// Health & fitness
	"pharmeasy": "pharmeasy",
	"netmeds":   "netmeds",
	"1mg":       "1mg",
	"apollo":    "apollo pharmacy",
	"cultfit":   "cult fit",
	"practo":    "practo",

	// Fuel
	"iocl": "indian oil",
	"hpcl": "hp petrol",
	"bpcl": "bharat petroleum",
}

// brandDictionary holds brand names used for boundary-splitting concatenated
// tokens ("zomatoorder" -> "zomato order"), longest first.
var brandDictionary []string

// aliasFragmentsByLength holds merchant fragments longest first so
// "bigbasket" matches before "big".
var aliasFragmentsByLength []string

func init() {
	seen := map[string]struct{}{}
	for fragment := range merchantAliases {
		aliasFragmentsByLength = append(aliasFragmentsByLength, fragment)
		if !strings.ContainsAny(fragment, " '") {
			if _, ok := seen[fragment]; !ok {
				seen[fragment] = struct{}{}
				brandDictionary = append(brandDictionary, fragment)
			}
		}
	}
	sort.Slice(aliasFragmentsByLength, func(i, j int) bool {
		if len(aliasFragmentsByLength[i]) != len(aliasFragmentsByLength[j]) {
			return len(aliasFragmentsByLength[i]) > len(aliasFragmentsByLength[j])
		}
		return aliasFragmentsByLength[i] < aliasFragmentsByLength[j]
	})
	sort.Slice(brandDictionary, func(i, j int) bool {
		if len(brandDictionary[i]) != len(brandDictionary[j]) {
			return len(brandDictionary[i]) > len(brandDictionary[j])
		}
		return brandDictionary[i] < brandDictionary[j]
	})
}

// detectMerchant returns the canonical merchant name for the first known
// fragment found in the lower-cased description, or empty.
func detectMerchant(lowered string) string {
	for _, fragment := range aliasFragmentsByLength {
		if strings.Contains(lowered, fragment) {
			return merchantAliases[fragment]
		}
	}
	return ""
}

// KnownMerchantFragment reports whether the text contains a known merchant
// fragment. The transfer classifier uses this to reject merchant handles as
// peer-to-peer recipients.
func KnownMerchantFragment(text string) bool {
	return detectMerchant(strings.ToLower(text)) != ""
}
