// Package normalize canonicalizes free-text bank transaction descriptions
// into short, comparable token sequences. Every function here is a pure
// string transform: total, deterministic, and safe on empty input.
package normalize

import (
	"regexp"
	"strings"
)

const (
	maxTokens      = 6
	minTokenLength = 2
	// Suffix splits only fire when the remaining prefix keeps this many
	// characters, so "upi" never splits out of "cupid".
	minSplitPrefix = 3
)

var (
	vpaHandleRe = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9._-]*@[a-z]{2,}\b`)
	refRe       = regexp.MustCompile(`(?i)\b(?:ref|refno|txn|txnid|txnref|utr|rrn)[\s:./-]*[a-z0-9]*\d+[a-z0-9]*\b`)
	dateRe      = regexp.MustCompile(`(?i)\b\d{1,2}[-/.](?:\d{1,2}|jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[-/.]\d{2,4}\b`)
	timeRe      = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?::\d{2})?\s*(?:am|pm)?\b`)
	amountRe    = regexp.MustCompile(`(?i)(?:\binr|\brs\.?|₹)\s*\d+(?:[.,]\d+)*\b`)
	accountRe   = regexp.MustCompile(`(?i)\b(?:a/c|acct|account)\s*(?:no\.?)?\s*[x*]*\d+\b|\b[x*]{2,}\d{2,}\b`)
	longNumRe   = regexp.MustCompile(`\b\d{6,}\b`)
	caseSplitRe = regexp.MustCompile(`([a-z])([A-Z])`)
	punctRe     = regexp.MustCompile(`[^\pL\pN\s-]+`)
	spaceRe     = regexp.MustCompile(`\s+`)
	digitsRe    = regexp.MustCompile(`^\d+$`)
)

// Bank noise tokens that carry no categorization signal.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "from": {}, "to": {}, "of": {},
	"at": {}, "on": {}, "in": {}, "by": {}, "via": {}, "thru": {},
	"pos": {}, "ecom": {}, "ach": {}, "vps": {}, "info": {}, "mmt": {},
	"pvt": {}, "ltd": {}, "llp": {}, "inc": {},
}

// Description normalizes a raw transaction description: strips payment
// handles, reference ids, dates, times, amounts and account fragments; splits
// concatenated words; expands financial abbreviations; canonicalizes known
// merchants; and returns at most six lower-case tokens of two or more
// characters. Blank input yields an empty string.
func Description(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	// Merchant detection runs before handle stripping so names embedded in
	// payment handles ("zomato@paytm") survive.
	merchant := detectMerchant(strings.ToLower(s))

	s = vpaHandleRe.ReplaceAllString(s, " ")
	s = refRe.ReplaceAllString(s, " ")
	s = dateRe.ReplaceAllString(s, " ")
	s = timeRe.ReplaceAllString(s, " ")
	s = amountRe.ReplaceAllString(s, " ")
	s = accountRe.ReplaceAllString(s, " ")
	s = longNumRe.ReplaceAllString(s, " ")

	// Case-boundary split before lower-casing loses the boundary.
	s = caseSplitRe.ReplaceAllString(s, "$1 $2")
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.ToLower(strings.TrimSpace(s))

	tokens := strings.Fields(s)
	tokens = splitConcatenated(tokens)
	tokens = expandAbbreviations(tokens)

	// With a recognized merchant the output is the canonical name plus at
	// most 3 remaining meaningful tokens; otherwise up to maxTokens.
	out := make([]string, 0, maxTokens)
	budget := maxTokens
	if merchant != "" {
		out = append(out, strings.Fields(merchant)...)
		budget = 3
	}

	kept := 0
	for _, tok := range tokens {
		if kept >= budget {
			break
		}
		if !meaningful(tok) {
			continue
		}
		if merchant != "" && merchantCovers(merchant, tok) {
			continue
		}
		out = append(out, tok)
		kept++
	}

	if len(out) > maxTokens {
		out = out[:maxTokens]
	}
	return strings.Join(out, " ")
}

// MeaningfulTokens returns the non-stopword, non-numeric tokens of an
// already normalized string.
func MeaningfulTokens(normalized string) []string {
	var out []string
	for _, tok := range strings.Fields(normalized) {
		if meaningful(tok) {
			out = append(out, tok)
		}
	}
	return out
}

func meaningful(tok string) bool {
	if len(tok) < minTokenLength {
		return false
	}
	if digitsRe.MatchString(tok) {
		return false
	}
	_, stop := stopwords[tok]
	return !stop
}

// splitConcatenated breaks run-together tokens using the brand dictionary
// first, then known financial-abbreviation suffixes.
func splitConcatenated(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, splitToken(tok)...)
	}
	return out
}

func splitToken(tok string) []string {
	if len(tok) < minSplitPrefix+minTokenLength {
		return []string{tok}
	}

	for _, brand := range brandDictionary {
		if tok == brand {
			break
		}
		if strings.HasPrefix(tok, brand) && len(tok)-len(brand) >= minTokenLength {
			return append([]string{brand}, splitToken(tok[len(brand):])...)
		}
		if strings.HasSuffix(tok, brand) && len(tok)-len(brand) >= minTokenLength {
			return append(splitToken(tok[:len(tok)-len(brand)]), brand)
		}
	}

	for _, suffix := range financialSuffixes {
		if strings.HasSuffix(tok, suffix) && len(tok)-len(suffix) >= minSplitPrefix {
			return append(splitToken(tok[:len(tok)-len(suffix)]), suffix)
		}
	}

	return []string{tok}
}

// expandAbbreviations replaces known financial abbreviations with canonical
// terms, longest abbreviation first so "pymt" wins over "pmt".
func expandAbbreviations(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		expanded := tok
		for _, abbr := range abbreviationsByLength {
			if tok == abbr.short {
				expanded = abbr.full
				break
			}
		}
		// Expansions like "mutual fund" contribute two tokens.
		out = append(out, strings.Fields(expanded)...)
	}
	return out
}

func merchantCovers(merchant, tok string) bool {
	for _, part := range strings.Fields(merchant) {
		if part == tok {
			return true
		}
	}
	return false
}
