// Package transfer detects self-transfers, wallet top-ups and peer-to-peer
// transfers ahead of general category matching. Sub-classifiers run in strict
// priority order: self, wallet, peer-to-peer, generic bank transfer.
package transfer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/arthaledger/artha/internal/model"
	"github.com/arthaledger/artha/internal/normalize"
)

// Confidence levels per sub-classifier.
const (
	confidenceSelf        = 0.95
	confidenceWallet      = 0.90
	confidenceP2PHandle   = 0.90
	confidenceP2PName     = 0.85
	confidenceGenericBank = 0.70
)

var (
	handleRe = regexp.MustCompile(`\b([a-zA-Z0-9][a-zA-Z0-9._-]*)@([a-z]{2,})\b`)

	selfPatterns = []string{
		"self transfer", "self trf", "to self", "own account", "own acct",
		"own a/c", "credit card payment", "credit card bill", "cc payment",
		"cc bill", "card bill payment", "billdesk cc",
	}

	walletNames = []string{
		"paytm", "phonepe", "amazon pay", "amazonpay", "mobikwik",
		"freecharge", "airtel money", "ola money", "jio money",
	}
	walletLoadPhrases = []string{
		"wallet load", "wallet topup", "wallet top-up", "wallet top up",
		"load wallet", "topup", "top-up", "top up", "add money",
		"added to wallet", "money added", "wallet recharge",
	}

	bankMarkersRe = regexp.MustCompile(`(?i)\b(neft|rtgs|imps|upi)\b`)

	transferKeywords = []string{
		"transfer", "trf", "trfr", "tfr", "sent to", "received from",
		"fund trf", "funds transfer",
	}

	upiNameRe  = regexp.MustCompile(`(?i)\bupi/([a-z][a-z .]{2,40}?)/`)
	impsNameRe = regexp.MustCompile(`(?i)\bimps[/-]([a-z][a-z .]{2,40}?)[/-]`)
	neftToRe   = regexp.MustCompile(`(?i)\b(?:neft|rtgs|imps)\b[^a-z]*(?:to|from)\s+([a-z][a-z .]{2,40})`)
	// Two capitalized words; bank vocabulary is filtered afterwards.
	capsNameRe = regexp.MustCompile(`\b([A-Z][A-Za-z]{1,19}) ([A-Z][A-Za-z]{1,19})\b`)

	businessSuffixes = []string{
		"pvt", "ltd", "llp", "inc", "corp", "limited", "technologies",
		"technology", "solutions", "services", "enterprises", "traders",
		"stores", "industries", "bank", "finance", "fintech", "private",
	}

	// Uppercase statement vocabulary that must never be read as a person's
	// name by the generic capitalized-words pattern.
	bankVocabulary = map[string]struct{}{
		"neft": {}, "rtgs": {}, "imps": {}, "upi": {}, "ach": {},
		"credit": {}, "debit": {}, "salary": {}, "transfer": {},
		"payment": {}, "bank": {}, "branch": {}, "cash": {}, "cheque": {},
		"interest": {}, "dividend": {}, "refund": {}, "reversal": {},
		"charge": {}, "charges": {}, "wallet": {}, "card": {},
	}
)

// Classifier recognizes transfer-kind transactions. It is stateless and safe
// for concurrent use.
type Classifier struct{}

// NewClassifier creates a transfer classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns a transfer result for the transaction, or nil when the
// description does not look like a transfer at all. Never returns an error;
// no-match is a normal outcome.
func (c *Classifier) Classify(txn *model.Transaction) *model.Result {
	desc := txn.Description
	lowered := strings.ToLower(desc)

	if !looksLikeTransfer(lowered) {
		return nil
	}

	if res := c.classifySelf(lowered); res != nil {
		return res
	}
	if res := c.classifyWallet(lowered); res != nil {
		return res
	}
	if res := c.classifyP2P(desc, lowered); res != nil {
		return res
	}
	return c.classifyGenericBank(lowered)
}

// looksLikeTransfer is the cheap gate: anything without a transfer keyword,
// wallet keyword, bank rail marker or payment handle falls through to the
// generic rule engine untouched.
func looksLikeTransfer(lowered string) bool {
	for _, kw := range transferKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	for _, p := range selfPatterns {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	for _, w := range walletNames {
		if strings.Contains(lowered, w) {
			return true
		}
	}
	if bankMarkersRe.MatchString(lowered) {
		return true
	}
	return handleRe.MatchString(lowered)
}

func (c *Classifier) classifySelf(lowered string) *model.Result {
	for _, p := range selfPatterns {
		if strings.Contains(lowered, p) {
			return &model.Result{
				Kind:        model.KindTransferSelf,
				Confidence:  confidenceSelf,
				Method:      model.MethodTransfer,
				Explanation: fmt.Sprintf("self-transfer marker %q", p),
			}
		}
	}
	return nil
}

func (c *Classifier) classifyWallet(lowered string) *model.Result {
	var wallet string
	for _, w := range walletNames {
		if strings.Contains(lowered, w) {
			wallet = w
			break
		}
	}
	if wallet == "" {
		return nil
	}
	for _, phrase := range walletLoadPhrases {
		if strings.Contains(lowered, phrase) {
			return &model.Result{
				Kind:        model.KindTransferWallet,
				Confidence:  confidenceWallet,
				Method:      model.MethodTransfer,
				Explanation: fmt.Sprintf("wallet top-up to %s", wallet),
			}
		}
	}
	return nil
}

func (c *Classifier) classifyP2P(desc, lowered string) *model.Result {
	if m := handleRe.FindStringSubmatch(desc); m != nil {
		handle := strings.ToLower(m[1])
		if !isBusinessRecipient(handle) {
			return &model.Result{
				Kind:        model.KindTransferP2P,
				Confidence:  confidenceP2PHandle,
				Method:      model.MethodTransfer,
				Explanation: fmt.Sprintf("peer payment handle %s@%s", handle, m[2]),
			}
		}
	}

	// Name-based detection needs a bank rail marker present.
	if !bankMarkersRe.MatchString(lowered) {
		return nil
	}
	if name := extractRecipientName(desc); name != "" {
		return &model.Result{
			Kind:        model.KindTransferP2P,
			Confidence:  confidenceP2PName,
			Method:      model.MethodTransfer,
			Explanation: fmt.Sprintf("bank transfer to %s", name),
		}
	}
	return nil
}

// classifyGenericBank handles a rail marker with no extractable recipient.
// It requires an explicit transfer keyword so that rail-tagged income lines
// ("NEFT CREDIT SALARY ...") still reach the keyword rules.
func (c *Classifier) classifyGenericBank(lowered string) *model.Result {
	if !bankMarkersRe.MatchString(lowered) {
		return nil
	}
	for _, kw := range transferKeywords {
		if strings.Contains(lowered, kw) {
			return &model.Result{
				Kind:        model.KindTransferP2P,
				Confidence:  confidenceGenericBank,
				Method:      model.MethodTransfer,
				Explanation: "bank transfer with no extractable recipient",
			}
		}
	}
	return nil
}

// extractRecipientName pulls a human name out of format-specific fragments,
// rejecting anything that looks like a business or known merchant.
func extractRecipientName(desc string) string {
	for _, re := range []*regexp.Regexp{upiNameRe, impsNameRe, neftToRe} {
		if m := re.FindStringSubmatch(desc); m != nil {
			name := strings.TrimSpace(m[1])
			if name != "" && !isBusinessRecipient(name) {
				return name
			}
		}
	}

	for _, m := range capsNameRe.FindAllStringSubmatch(desc, -1) {
		first, second := strings.ToLower(m[1]), strings.ToLower(m[2])
		if _, ok := bankVocabulary[first]; ok {
			continue
		}
		if _, ok := bankVocabulary[second]; ok {
			continue
		}
		name := m[1] + " " + m[2]
		if !isBusinessRecipient(name) {
			return name
		}
	}
	return ""
}

func isBusinessRecipient(name string) bool {
	lowered := strings.ToLower(name)
	if normalize.KnownMerchantFragment(lowered) {
		return true
	}
	for _, tok := range strings.FieldsFunc(lowered, func(r rune) bool {
		return r == ' ' || r == '.' || r == '-' || r == '_'
	}) {
		for _, suffix := range businessSuffixes {
			if tok == suffix {
				return true
			}
		}
	}
	return false
}
