package rules

import (
	"regexp"
	"strings"

	"github.com/arthaledger/artha/internal/common"
	"github.com/arthaledger/artha/internal/model"
)

// compiledRule pairs a user rule with its precompiled match pattern. Rules
// whose stored regex fails to compile are skipped at compile time, never at
// match time.
type compiledRule struct {
	re   *regexp.Regexp
	rule model.UserRule
}

func compileRules(userRules []model.UserRule) []compiledRule {
	compiled := make([]compiledRule, 0, len(userRules))
	for _, rule := range userRules {
		if !rule.IsActive {
			continue
		}
		pattern := model.NormalizePattern(rule.Pattern)
		if pattern == "" {
			continue
		}

		var re *regexp.Regexp
		var err error
		switch rule.PatternType {
		case model.PatternRegex:
			re, err = regexp.Compile(pattern)
		case model.PatternKeyword:
			re, err = regexp.Compile(`\b` + regexp.QuoteMeta(pattern) + `\b`)
		case model.PatternExact:
			// Exact match needs no pattern.
		default:
			continue
		}
		if err != nil {
			common.LogError(err, "skipping rule with invalid pattern", common.Fields{
				"rule_id": rule.ID,
				"user_id": rule.UserID,
			})
			continue
		}

		rule.Pattern = pattern
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return compiled
}

// matches tests the rule against the transaction's selected field.
func (c compiledRule) matches(txn *model.Transaction) bool {
	var field string
	switch c.rule.MatchField {
	case model.FieldNormalized:
		field = txn.NormalizedDescription
	default:
		field = strings.ToLower(txn.Description)
	}
	if field == "" {
		return false
	}

	if c.rule.PatternType == model.PatternExact {
		return strings.TrimSpace(field) == c.rule.Pattern
	}
	return c.re.MatchString(field)
}

// bestRuleMatch returns the highest-confidence matching rule, or nil.
func bestRuleMatch(compiled []compiledRule, txn *model.Transaction) *compiledRule {
	var best *compiledRule
	for i := range compiled {
		if !compiled[i].matches(txn) {
			continue
		}
		if best == nil ||
			compiled[i].rule.Confidence > best.rule.Confidence ||
			(compiled[i].rule.Confidence == best.rule.Confidence && compiled[i].rule.Priority > best.rule.Priority) {
			best = &compiled[i]
		}
	}
	return best
}
