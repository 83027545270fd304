package rules

import (
	"sort"
	"strings"

	"call-screener/internal/models"
)

// Matcher resolves a number against a fixed set of prefix rules.
// The longest pattern wins regardless of match type.
type Matcher struct {
	rules []models.PrefixRule
}

// NewMatcher orders rules by descending pattern length, then earlier AddedAt, then ID
func NewMatcher(rules []models.PrefixRule) *Matcher {
	sorted := make([]models.PrefixRule, len(rules))
	copy(sorted, rules)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if len(a.Pattern) != len(b.Pattern) {
			return len(a.Pattern) > len(b.Pattern)
		}
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	return &Matcher{rules: sorted}
}

// FindMatch returns the winning rule for e164, or nil to continue screening
func (m *Matcher) FindMatch(e164 string) *models.PrefixRule {
	if e164 == "" {
		return nil
	}
	for i := range m.rules {
		if matches(&m.rules[i], e164) {
			r := m.rules[i]
			return &r
		}
	}
	return nil
}

// Len returns the number of rules
func (m *Matcher) Len() int {
	return len(m.rules)
}

func matches(rule *models.PrefixRule, e164 string) bool {
	switch rule.MatchType {
	case models.MatchPrefix:
		return strings.HasPrefix(e164, rule.Pattern)
	case models.MatchSuffix:
		return strings.HasSuffix(e164, rule.Pattern)
	case models.MatchContains:
		return strings.Contains(e164, rule.Pattern)
	}
	return false
}
