// Package fields maps first-page text onto policy fields using named patterns.
package fields

import (
	"log/slog"
)

// Fields are the extracted values; nil means the pattern found no match.
type Fields struct {
	PolicyNumber *string `json:"policyNumber"`
	IssuedDate   *string `json:"issuedDate"`
}

// Result carries the paragraph the rules were applied to alongside the values.
type Result struct {
	Paragraph string
	Fields    Fields
}

// Matcher applies rules in declaration order. For each field the first rule
// that matches wins; later rules for the same field are not evaluated.
type Matcher struct {
	rules  []Rule
	logger *slog.Logger
}

func NewMatcher(rules []Rule, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return &Matcher{rules: rules, logger: logger}
}

// Extract builds the paragraph from tokens and matches it.
func (m *Matcher) Extract(tokens []string) Result {
	paragraph := BuildParagraph(tokens)
	return Result{Paragraph: paragraph, Fields: m.MatchParagraph(paragraph)}
}

// MatchParagraph returns the values found in an already normalized paragraph.
func (m *Matcher) MatchParagraph(paragraph string) Fields {
	values := m.Match(paragraph)
	var out Fields
	if v, ok := values[PolicyNumber]; ok {
		out.PolicyNumber = &v
	}
	if v, ok := values[IssuedDate]; ok {
		out.IssuedDate = &v
	}
	return out
}

// Match evaluates every rule and returns the value per field name.
func (m *Matcher) Match(text string) map[string]string {
	values := make(map[string]string, len(m.rules))
	for _, r := range m.rules {
		if _, done := values[r.Field]; done {
			continue
		}
		sub := r.Pattern.FindStringSubmatch(text)
		if sub == nil || r.Group >= len(sub) {
			continue
		}
		values[r.Field] = sub[r.Group]
	}
	m.logger.Debug("fields.match", "matched", len(values), "rules", len(m.rules))
	return values
}

// Missing lists the fields of f that are nil.
func (f Fields) Missing() []string {
	var out []string
	if f.PolicyNumber == nil {
		out = append(out, PolicyNumber)
	}
	if f.IssuedDate == nil {
		out = append(out, IssuedDate)
	}
	return out
}
