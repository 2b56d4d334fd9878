package fields

import "regexp"

// Field names, also used as JSON keys and metric labels.
const (
	PolicyNumber = "policyNumber"
	IssuedDate   = "issuedDate"
)

// Rule maps a pattern to a named field. Group selects the capture group
// holding the value; 0 means the whole match.
type Rule struct {
	Field   string
	Pattern *regexp.Regexp
	Group   int
}

// DefaultRules are the label conventions of the policy certificates we scrape.
//
// The policy number is taken from the digit run after the label, so a colon
// between label and value is optional. The issued date is the first
// D/M/YYYY-shaped substring anywhere on the page, with no label anchoring.
func DefaultRules() []Rule {
	return []Rule{
		{Field: PolicyNumber, Pattern: regexp.MustCompile(`Policy Number[:\s]*(\d{15,})`), Group: 1},
		{Field: IssuedDate, Pattern: regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)},
	}
}
