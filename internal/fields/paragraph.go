package fields

import (
	"regexp"
	"strings"
)

// reWhitespace matches runs of ASCII and Unicode spacing, including the
// no-break and zero-width spaces PDF text layers commonly carry.
var reWhitespace = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)

// BuildParagraph joins tokens with single spaces, collapses every whitespace
// run to one space and trims the ends. Applying it to its own output is a no-op.
func BuildParagraph(tokens []string) string {
	return Normalize(strings.Join(tokens, " "))
}

// Normalize collapses whitespace runs to a single space and trims.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
