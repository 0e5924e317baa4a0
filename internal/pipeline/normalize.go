package pipeline

import "regexp"

var (
	rePhone      = regexp.MustCompile(`\b(\d{3})-(\d{3})-(\d{4})\b`)
	reSpacePunct = regexp.MustCompile(` +([.,!?;:])`)
	reRunOn      = regexp.MustCompile(`([.!?])([A-Z])`)
	reParenGlue  = regexp.MustCompile(`\)([A-Za-z0-9])`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
)

// NormalizeText repairs the usual artifacts of copy-pasted donor text:
// bare phone numbers, stray spaces before punctuation, missing spaces after
// sentence ends and closing parens, and runs of spaces. The fixes apply in
// that order. Newlines pass through untouched so paragraph breaks survive
// into HTML formatting.
func NormalizeText(s string) string {
	s = rePhone.ReplaceAllString(s, "($1) $2-$3")
	s = reSpacePunct.ReplaceAllString(s, "$1")
	s = reRunOn.ReplaceAllString(s, "$1 $2")
	s = reParenGlue.ReplaceAllString(s, ") $1")
	s = reMultiSpace.ReplaceAllString(s, " ")
	return s
}
