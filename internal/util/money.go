package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	moneyToken    = regexp.MustCompile(`-?\d{1,3}(?:[\s.,]\d{3})+|-?\d+(?:[.,]\d+)?`)
	dotThousands  = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+$`)
	commThousands = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+$`)
)

// ParseMoney reads a dollar amount from a raw spreadsheet cell such as
// "$1,250", "1250.00" or "$ 1 250". Cents are truncated. Negative and
// unparsable values coerce to zero so a bad cell can never abort a run.
func ParseMoney(input string) int {
	s := strings.ReplaceAll(input, " ", " ")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	token := moneyToken.FindString(s)
	if token == "" {
		return 0
	}

	parsed, err := strconv.ParseFloat(normalizeNumericToken(token), 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return int(parsed)
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(strings.TrimSpace(token), " ", "")
	if dotThousands.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if commThousands.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return strings.ReplaceAll(compact, ",", "")
}
