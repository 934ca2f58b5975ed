package services

import (
	"strings"
	"unicode"
)

// MatchKeyword reports which keyword, if any, the whole message body is.
// Comparison ignores case, accents, surrounding punctuation and repeated
// spaces, so "  stop. " and "No más" match "STOP" and "NO MAS".
func MatchKeyword(body string, keywords []string) (string, bool) {
	b := Fold(strings.TrimFunc(body, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
	if b == "" {
		return "", false
	}
	for _, k := range keywords {
		if Fold(k) == b {
			return k, true
		}
	}
	return "", false
}
