package query

import (
	"regexp"
	"strings"
	"unicode"
)

var possessiveRe = regexp.MustCompile(`'s\b`)

// Normalize lower-cases text, expands contractions and abbreviations on word
// boundaries, strips punctuation other than hyphens and decimal points, and
// collapses whitespace. It is pure and cheap enough to derive cache keys.
func Normalize(text string) string {
	s := strings.ToLower(text)
	s = contractionRe.ReplaceAllStringFunc(s, func(m string) string { return contractions[m] })
	s = possessiveRe.ReplaceAllString(s, "")
	s = stripPunctuation(s)
	s = abbreviationRe.ReplaceAllStringFunc(s, func(m string) string { return abbreviations[m] })
	return strings.Join(strings.Fields(s), " ")
}

func stripPunctuation(s string) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' || r == '_':
			b.WriteRune(r)
		case r == '.' && i > 0 && i < len(rs)-1 && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1]):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// IsStopWord reports whether w, lower-cased, is a stop word.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
