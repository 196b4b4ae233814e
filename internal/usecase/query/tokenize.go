package query

import (
	"strings"
	"unicode"

	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
)

// tokenize splits raw on whitespace and derives normalized, filtered and
// stemmed views plus POS tags and n-grams over the filtered tokens.
func tokenize(raw string) dq.Tokens {
	fields := strings.Fields(raw)
	out := dq.Tokens{
		Raw:        fields,
		Normalized: make([]string, 0, len(fields)),
		Tagged:     make([]dq.Token, 0, len(fields)),
	}

	for i, f := range fields {
		norm := cleanToken(f)
		if norm == "" {
			continue
		}
		_, stop := stopWords[norm]
		tok := dq.Token{
			Raw:        f,
			Normalized: norm,
			Stem:       stem(norm),
			POS:        tagPOS(norm),
			Position:   i,
			Stop:       stop,
		}
		out.Normalized = append(out.Normalized, norm)
		out.Tagged = append(out.Tagged, tok)
		if !stop {
			out.Filtered = append(out.Filtered, norm)
			out.Stemmed = append(out.Stemmed, tok.Stem)
		}
	}

	out.Bigrams = ngrams(out.Filtered, 2)
	out.Trigrams = ngrams(out.Filtered, 3)
	return out
}

// cleanToken lower-cases w and strips non-word runes, keeping hyphens and
// apostrophes between letters and decimal points between digits.
func cleanToken(w string) string {
	rs := []rune(strings.ToLower(w))
	var b strings.Builder
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case r == '-' || r == '\'':
			if i > 0 && i < len(rs)-1 && isWordRune(rs[i-1]) && isWordRune(rs[i+1]) {
				b.WriteRune(r)
			}
		case r == '.':
			if i > 0 && i < len(rs)-1 && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1]) {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// stem strips the first matching suffix, keeping at least minStemLength runes.
func stem(w string) string {
	for _, rule := range stemRules {
		if !strings.HasSuffix(w, rule.suffix) {
			continue
		}
		base := w[:len(w)-len(rule.suffix)]
		if len(base) < minStemLength {
			return w
		}
		// "ss" and "us" endings are not plurals.
		if rule.suffix == "s" && (strings.HasSuffix(w, "ss") || strings.HasSuffix(w, "us") || strings.HasSuffix(w, "is")) {
			return w
		}
		return base + rule.replacement
	}
	return w
}

func tagPOS(w string) dq.POS {
	for _, rule := range posRules {
		if rule.re.MatchString(w) {
			return rule.tag
		}
	}
	return dq.POSNoun
}

func ngrams(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}
