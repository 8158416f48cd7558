package lexical

import (
	"unicode"
)

// trigrams extracts the trigram set the way pg_trgm does: text is lower-cased,
// split into alphanumeric words, and every word is padded with two leading
// blanks and one trailing blank before trigrams are taken.
func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	word := make([]rune, 0, 32)
	flush := func() {
		if len(word) == 0 {
			return
		}
		padded := make([]rune, 0, len(word)+3)
		padded = append(padded, ' ', ' ')
		padded = append(padded, word...)
		padded = append(padded, ' ')
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
		word = word[:0]
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word = append(word, unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return set
}

// Similarity mirrors pg_trgm's similarity(): shared trigrams over the size of
// the union of both trigram sets. Empty input on either side scores 0.
func Similarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}
