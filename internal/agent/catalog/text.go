package catalog

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "for": {}, "to": {},
	"in": {}, "on": {}, "with": {}, "some": {}, "any": {}, "me": {}, "i": {}, "you": {},
	"do": {}, "we": {}, "is": {}, "are": {}, "please": {}, "want": {}, "need": {},
	"like": {}, "would": {}, "can": {}, "get": {}, "have": {}, "has": {}, "got": {},
	"my": {}, "your": {}, "what": {}, "which": {}, "there": {}, "it": {},
	"lb": {}, "lbs": {}, "oz": {}, "kg": {}, "g": {}, "ml": {}, "l": {},
}

// listingWords mark a request for a general overview rather than a product.
var listingWords = map[string]struct{}{
	"available": {}, "present": {}, "show": {}, "list": {}, "items": {}, "item": {},
	"products": {}, "product": {}, "everything": {}, "all": {}, "stock": {}, "sell": {},
}

// tokenize lowercases s and splits it on anything that is not a letter or a
// digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// terms drops stopwords and measure tokens such as "5kg" or "7".
func terms(s string) []string {
	out := make([]string, 0, 8)
	for _, t := range tokenize(s) {
		if _, stop := stopwords[t]; stop || hasDigit(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// levenshtein is the edit distance between a and b, counted in runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return len(rb)
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}

// levenshteinSimilarity maps edit distance to 0..1, 1 meaning identical.
func levenshteinSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(max(la, lb))
}

const (
	prefixScore   = 0.9
	minPrefixLen  = 3
	minFuzzyLen   = 4
	fuzzyMinScore = 0.75
)

// tokenSimilarity scores how well query token q matches catalog token t.
func tokenSimilarity(q, t string) float64 {
	if q == t {
		return 1
	}
	short, long := q, t
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) >= minPrefixLen && strings.HasPrefix(long, short) {
		return prefixScore
	}
	if len(short) < minFuzzyLen {
		return 0
	}
	if s := levenshteinSimilarity(q, t); s >= fuzzyMinScore {
		return s
	}
	return 0
}
