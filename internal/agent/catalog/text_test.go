package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"milk", "bikis", "minis", "wafflez"}, terms("Milk Bikis Minis Wafflez 7 oz"))
	assert.Equal(t, []string{"rice"}, terms("I want some rice, 5kg please"))
	assert.Empty(t, terms("   "))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("rice", "rice"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 4, levenshtein("", "rice"))
	assert.Equal(t, 1, levenshtein("kétchup", "ketchup"))
	assert.InDelta(t, 1.0, levenshteinSimilarity("", ""), 1e-9)
}

func TestTokenSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, tokenSimilarity("rice", "rice"))
	assert.Equal(t, prefixScore, tokenSimilarity("bisc", "biscuits"))
	assert.Zero(t, tokenSimilarity("ri", "rice"), "prefixes shorter than three letters do not count")
	assert.InDelta(t, 6.0/7.0, tokenSimilarity("ketchap", "ketchup"), 1e-9)
	assert.Zero(t, tokenSimilarity("bikis", "minis"))
	assert.Zero(t, tokenSimilarity("tea", "pea"), "short tokens are not fuzzy matched")
}
