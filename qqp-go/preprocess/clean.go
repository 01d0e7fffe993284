// Package preprocess normalizes the raw question tables and derives the
// label, id and index vectors the model reads.
package preprocess

import (
	"strings"

	"github.com/qqpair/qqpair/qqp-golib/text"
)

// cleanRules are applied in order to lowercased text.
var cleanRules = []struct {
	old string
	new string
}{
	{"what's ", "what is "},
	{"'ve ", " have "},
	{"can't ", "cannot "},
	{"n't ", " not "},
	{"i'm ", "i am "},
	{"'re ", " are "},
	{"'d ", " would "},
	{"'ll ", " will "},
	{" 60k ", " 60000 "},
}

// CleanText expands common contractions in lowercased text.
func CleanText(s string) string {
	for _, r := range cleanRules {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	return s
}

// Normalize lowercases, cleans, tokenizes and stems a question, joining
// the stems with single spaces.
func Normalize(s string) string {
	ts := text.Tokenize(CleanText(strings.ToLower(s)))
	return strings.Join(text.Stem(ts), " ")
}
