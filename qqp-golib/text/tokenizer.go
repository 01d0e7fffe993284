// Package text tokenizes and normalizes question text.
package text

import (
	"strings"
	"unicode"

	porterstemmer "github.com/kiteco/go-porterstemmer"
)

// TokenFunc defines a type of function that takes in an array of tokens and
// returns an array of tokens.
type TokenFunc func(Tokens) Tokens

// Tokens represents a slice of strings
type Tokens []string

// Processor consists of a list of text processing rules.
type Processor struct {
	filters []TokenFunc
}

// ContentProcessor lowercases and drops stop words, keeping repeats.
var ContentProcessor = NewProcessor(Lower, RemoveStopWords)

// StemProcessor lowercases, drops stop words and stems.
var StemProcessor = NewProcessor(Lower, RemoveStopWords, Stem)

// NewProcessor takes a list of TokenFuncs to instantiate a Filter.
func NewProcessor(funcs ...TokenFunc) *Processor {
	f := &Processor{}
	f.filters = append(f.filters, funcs...)
	return f
}

// Apply applies a list of TokenFunc to transform the input tokens
func (f *Processor) Apply(ts Tokens) Tokens {
	for _, fn := range f.filters {
		ts = fn(ts)
	}
	return ts
}

// Fields splits s on whitespace.
func Fields(s string) Tokens {
	return Tokens(strings.Fields(s))
}

// Tokenize splits s into words, treating every punctuation or symbol
// character other than the apostrophe as a separator.
func Tokenize(s string) Tokens {
	return Tokens(strings.FieldsFunc(s, func(r rune) bool {
		if r == '\'' {
			return false
		}
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}

// RemoveStopWords removes stop words from a TokenStream
func RemoveStopWords(ts Tokens) Tokens {
	var filteredTokens Tokens
	for _, t := range ts {
		if !IsStopWord(t) {
			filteredTokens = append(filteredTokens, t)
		}
	}
	return filteredTokens
}

// Lower converts all tokens to lower case
func Lower(ts Tokens) Tokens {
	for i, t := range ts {
		ts[i] = strings.ToLower(t)
	}
	return ts
}

// Stem extracts and returns the stems of each token in the input token stream
func Stem(ts Tokens) Tokens {
	for i, t := range ts {
		ts[i] = porterstemmer.StemString(t)
	}
	return ts
}

// Uniquify returns the set of unique tokens in a token stream
func Uniquify(ts Tokens) Tokens {
	var uniqueTokens Tokens
	seen := make(map[string]struct{})
	for _, t := range ts {
		if _, exists := seen[t]; !exists {
			uniqueTokens = append(uniqueTokens, t)
			seen[t] = struct{}{}
		}
	}
	return uniqueTokens
}

// Set returns the distinct tokens as a set.
func (ts Tokens) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		set[t] = struct{}{}
	}
	return set
}
