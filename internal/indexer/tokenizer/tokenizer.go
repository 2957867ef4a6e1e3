// Package tokenizer turns patent text into index tokens. It lower-cases
// input, splits on non-alphanumeric boundaries, removes stop-words and
// applies a simple suffix-based stemmer.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token is a single normalised term and its word offset in the original
// text. Removed words still advance the offset, so two tokens are adjacent
// only if nothing stood between them.
type Token struct {
	Term     string
	Position int
}

type Tokenizer interface {
	Tokenize(text string) []Token
}

type Stemmer interface {
	Stem(token string) string
}

type StopWords interface {
	IsStopWord(token string) bool
}

// StopList is a fixed stop-word set.
type StopList map[string]struct{}

func (s StopList) IsStopWord(token string) bool {
	_, ok := s[token]
	return ok
}

// DefaultStopWords is the English stop list used for patent text.
var DefaultStopWords = StopList{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
	"said": {}, "wherein": {}, "thereof": {}, "herein": {}, "such": {},
}

// Standard is the tokenizer used for both indexing and queries.
type Standard struct {
	Stemmer   Stemmer
	StopWords StopWords
}

// New returns a Standard tokenizer with the suffix stemmer and the
// default stop list.
func New() *Standard {
	return &Standard{Stemmer: SuffixStemmer{}, StopWords: DefaultStopWords}
}

// Words splits text into lower-cased words without filtering.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Tokenize breaks text into stemmed, lower-cased Tokens with stop-words
// and single characters removed.
func (s *Standard) Tokenize(text string) []Token {
	words := Words(text)
	tokens := make([]Token, 0, len(words)/2)
	for pos, word := range words {
		term, ok := s.Normalize(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: pos})
	}
	return tokens
}

// Normalize stems a single lower-cased word, reporting false for words the
// index never holds.
func (s *Standard) Normalize(word string) (string, bool) {
	if len(word) < 2 || s.StopWords.IsStopWord(word) {
		return "", false
	}
	stemmed := s.Stemmer.Stem(word)
	if stemmed == "" {
		return "", false
	}
	return stemmed, true
}

// Terms returns just the terms of Tokenize.
func (s *Standard) Terms(text string) []string {
	tokens := s.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

var suffixRules = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// SuffixStemmer strips the first matching suffix whose remainder is long
// enough.
type SuffixStemmer struct{}

func (SuffixStemmer) Stem(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
