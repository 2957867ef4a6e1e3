// Package parser turns query strings into Query trees.
//
// Grammar, loosest binding first:
//
//	linkTo:<id>                 documents citing patent <id>
//	a AND b, a OR b, a NOT b    boolean operators, upper case, left associative
//	"gear train" brake*         quoted phrases and free words; mixing them yields a Mixed query
//	... #5                      trailing feedback depth for pseudo-relevance feedback
//
// A word ending in * is a prefix term and is not stemmed. Input that does
// not fit the grammar is searched as a single keyword.
package parser

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/tokenizer"
)

const linkToPrefix = "linkto:"

var errMalformed = errors.New("malformed query")

// Normalizer maps one lower-cased word to its index token.
type Normalizer interface {
	Normalize(word string) (string, bool)
}

type Parser struct {
	norm Normalizer
}

func New(norm Normalizer) *Parser {
	return &Parser{norm: norm}
}

// Parse never fails: malformed input becomes a single-token keyword query.
func (p *Parser) Parse(input string) Query {
	q, err := p.parse(input)
	if err != nil {
		return Keyword{Terms: []Term{{Text: strings.ToLower(strings.TrimSpace(input)), Gap: 1}}}
	}
	return q
}

func (p *Parser) parse(input string) (Query, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, errMalformed
	}
	s, prf := splitPRF(s)

	parts, ops, err := splitBoolean(s)
	if err != nil {
		return nil, err
	}
	if len(ops) > 0 {
		q, err := p.parseOperand(parts[0], 0)
		if err != nil {
			return nil, err
		}
		for i, op := range ops {
			right, err := p.parseOperand(parts[i+1], 0)
			if err != nil {
				return nil, err
			}
			q = Boolean{Left: q, Right: right, Op: op}
		}
		return q, nil
	}
	return p.parseOperand(s, prf)
}

// splitPRF strips a trailing "#N".
func splitPRF(s string) (string, int) {
	i := strings.LastIndexByte(s, '#')
	if i < 0 {
		return s, 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
	if err != nil || n < 0 {
		return s, 0
	}
	return strings.TrimSpace(s[:i]), n
}

// splitBoolean splits s on operators outside quotes.
func splitBoolean(s string) ([]string, []Op, error) {
	var (
		parts   []string
		ops     []Op
		current []string
	)
	words, err := fields(s)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range words {
		var op Op
		switch w {
		case "AND":
			op = And
		case "OR":
			op = Or
		case "NOT":
			op = Not
		default:
			current = append(current, w)
			continue
		}
		if len(current) == 0 {
			return nil, nil, errMalformed
		}
		parts = append(parts, strings.Join(current, " "))
		ops = append(ops, op)
		current = nil
	}
	if len(current) == 0 {
		return nil, nil, errMalformed
	}
	return append(parts, strings.Join(current, " ")), ops, nil
}

// fields splits on spaces, keeping quoted sections whole.
func fields(s string) ([]string, error) {
	var (
		out     []string
		b       strings.Builder
		inQuote bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == ' ' && !inQuote:
			if b.Len() > 0 {
				out = append(out, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if inQuote {
		return nil, errMalformed
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out, nil
}

func (p *Parser) parseOperand(s string, prf int) (Query, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), linkToPrefix) {
		id, err := strconv.ParseUint(strings.TrimSpace(s[len(linkToPrefix):]), 10, 32)
		if err != nil {
			return nil, errMalformed
		}
		return LinkTo{DocID: uint32(id)}, nil
	}

	var (
		phrases []Query
		free    []Term
	)
	rest := s
	for {
		open := strings.IndexByte(rest, '"')
		if open < 0 {
			free = append(free, p.keywordTerms(rest)...)
			break
		}
		closing := strings.IndexByte(rest[open+1:], '"')
		if closing < 0 {
			return nil, errMalformed
		}
		free = append(free, p.keywordTerms(rest[:open])...)
		if terms := p.phraseTerms(rest[open+1 : open+1+closing]); len(terms) > 0 {
			phrases = append(phrases, Phrase{Terms: terms})
		}
		rest = rest[open+closing+2:]
	}

	switch {
	case len(phrases) == 0 && len(free) == 0:
		return nil, errMalformed
	case len(phrases) == 0:
		return Keyword{Terms: free, PRF: prf}, nil
	case len(phrases) == 1 && len(free) == 0:
		ph := phrases[0].(Phrase)
		ph.PRF = prf
		return ph, nil
	}
	subs := phrases
	if len(free) > 0 {
		subs = append(subs, Keyword{Terms: free})
	}
	return Mixed{Subqueries: subs, PRF: prf}, nil
}

func (p *Parser) keywordTerms(s string) []Term {
	var terms []Term
	for _, raw := range strings.Fields(s) {
		if strings.HasSuffix(raw, "*") {
			words := tokenizer.Words(strings.TrimSuffix(raw, "*"))
			if len(words) == 1 {
				terms = append(terms, Term{Text: words[0], Prefix: true, Gap: 1})
				continue
			}
		}
		for _, w := range tokenizer.Words(raw) {
			if term, ok := p.norm.Normalize(w); ok {
				terms = append(terms, Term{Text: term, Gap: 1})
			}
		}
	}
	return terms
}

// phraseTerms normalises a phrase, recording how many words separate each
// kept term from the previous one.
func (p *Parser) phraseTerms(s string) []Term {
	var terms []Term
	gap := 0
	for _, w := range tokenizer.Words(s) {
		gap++
		term, ok := p.norm.Normalize(w)
		if !ok {
			continue
		}
		terms = append(terms, Term{Text: term, Gap: gap})
		gap = 0
	}
	if len(terms) > 0 {
		terms[0].Gap = 1
	}
	return terms
}
