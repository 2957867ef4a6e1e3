package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Query is a parsed search request. The concrete types are Keyword,
// Phrase, Boolean, LinkTo and Mixed.
type Query interface {
	// Kind names the variant, for metrics and logs.
	Kind() string
	// String renders the query canonically; equal queries render equally.
	String() string
	query()
}

// Term is one normalised query token. Prefix terms match every token
// starting with Text. Gap is the word distance to the previous term of a
// phrase, one for neighbours.
type Term struct {
	Text   string
	Prefix bool
	Gap    int
}

func (t Term) String() string {
	if t.Prefix {
		return t.Text + "*"
	}
	return t.Text
}

type Keyword struct {
	Terms []Term
	PRF   int
}

type Phrase struct {
	Terms []Term
	PRF   int
}

// Op is a boolean operator.
type Op int

const (
	And Op = iota
	Or
	Not
)

func (o Op) String() string {
	switch o {
	case And:
		return "AND"
	case Or:
		return "OR"
	case Not:
		return "NOT"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

type Boolean struct {
	Left, Right Query
	Op          Op
}

// LinkTo matches the documents citing DocID.
type LinkTo struct {
	DocID uint32
}

// Mixed is the disjunction of its subqueries.
type Mixed struct {
	Subqueries []Query
	PRF        int
}

func (Keyword) Kind() string { return "keyword" }
func (Phrase) Kind() string  { return "phrase" }
func (Boolean) Kind() string { return "boolean" }
func (LinkTo) Kind() string  { return "linkTo" }
func (Mixed) Kind() string   { return "mixed" }

func (Keyword) query() {}
func (Phrase) query()  {}
func (Boolean) query() {}
func (LinkTo) query()  {}
func (Mixed) query()   {}

func joinTerms(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

func withPRF(s string, prf int) string {
	if prf > 0 {
		return s + " #" + strconv.Itoa(prf)
	}
	return s
}

func (q Keyword) String() string { return withPRF(joinTerms(q.Terms), q.PRF) }

func (q Phrase) String() string {
	var b strings.Builder
	b.WriteByte('"')
	for i, t := range q.Terms {
		if i > 0 {
			b.WriteString(strings.Repeat(" ", max(t.Gap, 1)))
		}
		b.WriteString(t.Text)
	}
	b.WriteByte('"')
	return withPRF(b.String(), q.PRF)
}

func (q Boolean) String() string {
	return "(" + q.Left.String() + " " + q.Op.String() + " " + q.Right.String() + ")"
}

func (q LinkTo) String() string { return "linkTo:" + strconv.FormatUint(uint64(q.DocID), 10) }

func (q Mixed) String() string {
	parts := make([]string, len(q.Subqueries))
	for i, sub := range q.Subqueries {
		parts[i] = sub.String()
	}
	return withPRF("["+strings.Join(parts, " | ")+"]", q.PRF)
}

// Terms returns the distinct terms of q, in first-seen order,
// excluding the right side of NOT.
func Terms(q Query) []Term {
	seen := make(map[string]bool)
	var out []Term
	var walk func(Query)
	walk = func(q Query) {
		switch q := q.(type) {
		case Keyword:
			out = appendDistinct(out, seen, q.Terms)
		case Phrase:
			out = appendDistinct(out, seen, q.Terms)
		case Mixed:
			for _, sub := range q.Subqueries {
				walk(sub)
			}
		case Boolean:
			walk(q.Left)
			if q.Op != Not {
				walk(q.Right)
			}
		}
	}
	walk(q)
	return out
}

func appendDistinct(out []Term, seen map[string]bool, terms []Term) []Term {
	for _, t := range terms {
		key := t.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// PRF returns the feedback depth of q, zero for variants without one.
func PRF(q Query) int {
	switch q := q.(type) {
	case Keyword:
		return q.PRF
	case Phrase:
		return q.PRF
	case Mixed:
		return q.PRF
	}
	return 0
}

// Ranked reports whether results of q are scored rather than ordered by id.
func Ranked(q Query) bool {
	switch q.(type) {
	case Keyword, Phrase, Mixed:
		return true
	}
	return false
}
