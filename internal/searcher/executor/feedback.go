package executor

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/posting"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/parser"
)

// feedback expands q with the tokens that appear most often near the
// matches of its top depth documents, re-evaluates it and returns the
// union of both result tables together with the added tokens.
func (e *Engine) feedback(ev *evaluation, q parser.Query, table *posting.Table, depth int) (*posting.Table, map[string]bool, error) {
	top, err := ev.snap.ranker.Rank(table, nil, depth)
	if err != nil {
		return nil, nil, fmt.Errorf("ranking feedback documents: %w", err)
	}

	known := make(map[string]bool)
	for _, term := range parser.Terms(q) {
		known[term.Text] = true
	}
	for _, token := range table.Tokens() {
		known[token] = true
	}

	counts := make(map[string]int)
	for _, doc := range top {
		if err := e.harvest(ev, table, doc.DocID, known, counts); err != nil {
			return nil, nil, err
		}
	}
	added := topTokens(counts, e.opts.PRFTerms)
	if len(added) == 0 {
		return table, nil, nil
	}

	extra := make([]parser.Term, len(added))
	for i, token := range added {
		extra[i] = parser.Term{Text: token, Gap: 1}
	}
	var extended parser.Query
	switch q := q.(type) {
	case parser.Keyword:
		extended = parser.Keyword{Terms: append(slices.Clone(q.Terms), extra...)}
	case parser.Phrase:
		extended = parser.Mixed{Subqueries: []parser.Query{parser.Phrase{Terms: q.Terms}, parser.Keyword{Terms: extra}}}
	case parser.Mixed:
		extended = parser.Mixed{Subqueries: append(slices.Clone(q.Subqueries), parser.Keyword{Terms: extra})}
	default:
		return table, nil, nil
	}

	expandedTable, err := ev.eval(extended)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluating expanded query: %w", err)
	}
	expanded := make(map[string]bool, len(added))
	for _, token := range added {
		if expandedTable.HasToken(token) {
			expanded[token] = true
		}
	}
	e.logger.Debug("query expanded", "query", q.String(), "added", added)
	return table.Union(expandedTable), expanded, nil
}

// harvest counts the unknown tokens of doc lying within the feedback window
// of a match.
func (e *Engine) harvest(ev *evaluation, table *posting.Table, doc uint32, known map[string]bool, counts map[string]int) error {
	contents, ok, err := ev.snap.index.Contents(doc)
	if err != nil {
		return fmt.Errorf("loading contents of %d: %w", doc, err)
	}
	if !ok {
		return nil
	}
	column := table.Column(doc)
	window := e.opts.PRFWindow
	for _, ct := range posting.ContentTypes {
		var matches []int
		for _, ps := range column {
			for _, pos := range ps[ct] {
				matches = append(matches, int(pos))
			}
		}
		if len(matches) == 0 {
			continue
		}
		slices.Sort(matches)
		for _, tok := range e.tok.Tokenize(contents[ct]) {
			if known[tok.Term] {
				continue
			}
			i, _ := slices.BinarySearch(matches, tok.Position-window)
			if i < len(matches) && matches[i] <= tok.Position+window {
				counts[tok.Term]++
			}
		}
	}
	return nil
}

// topTokens returns up to n tokens by descending count, ties in token order.
func topTokens(counts map[string]int, n int) []string {
	tokens := slices.SortedFunc(maps.Keys(counts), func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(tokens) > n {
		tokens = tokens[:n]
	}
	return tokens
}
