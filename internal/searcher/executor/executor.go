package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/posting"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/spelling"
	apperrors "github.com/Adithya-Monish-Kumar-K/patent-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/metrics"
	"github.com/RoaringBitmap/roaring/v2"
)

// Index is the read side of one published index generation.
type Index interface {
	ranker.Corpus
	spelling.Vocabulary
	Lookup(token string, prefix bool) (*posting.Table, error)
	CitedBy(docID uint32) ([]uint32, error)
	Contents(docID uint32) (indexer.Contents, bool, error)
	Generation() string
	Close() error
}

type Options struct {
	// PRFWindow is the number of words either side of a match that
	// feedback expansion harvests.
	PRFWindow int
	// PRFTerms caps the tokens feedback adds to a query.
	PRFTerms int
}

type Correction struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type RankedResult struct {
	Query       string             `json:"query"`
	Kind        string             `json:"kind"`
	Generation  string             `json:"generation"`
	TotalHits   int                `json:"total_hits"`
	Results     []ranker.ScoredDoc `json:"results"`
	Corrections []Correction       `json:"corrections,omitempty"`
	Expansion   []string           `json:"expansion,omitempty"`
}

// snapshot pins one index generation. Queries hold the read lock for their
// whole evaluation; retiring the generation takes the write lock.
type snapshot struct {
	mu      sync.RWMutex
	closed  bool
	index   Index
	ranker  *ranker.Ranker
	speller *spelling.Corrector
}

type Engine struct {
	parser  *parser.Parser
	tok     tokenizer.Tokenizer
	opts    Options
	metrics *metrics.Metrics
	current atomic.Pointer[snapshot]
	logger  *slog.Logger
}

func New(p *parser.Parser, tok tokenizer.Tokenizer, opts Options, m *metrics.Metrics) *Engine {
	if opts.PRFWindow <= 0 {
		opts.PRFWindow = 5
	}
	if opts.PRFTerms <= 0 {
		opts.PRFTerms = 5
	}
	return &Engine{
		parser:  p,
		tok:     tok,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Swap makes ix the index new queries run against and closes the previous
// one once its in-flight queries finish.
func (e *Engine) Swap(ix Index) error {
	next := &snapshot{
		index:   ix,
		ranker:  ranker.New(ix),
		speller: spelling.New(ix),
	}
	prev := e.current.Swap(next)
	e.metrics.IndexSwapped()
	if prev == nil {
		e.logger.Info("index attached", "generation", ix.Generation())
		return nil
	}
	e.logger.Info("index swapped", "from", prev.index.Generation(), "to", ix.Generation())
	return prev.retire()
}

func (s *snapshot) retire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("closing generation %s: %w", s.index.Generation(), err)
	}
	return nil
}

// Generation names the attached index generation, empty if none.
func (e *Engine) Generation() string {
	if s := e.current.Load(); s != nil {
		return s.index.Generation()
	}
	return ""
}

// Close detaches and closes the current index.
func (e *Engine) Close() error {
	if s := e.current.Swap(nil); s != nil {
		return s.retire()
	}
	return nil
}

func (e *Engine) acquire() (*snapshot, error) {
	for {
		s := e.current.Load()
		if s == nil {
			return nil, apperrors.ErrIndexNotReady
		}
		s.mu.RLock()
		if !s.closed {
			return s, nil
		}
		s.mu.RUnlock()
	}
}

// Search parses input and executes it.
func (e *Engine) Search(ctx context.Context, input string, limit int) (*RankedResult, error) {
	return e.Execute(ctx, e.parser.Parse(input), limit)
}

// Execute evaluates q against the current index and ranks the matches.
func (e *Engine) Execute(ctx context.Context, q parser.Query, limit int) (*RankedResult, error) {
	start := time.Now()
	s, err := e.acquire()
	if err != nil {
		e.metrics.Query(q.Kind(), "not_ready", 0)
		return nil, err
	}
	defer s.mu.RUnlock()

	ev := &evaluation{ctx: ctx, snap: s}
	result, err := e.execute(ev, q, limit)
	if err != nil {
		e.metrics.Query(q.Kind(), "error", 0)
		return nil, err
	}
	result.Generation = s.index.Generation()
	result.Corrections = ev.corrections
	e.metrics.Query(q.Kind(), "ok", len(result.Results))
	e.metrics.Corrected(len(ev.corrections))

	e.logger.Info("query executed",
		"query", result.Query,
		"kind", result.Kind,
		"candidates", result.TotalHits,
		"results", len(result.Results),
		"corrections", len(ev.corrections),
		"duration", time.Since(start),
	)
	return result, nil
}

func (e *Engine) execute(ev *evaluation, q parser.Query, limit int) (*RankedResult, error) {
	table, err := ev.eval(q)
	if err != nil {
		return nil, err
	}
	result := &RankedResult{Query: q.String(), Kind: q.Kind()}
	if !parser.Ranked(q) {
		result.TotalHits = table.Len()
		result.Results = ranker.Order(table, limit)
		return result, nil
	}

	var expanded map[string]bool
	if depth := parser.PRF(q); depth > 0 && !table.IsEmpty() {
		table, expanded, err = e.feedback(ev, q, table, depth)
		if err != nil {
			return nil, err
		}
		for token := range expanded {
			result.Expansion = append(result.Expansion, token)
		}
		slices.Sort(result.Expansion)
	}
	result.TotalHits = table.Len()
	result.Results, err = ev.snap.ranker.Rank(table, expanded, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking %s: %w", q, err)
	}
	return result, nil
}

// evaluation carries the per-query state of one Execute call.
type evaluation struct {
	ctx         context.Context
	snap        *snapshot
	corrections []Correction
}

func (ev *evaluation) eval(q parser.Query) (*posting.Table, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	switch q := q.(type) {
	case parser.Keyword:
		table := posting.NewTable()
		for _, term := range q.Terms {
			t, err := ev.lookup(term)
			if err != nil {
				return nil, err
			}
			table = table.Union(t)
		}
		return table, nil
	case parser.Phrase:
		return ev.phrase(q.Terms)
	case parser.Boolean:
		left, err := ev.eval(q.Left)
		if err != nil {
			return nil, err
		}
		right, err := ev.eval(q.Right)
		if err != nil {
			return nil, err
		}
		switch q.Op {
		case parser.And:
			return left.Intersect(right), nil
		case parser.Or:
			return left.Union(right), nil
		case parser.Not:
			return left.Difference(right), nil
		}
		return nil, fmt.Errorf("%w: unknown operator %s", apperrors.ErrInvalidInput, q.Op)
	case parser.LinkTo:
		citing, err := ev.snap.index.CitedBy(q.DocID)
		if err != nil {
			return nil, err
		}
		return posting.TableFromDocs(citing), nil
	case parser.Mixed:
		table := posting.NewTable()
		for _, sub := range q.Subqueries {
			t, err := ev.eval(sub)
			if err != nil {
				return nil, err
			}
			table = table.Union(t)
		}
		return table, nil
	}
	return nil, fmt.Errorf("%w: unsupported query %T", apperrors.ErrInvalidInput, q)
}

// lookup fetches one term, substituting the closest index token when an
// exact term is unknown.
func (ev *evaluation) lookup(term parser.Term) (*posting.Table, error) {
	ix := ev.snap.index
	table, err := ix.Lookup(term.Text, term.Prefix)
	if err != nil {
		return nil, err
	}
	if term.Prefix || !table.IsEmpty() {
		return table, nil
	}
	corrected, ok, err := ev.snap.speller.Correct(term.Text)
	if err != nil {
		return nil, err
	}
	if !ok {
		return table, nil
	}
	ev.addCorrection(term.Text, corrected)
	return ix.Lookup(corrected, false)
}

func (ev *evaluation) addCorrection(from, to string) {
	for _, c := range ev.corrections {
		if c.From == from {
			return
		}
	}
	ev.corrections = append(ev.corrections, Correction{From: from, To: to})
}

// phrase keeps the documents where every term follows its predecessor at
// the recorded gap within one content type. Only the positions of the
// latest term are carried into the next adjacency test.
func (ev *evaluation) phrase(terms []parser.Term) (*posting.Table, error) {
	if len(terms) == 0 {
		return posting.NewTable(), nil
	}
	tables := make([]*posting.Table, len(terms))
	for i, term := range terms {
		t, err := ev.lookup(term)
		if err != nil {
			return nil, err
		}
		if t.IsEmpty() {
			return posting.NewTable(), nil
		}
		tables[i] = t
	}

	running := collapse(tables[0])
	for i := 1; i < len(terms); i++ {
		gap := uint32(max(terms[i].Gap, 1))
		current := collapse(tables[i])
		next := make(map[uint32]posting.PositionSet, len(running))
		for doc, prev := range running {
			cur, ok := current[doc]
			if !ok {
				continue
			}
			var kept posting.PositionSet
			for _, ct := range posting.ContentTypes {
				for _, pos := range cur[ct] {
					if pos >= gap && prev.Contains(ct, pos-gap) {
						kept[ct] = append(kept[ct], pos)
					}
				}
			}
			if !kept.IsEmpty() {
				next[doc] = kept
			}
		}
		if len(next) == 0 {
			return posting.NewTable(), nil
		}
		running = next
	}

	docs := roaring.New()
	for doc := range running {
		docs.Add(doc)
	}
	result := posting.NewTable()
	for _, t := range tables {
		result = result.Union(t.Restrict(docs))
	}
	return result, nil
}

// collapse merges every row of t into one position set per document.
func collapse(t *posting.Table) map[uint32]posting.PositionSet {
	out := make(map[uint32]posting.PositionSet, t.Len())
	for _, token := range t.Tokens() {
		for _, p := range t.Row(token) {
			out[p.DocID] = out[p.DocID].Merge(p.Positions)
		}
	}
	return out
}
