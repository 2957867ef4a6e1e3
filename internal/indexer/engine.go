package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/posting"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/metrics"
)

// ImportanceScorer supplies the precomputed citation-graph importance of a
// document.
type ImportanceScorer interface {
	ScoreOf(ctx context.Context, docID uint32) (float64, error)
}

// Engine turns parsed documents into index tuples and feeds them to a
// Builder.
type Engine struct {
	builder   *Builder
	tokenizer tokenizer.Tokenizer
	scorer    ImportanceScorer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	indexed   int64
}

// NewEngine starts a build with the given collaborators. A nil scorer gives
// every document importance zero.
func NewEngine(opts Options, tok tokenizer.Tokenizer, scorer ImportanceScorer, m *metrics.Metrics) (*Engine, error) {
	b, err := NewBuilder(opts, m)
	if err != nil {
		return nil, err
	}
	return &Engine{
		builder:   b,
		tokenizer: tok,
		scorer:    scorer,
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
	}, nil
}

// IndexDocument tokenizes every content type of doc and records its
// postings, statistics, citations and text.
func (e *Engine) IndexDocument(ctx context.Context, doc Document) error {
	var info DocumentInfo
	var contents Contents
	for _, ct := range posting.ContentTypes {
		text := doc.Text(ct)
		contents[ct] = text
		tokens := e.tokenizer.Tokenize(text)
		info.TokenCounts[ct] = len(tokens)
		for _, tok := range tokens {
			if err := e.builder.Add(doc.ID, tok.Term, ct, uint32(tok.Position)); err != nil {
				return fmt.Errorf("indexing document %d: %w", doc.ID, err)
			}
		}
	}
	if e.scorer != nil {
		score, err := e.scorer.ScoreOf(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("scoring document %d: %w", doc.ID, err)
		}
		info.Importance = score
	}
	e.builder.AddDocument(doc.ID, info)
	e.builder.AddContents(doc.ID, contents)
	for _, cited := range doc.Citations {
		e.builder.AddCitation(doc.ID, cited)
	}
	e.indexed++
	e.metrics.DocIndexed()
	e.logger.Debug("document indexed in memory",
		"doc_id", doc.ID,
		"token_count", info.Length(),
		"citations", len(doc.Citations),
	)
	return nil
}

// Indexed is the number of documents added so far.
func (e *Engine) Indexed() int64 { return e.indexed }

// Flush spills buffered postings to disk.
func (e *Engine) Flush() error { return e.builder.Flush() }

// Finish builds and publishes the index generation.
func (e *Engine) Finish() (Summary, error) {
	return e.builder.Finish()
}

// Abort discards the build.
func (e *Engine) Abort() { e.builder.Abort() }
