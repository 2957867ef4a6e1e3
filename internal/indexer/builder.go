package indexer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/posting"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/patent-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/metrics"
)

// Options control one index build.
type Options struct {
	DataDir      string
	TempDir      string
	Encoding     codec.Encoding
	SeekInterval int
	// FlushThresholdBytes bounds the estimated memory of the buffered
	// postings. Zero disables automatic flushing.
	FlushThresholdBytes int64
	KeepGenerations     int
}

// Summary describes a finished build.
type Summary struct {
	Generation string
	Documents  int64
	Tokens     int
	Flushes    int
	Duration   time.Duration
}

// Builder owns the in-memory state of one index build. The inverted index
// is bounded by FlushThresholdBytes; the per-document indexes are small and
// flushed alongside it. A Builder is not safe for concurrent use.
type Builder struct {
	opts      Options
	inverted  *segment.Builder[string, posting.List]
	postings  *posting.Table
	documents *segment.Builder[uint32, DocumentInfo]
	docBuf    *segment.MapBuffer[uint32, DocumentInfo]
	citations *segment.Builder[uint32, []uint32]
	citeBuf   *segment.MapBuffer[uint32, []uint32]
	contents  *segment.Builder[uint32, Contents]
	textBuf   *segment.MapBuffer[uint32, Contents]
	stats     CorpusStats
	counted   map[uint32][posting.NumContentTypes]int
	tempDir   string
	started   time.Time
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewBuilder prepares a build. Temporary segments go to a fresh directory
// under opts.TempDir.
func NewBuilder(opts Options, m *metrics.Metrics) (*Builder, error) {
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(opts.DataDir, "tmp")
	}
	if err := os.MkdirAll(opts.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	tempDir, err := os.MkdirTemp(opts.TempDir, "build-")
	if err != nil {
		return nil, fmt.Errorf("creating build directory: %w", err)
	}
	enc, interval := opts.Encoding, opts.SeekInterval

	b := &Builder{
		opts:     opts,
		postings: posting.NewTable(),
		tempDir:  tempDir,
		started:  time.Now(),
		metrics:  m,
		logger:   slog.Default().With("component", "index-builder"),
		stats:    CorpusStats{Encoding: enc, SeekInterval: interval},
		counted:  make(map[uint32][posting.NumContentTypes]int),
	}
	b.inverted = segment.NewBuilder(invertedSchema(enc, interval), b.postings, InvertedIndex, tempDir, opts.FlushThresholdBytes)

	ds := documentsSchema(enc, interval)
	b.docBuf = segment.NewMapBuffer(ds, func(uint32, DocumentInfo) int64 { return 48 })
	b.documents = segment.NewBuilder(ds, b.docBuf, DocumentsIndex, tempDir, 0)

	cs := citationsSchema(enc, interval)
	b.citeBuf = segment.NewMapBuffer(cs, func(_ uint32, v []uint32) int64 { return 32 + 4*int64(len(v)) })
	b.citations = segment.NewBuilder(cs, b.citeBuf, CitationsIndex, tempDir, 0)

	ts := contentsSchema(enc, interval)
	b.textBuf = segment.NewMapBuffer(ts, func(_ uint32, c Contents) int64 {
		n := int64(32)
		for _, text := range c {
			n += int64(len(text))
		}
		return n
	})
	b.contents = segment.NewBuilder(ts, b.textBuf, ContentsIndex, tempDir, 0)
	return b, nil
}

// Add records one occurrence of token in a document and flushes when the
// buffered postings have outgrown the threshold.
func (b *Builder) Add(docID uint32, token string, ct posting.ContentType, pos uint32) error {
	b.postings.Add(token, docID, ct, pos)
	flushed, err := b.inverted.MaybeFlush()
	if err != nil {
		return fmt.Errorf("adding %q to %d: %w", token, docID, err)
	}
	if flushed {
		b.metrics.Flushed(InvertedIndex)
		return b.flushSmall()
	}
	return nil
}

// AddDocument records the importance score and token counts of a document.
// A document added again replaces its earlier counts in the corpus totals,
// even after the earlier record was flushed.
func (b *Builder) AddDocument(docID uint32, info DocumentInfo) {
	prev, seen := b.counted[docID]
	if !seen {
		b.stats.Documents++
	}
	for ct, n := range info.TokenCounts {
		b.stats.Tokens[ct] += int64(n - prev[ct])
	}
	b.counted[docID] = info.TokenCounts
	b.docBuf.Put(docID, info)
}

// AddCitation records that citing cites cited.
func (b *Builder) AddCitation(citing, cited uint32) {
	b.citeBuf.Put(cited, []uint32{citing})
}

// AddContents stores the raw text of a document.
func (b *Builder) AddContents(docID uint32, c Contents) {
	b.textBuf.Put(docID, c)
}

// Flush spills every buffer to temporary segments, for callers that
// observe memory pressure themselves.
func (b *Builder) Flush() error {
	before := b.inverted.Flushes()
	if err := b.inverted.Flush(); err != nil {
		return err
	}
	if b.inverted.Flushes() > before {
		b.metrics.Flushed(InvertedIndex)
	}
	return b.flushSmall()
}

func (b *Builder) flushSmall() error {
	if err := b.documents.Flush(); err != nil {
		return err
	}
	if err := b.citations.Flush(); err != nil {
		return err
	}
	return b.contents.Flush()
}

// Flushes is the number of inverted-index spills so far.
func (b *Builder) Flushes() int { return b.inverted.Flushes() }

// Finish writes a new generation into the data directory and publishes it.
// On failure nothing is published and every temporary file is removed.
func (b *Builder) Finish() (Summary, error) {
	defer os.RemoveAll(b.tempDir)

	gens, err := generations(b.opts.DataDir)
	if err != nil {
		b.Abort()
		return Summary{}, err
	}
	next := 1
	if len(gens) > 0 {
		next = gens[len(gens)-1] + 1
	}
	gen := generationName(next)
	genDir := filepath.Join(b.opts.DataDir, gen)
	flushes := b.inverted.Flushes()

	tokens, err := b.finishAll(genDir)
	if err != nil {
		b.Abort()
		os.RemoveAll(genDir)
		return Summary{}, fmt.Errorf("%w: %w", apperrors.ErrBuildFailed, err)
	}
	if err := publish(b.opts.DataDir, gen); err != nil {
		os.RemoveAll(genDir)
		return Summary{}, fmt.Errorf("%w: %w", apperrors.ErrBuildFailed, err)
	}
	// CURRENT names genDir from here on; a failed prune only leaves old
	// generations behind.
	if err := prune(b.opts.DataDir, b.opts.KeepGenerations); err != nil {
		b.logger.Warn("old generations not pruned", "generation", gen, "error", err)
	}

	s := Summary{
		Generation: gen,
		Documents:  b.stats.Documents,
		Tokens:     tokens,
		Flushes:    flushes,
		Duration:   time.Since(b.started),
	}
	b.metrics.BuildFinished(s.Duration)
	b.logger.Info("index published",
		"generation", gen,
		"documents", s.Documents,
		"tokens", s.Tokens,
		"flushes", s.Flushes,
		"duration", s.Duration,
	)
	return s, nil
}

func (b *Builder) finishAll(genDir string) (int, error) {
	tokens, err := b.inverted.Finish(filepath.Join(genDir, InvertedIndex))
	if err != nil {
		return 0, err
	}
	if _, err := b.documents.Finish(filepath.Join(genDir, DocumentsIndex)); err != nil {
		return 0, err
	}
	if _, err := b.citations.Finish(filepath.Join(genDir, CitationsIndex)); err != nil {
		return 0, err
	}
	if _, err := b.contents.Finish(filepath.Join(genDir, ContentsIndex)); err != nil {
		return 0, err
	}
	if err := writeStats(filepath.Join(genDir, statsFile), b.stats); err != nil {
		return 0, err
	}
	return tokens, nil
}

// Abort discards the build.
func (b *Builder) Abort() {
	b.inverted.Abort()
	b.documents.Abort()
	b.citations.Abort()
	b.contents.Abort()
	os.RemoveAll(b.tempDir)
}
