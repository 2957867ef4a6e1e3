package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/posting"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/segment"
)

// Index is a read-only view of one published generation. It is safe for
// concurrent use.
type Index struct {
	dir       string
	stats     CorpusStats
	inverted  *segment.Reader[string, posting.List]
	documents *segment.Reader[uint32, DocumentInfo]
	citations *segment.Reader[uint32, []uint32]
	contents  *segment.Reader[uint32, Contents]
	logger    *slog.Logger
}

// TokenFrequency pairs a token with its collection frequency.
type TokenFrequency struct {
	Token     string
	Frequency int
}

// Open opens the live generation of dataDir.
func Open(dataDir string) (*Index, error) {
	dir, err := CurrentGeneration(dataDir)
	if err != nil {
		return nil, err
	}
	return OpenGeneration(dir)
}

// OpenGeneration opens the generation stored in dir.
func OpenGeneration(dir string) (*Index, error) {
	stats, err := readStats(filepath.Join(dir, statsFile))
	if err != nil {
		return nil, err
	}
	enc, interval := stats.Encoding, stats.SeekInterval
	ix := &Index{
		dir:    dir,
		stats:  stats,
		logger: slog.Default().With("component", "index", "generation", filepath.Base(dir)),
	}
	if ix.inverted, err = segment.OpenReader(invertedSchema(enc, interval), filepath.Join(dir, InvertedIndex)); err != nil {
		return nil, fmt.Errorf("opening %s index: %w", InvertedIndex, err)
	}
	if ix.documents, err = segment.OpenReader(documentsSchema(enc, interval), filepath.Join(dir, DocumentsIndex)); err != nil {
		ix.Close()
		return nil, fmt.Errorf("opening %s index: %w", DocumentsIndex, err)
	}
	if ix.citations, err = segment.OpenReader(citationsSchema(enc, interval), filepath.Join(dir, CitationsIndex)); err != nil {
		ix.Close()
		return nil, fmt.Errorf("opening %s index: %w", CitationsIndex, err)
	}
	if ix.contents, err = segment.OpenReader(contentsSchema(enc, interval), filepath.Join(dir, ContentsIndex)); err != nil {
		ix.Close()
		return nil, fmt.Errorf("opening %s index: %w", ContentsIndex, err)
	}
	ix.logger.Info("index opened",
		"tokens", ix.inverted.Len(),
		"documents", stats.Documents,
		"encoding", enc,
	)
	return ix, nil
}

// Generation is the name of the opened generation.
func (ix *Index) Generation() string { return filepath.Base(ix.dir) }

func (ix *Index) Stats() CorpusStats { return ix.stats }

// CollectionLength is the number of tokens in the corpus.
func (ix *Index) CollectionLength() int64 { return ix.stats.CollectionLength() }

// Encoding is the value encoding of the generation.
func (ix *Index) Encoding() codec.Encoding { return ix.stats.Encoding }

// Lookup returns the postings of token, or of every token starting with it
// when prefix is set. A missing token yields an empty table.
func (ix *Index) Lookup(token string, prefix bool) (*posting.Table, error) {
	table := posting.NewTable()
	if !prefix {
		list, _, err := ix.inverted.Get(token)
		if err != nil {
			return nil, fmt.Errorf("looking up %q: %w", token, err)
		}
		table.AddList(token, list)
		return table, nil
	}
	entries, err := segment.LookupPrefix(ix.inverted, token)
	if err != nil {
		return nil, fmt.Errorf("looking up prefix %q: %w", token, err)
	}
	for _, e := range entries {
		table.AddList(e.Key, e.Value)
	}
	return table, nil
}

// Headers returns the posting headers of token with positions deferred.
func (ix *Index) Headers(token string) ([]posting.Header, error) {
	blob, ok, err := ix.inverted.GetRaw(token)
	if err != nil || !ok {
		return nil, err
	}
	headers, err := posting.ReadHeaders(codec.NewBytesReader(blob, ix.stats.Encoding))
	if err != nil {
		return nil, fmt.Errorf("decoding headers of %q: %w", token, err)
	}
	return headers, nil
}

// CollectionFrequency is the number of occurrences of token in the corpus.
func (ix *Index) CollectionFrequency(token string) (int, error) {
	headers, err := ix.Headers(token)
	if err != nil {
		return 0, err
	}
	return frequency(headers), nil
}

func frequency(headers []posting.Header) int {
	n := 0
	for _, h := range headers {
		n += h.Total()
	}
	return n
}

// TokensWithPrefix lists every token starting with prefix with its
// collection frequency, decoding headers only.
func (ix *Index) TokensWithPrefix(prefix string) ([]TokenFrequency, error) {
	var out []TokenFrequency
	err := segment.ScanPrefix(ix.inverted, prefix, func(key string, blob []byte) error {
		headers, err := posting.ReadHeaders(codec.NewBytesReader(blob, ix.stats.Encoding))
		if err != nil {
			return fmt.Errorf("decoding headers of %q: %w", key, err)
		}
		out = append(out, TokenFrequency{Token: key, Frequency: frequency(headers)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Document returns the stored record of docID.
func (ix *Index) Document(docID uint32) (DocumentInfo, bool, error) {
	return ix.documents.Get(docID)
}

// TokenCount is the number of tokens of docID in ct, zero if unknown.
func (ix *Index) TokenCount(docID uint32, ct posting.ContentType) int {
	info, ok, err := ix.documents.Get(docID)
	if err != nil {
		ix.logger.Warn("document lookup failed", "doc_id", docID, "error", err)
		return 0
	}
	if !ok {
		return 0
	}
	return info.TokenCounts[ct]
}

// ScoreOf is the importance score of docID, zero if unknown.
func (ix *Index) ScoreOf(docID uint32) float64 {
	info, ok, err := ix.documents.Get(docID)
	if err != nil {
		ix.logger.Warn("document lookup failed", "doc_id", docID, "error", err)
		return 0
	}
	if !ok {
		return 0
	}
	return info.Importance
}

// CitedBy returns the ids of the documents citing docID.
func (ix *Index) CitedBy(docID uint32) ([]uint32, error) {
	citing, _, err := ix.citations.Get(docID)
	if err != nil {
		return nil, fmt.Errorf("looking up citations of %d: %w", docID, err)
	}
	return citing, nil
}

// Contents returns the stored text of docID.
func (ix *Index) Contents(docID uint32) (Contents, bool, error) {
	return ix.contents.Get(docID)
}

// Close releases every mapping of the generation.
func (ix *Index) Close() error {
	var g errgroup.Group
	if ix.inverted != nil {
		g.Go(ix.inverted.Close)
	}
	if ix.documents != nil {
		g.Go(ix.documents.Close)
	}
	if ix.citations != nil {
		g.Go(ix.citations.Close)
	}
	if ix.contents != nil {
		g.Go(ix.contents.Close)
	}
	return g.Wait()
}

// Ping reports whether the generation is still readable.
func (ix *Index) Ping(context.Context) error {
	_, _, err := ix.documents.Get(0)
	if err != nil {
		return fmt.Errorf("index %s unreadable: %w", ix.Generation(), err)
	}
	return nil
}
