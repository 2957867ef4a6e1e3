package indexer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/posting"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/patent-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticScores map[uint32]float64

func (s staticScores) ScoreOf(_ context.Context, docID uint32) (float64, error) {
	return s[docID], nil
}

func testOptions(dir string, enc codec.Encoding) Options {
	return Options{
		DataDir:      filepath.Join(dir, "data"),
		TempDir:      filepath.Join(dir, "tmp"),
		Encoding:     enc,
		SeekInterval: 2,
	}
}

// addGearCorpus indexes two documents by raw tuples.
func addGearCorpus(t *testing.T, b *Builder) {
	t.Helper()
	add := func(doc uint32, ct posting.ContentType, words ...string) {
		for i, w := range words {
			require.NoError(t, b.Add(doc, w, ct, uint32(i)))
		}
	}
	add(1, posting.Title, "gear")
	add(1, posting.Abstract, "a", "gear", "for", "transmitting", "rotational", "force")
	add(2, posting.Title, "assembly", "line")
	add(2, posting.Abstract, "a", "conveyor", "assembly", "for", "parts")
	b.AddDocument(1, DocumentInfo{Importance: 0.5, TokenCounts: [posting.NumContentTypes]int{1, 6}})
	b.AddDocument(2, DocumentInfo{Importance: 0.1, TokenCounts: [posting.NumContentTypes]int{2, 5}})
	b.AddCitation(2, 1)
	b.AddCitation(3, 1)
	b.AddContents(1, Contents{"gear", "a gear for transmitting rotational force"})
}

func TestBuildAndLookup(t *testing.T) {
	for _, enc := range []codec.Encoding{codec.Uncompressed, codec.Compressed} {
		t.Run(enc.String(), func(t *testing.T) {
			opts := testOptions(t.TempDir(), enc)
			b, err := NewBuilder(opts, nil)
			require.NoError(t, err)
			addGearCorpus(t, b)
			summary, err := b.Finish()
			require.NoError(t, err)
			assert.Equal(t, "gen-000001", summary.Generation)
			assert.EqualValues(t, 2, summary.Documents)
			assert.Equal(t, 0, summary.Flushes)

			ix, err := Open(opts.DataDir)
			require.NoError(t, err)
			defer ix.Close()

			gear, err := ix.Lookup("gear", false)
			require.NoError(t, err)
			assert.Equal(t, []uint32{1}, gear.DocIDs())
			ps, ok := gear.Get("gear", 1)
			require.True(t, ok)
			assert.Equal(t, []uint32{0}, ps[posting.Title])
			assert.Equal(t, []uint32{1}, ps[posting.Abstract])

			assembly, err := ix.Lookup("assembly", false)
			require.NoError(t, err)
			assert.Equal(t, []uint32{2}, assembly.DocIDs())

			missing, err := ix.Lookup("sprocket", false)
			require.NoError(t, err)
			assert.True(t, missing.IsEmpty())

			prefixed, err := ix.Lookup("f", true)
			require.NoError(t, err)
			assert.Equal(t, []string{"for", "force"}, prefixed.Tokens())
			assert.Equal(t, []uint32{1, 2}, prefixed.DocIDs())

			cf, err := ix.CollectionFrequency("a")
			require.NoError(t, err)
			assert.Equal(t, 2, cf)

			candidates, err := ix.TokensWithPrefix("a")
			require.NoError(t, err)
			assert.Equal(t, []TokenFrequency{{"a", 2}, {"assembly", 2}}, candidates)

			citing, err := ix.CitedBy(1)
			require.NoError(t, err)
			assert.Equal(t, []uint32{2, 3}, citing)
			none, err := ix.CitedBy(2)
			require.NoError(t, err)
			assert.Empty(t, none)

			assert.Equal(t, 6, ix.TokenCount(1, posting.Abstract))
			assert.Equal(t, 0, ix.TokenCount(9, posting.Abstract))
			assert.Equal(t, 0.5, ix.ScoreOf(1))

			text, ok, err := ix.Contents(1)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "gear", text[posting.Title])

			stats := ix.Stats()
			assert.EqualValues(t, 2, stats.Documents)
			assert.EqualValues(t, 14, stats.CollectionLength())
			assert.Equal(t, enc, stats.Encoding)
		})
	}
}

func TestFlushingBuildMatchesDirectBuild(t *testing.T) {
	direct := testOptions(t.TempDir(), codec.Compressed)
	b, err := NewBuilder(direct, nil)
	require.NoError(t, err)
	addGearCorpus(t, b)
	_, err = b.Finish()
	require.NoError(t, err)

	flushed := testOptions(t.TempDir(), codec.Compressed)
	flushed.FlushThresholdBytes = 1
	b, err = NewBuilder(flushed, nil)
	require.NoError(t, err)
	addGearCorpus(t, b)
	summary, err := b.Finish()
	require.NoError(t, err)
	assert.Greater(t, summary.Flushes, 1)

	for _, name := range []string{InvertedIndex, CitationsIndex, DocumentsIndex, ContentsIndex} {
		for _, ext := range []string{".seg", ".seek"} {
			a, err := os.ReadFile(filepath.Join(direct.DataDir, "gen-000001", name+ext))
			require.NoError(t, err)
			c, err := os.ReadFile(filepath.Join(flushed.DataDir, "gen-000001", name+ext))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(a, c), "%s%s differs", name, ext)
		}
	}

	leftovers, err := os.ReadDir(flushed.TempDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestOpenWithoutIndex(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, apperrors.ErrIndexNotReady)
}

func TestGenerationsArePruned(t *testing.T) {
	opts := testOptions(t.TempDir(), codec.Uncompressed)
	opts.KeepGenerations = 2
	for i := 0; i < 3; i++ {
		b, err := NewBuilder(opts, nil)
		require.NoError(t, err)
		addGearCorpus(t, b)
		_, err = b.Finish()
		require.NoError(t, err)
	}
	gens, err := generations(opts.DataDir)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, gens)

	dir, err := CurrentGeneration(opts.DataDir)
	require.NoError(t, err)
	assert.Equal(t, "gen-000003", filepath.Base(dir))
}

func TestAbortLeavesNothingPublished(t *testing.T) {
	opts := testOptions(t.TempDir(), codec.Compressed)
	opts.FlushThresholdBytes = 1
	b, err := NewBuilder(opts, nil)
	require.NoError(t, err)
	addGearCorpus(t, b)
	b.Abort()

	_, err = Open(opts.DataDir)
	assert.ErrorIs(t, err, apperrors.ErrIndexNotReady)
	leftovers, err := os.ReadDir(opts.TempDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestEngineIndexesDocuments(t *testing.T) {
	opts := testOptions(t.TempDir(), codec.Compressed)
	e, err := NewEngine(opts, tokenizer.New(), staticScores{7: 0.9}, nil)
	require.NoError(t, err)
	require.NoError(t, e.IndexDocument(context.Background(), Document{
		ID:        7,
		Title:     "Planetary gear assembly",
		Abstract:  "A planetary gear set for transmitting torque.",
		Citations: []uint32{3},
	}))
	require.NoError(t, e.IndexDocument(context.Background(), Document{ID: 9, Title: "Brake pads"}))
	assert.EqualValues(t, 2, e.Indexed())
	_, err = e.Finish()
	require.NoError(t, err)

	ix, err := Open(opts.DataDir)
	require.NoError(t, err)
	defer ix.Close()

	gear, err := ix.Lookup("gear", false)
	require.NoError(t, err)
	ps, ok := gear.Get("gear", 7)
	require.True(t, ok)
	assert.Equal(t, []uint32{1}, ps[posting.Title])
	assert.Equal(t, []uint32{2}, ps[posting.Abstract])

	info, ok, err := ix.Document(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.9, info.Importance)
	assert.Equal(t, [posting.NumContentTypes]int{3, 5}, info.TokenCounts)

	citing, err := ix.CitedBy(3)
	require.NoError(t, err)
	assert.Equal(t, []uint32{7}, citing)
}

func TestPing(t *testing.T) {
	opts := testOptions(t.TempDir(), codec.Compressed)
	b, err := NewBuilder(opts, nil)
	require.NoError(t, err)
	addGearCorpus(t, b)
	_, err = b.Finish()
	require.NoError(t, err)

	ix, err := Open(opts.DataDir)
	require.NoError(t, err)
	defer ix.Close()
	assert.NoError(t, ix.Ping(context.Background()))
}

func TestFailedPruneKeepsPublishedGeneration(t *testing.T) {
	opts := testOptions(t.TempDir(), codec.Uncompressed)
	opts.KeepGenerations = 1
	build := func() Summary {
		b, err := NewBuilder(opts, nil)
		require.NoError(t, err)
		addGearCorpus(t, b)
		s, err := b.Finish()
		require.NoError(t, err)
		return s
	}
	build()

	removeGeneration = func(string) error { return os.ErrPermission }
	t.Cleanup(func() { removeGeneration = os.RemoveAll })
	s := build()
	assert.Equal(t, "gen-000002", s.Generation)

	gens, err := generations(opts.DataDir)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, gens)

	ix, err := Open(opts.DataDir)
	require.NoError(t, err)
	defer ix.Close()
	assert.Equal(t, "gen-000002", ix.Generation())
}

func TestReaddedDocumentReplacesCounts(t *testing.T) {
	opts := testOptions(t.TempDir(), codec.Compressed)
	opts.FlushThresholdBytes = 1
	b, err := NewBuilder(opts, nil)
	require.NoError(t, err)

	b.AddDocument(1, DocumentInfo{TokenCounts: [posting.NumContentTypes]int{1, 6}})
	require.NoError(t, b.Add(1, "gear", posting.Title, 0))
	require.Positive(t, b.Flushes())
	b.AddDocument(1, DocumentInfo{Importance: 0.3, TokenCounts: [posting.NumContentTypes]int{2, 3}})
	b.AddDocument(2, DocumentInfo{TokenCounts: [posting.NumContentTypes]int{1, 1}})
	summary, err := b.Finish()
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Documents)

	ix, err := Open(opts.DataDir)
	require.NoError(t, err)
	defer ix.Close()
	stats := ix.Stats()
	assert.EqualValues(t, 2, stats.Documents)
	assert.Equal(t, [posting.NumContentTypes]int64{3, 4}, stats.Tokens)
	assert.EqualValues(t, 7, stats.CollectionLength())

	info, ok, err := ix.Document(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, [posting.NumContentTypes]int{2, 3}, info.TokenCounts)
}
