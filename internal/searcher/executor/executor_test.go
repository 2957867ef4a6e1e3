package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/patent-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	gearDoc     = indexer.Document{ID: 1, Title: "Gear", Abstract: "A gear for transmitting rotational force"}
	conveyorDoc = indexer.Document{ID: 2, Title: "Assembly line", Abstract: "A conveyor assembly for parts", Citations: []uint32{1}}
	brakeDoc    = indexer.Document{ID: 3, Title: "Brake assembly", Abstract: "A gear assembly for braking vehicles", Citations: []uint32{1, 2}}
	clutchDoc   = indexer.Document{ID: 4, Title: "Clutch", Abstract: "A clutch coupling for rotational shafts"}
)

func build(t *testing.T, dataDir string, docs ...indexer.Document) *indexer.Index {
	t.Helper()
	opts := indexer.Options{
		DataDir:      dataDir,
		TempDir:      filepath.Join(dataDir, "tmp"),
		Encoding:     codec.Compressed,
		SeekInterval: 2,
	}
	eng, err := indexer.NewEngine(opts, tokenizer.New(), nil, nil)
	require.NoError(t, err)
	for _, doc := range docs {
		require.NoError(t, eng.IndexDocument(context.Background(), doc))
	}
	_, err = eng.Finish()
	require.NoError(t, err)
	ix, err := indexer.Open(dataDir)
	require.NoError(t, err)
	return ix
}

func newEngine(t *testing.T, docs ...indexer.Document) *Engine {
	t.Helper()
	tok := tokenizer.New()
	e := New(parser.New(tok), tok, Options{}, nil)
	require.NoError(t, e.Swap(build(t, filepath.Join(t.TempDir(), "data"), docs...)))
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func search(t *testing.T, e *Engine, query string) *RankedResult {
	t.Helper()
	res, err := e.Search(context.Background(), query, 10)
	require.NoError(t, err)
	return res
}

func ids(res *RankedResult) []uint32 {
	out := make([]uint32, len(res.Results))
	for i, r := range res.Results {
		out[i] = r.DocID
	}
	return out
}

func TestPhraseAdjacency(t *testing.T) {
	e := newEngine(t, gearDoc, conveyorDoc)

	assert.Equal(t, []uint32{1}, ids(search(t, e, `"gear"`)))
	assert.Equal(t, []uint32{2}, ids(search(t, e, `"assembly"`)))
	assert.Empty(t, search(t, e, `"gear assembly"`).Results)
}

func TestPhraseMatchesAdjacentTerms(t *testing.T) {
	e := newEngine(t, gearDoc, conveyorDoc, brakeDoc, clutchDoc)

	assert.Equal(t, []uint32{3}, ids(search(t, e, `"gear assembly"`)))
	assert.Equal(t, []uint32{2}, ids(search(t, e, `"conveyor assembly"`)))
	assert.Empty(t, search(t, e, `"assembly gear"`).Results)
}

func TestPhraseHonoursRemovedStopWords(t *testing.T) {
	e := newEngine(t, gearDoc, conveyorDoc, brakeDoc, clutchDoc)

	assert.Equal(t, []uint32{1}, ids(search(t, e, `"gear for transmitting"`)))
	assert.Empty(t, search(t, e, `"gear transmitting"`).Results)
}

func TestBooleanAlgebra(t *testing.T) {
	e := newEngine(t, gearDoc, conveyorDoc, brakeDoc, clutchDoc)

	gear := ids(search(t, e, "gear AND gear"))
	assert.Equal(t, []uint32{3, 1}, gear)

	and := ids(search(t, e, "gear AND assembly"))
	assert.Subset(t, gear, and)
	assert.Equal(t, []uint32{3}, and)

	or := ids(search(t, e, "gear OR assembly"))
	assert.Subset(t, or, gear)
	assert.Equal(t, []uint32{3, 2, 1}, or)

	assert.Empty(t, search(t, e, "gear NOT gear").Results)
	assert.Equal(t, []uint32{2}, ids(search(t, e, "assembly NOT gear")))
}

func TestLinkTo(t *testing.T) {
	e := newEngine(t, gearDoc, conveyorDoc, brakeDoc, clutchDoc)

	res := search(t, e, "linkTo:1")
	assert.Equal(t, "linkTo", res.Kind)
	assert.Equal(t, []uint32{3, 2}, ids(res))
	assert.Empty(t, search(t, e, "linkTo:4").Results)
	assert.Equal(t, []uint32{3, 2}, ids(search(t, e, "linkTo:1 AND assembly")))
}

func TestKeywordRanksMatches(t *testing.T) {
	e := newEngine(t, gearDoc, conveyorDoc, brakeDoc, clutchDoc)

	res := search(t, e, "gear")
	assert.Equal(t, "keyword", res.Kind)
	assert.Equal(t, 2, res.TotalHits)
	assert.ElementsMatch(t, []uint32{1, 3}, ids(res))
	assert.GreaterOrEqual(t, res.Results[0].Score, res.Results[1].Score)
}

func TestSpellingCorrection(t *testing.T) {
	e := newEngine(t, gearDoc, conveyorDoc, brakeDoc, clutchDoc)

	res := search(t, e, "gaer")
	assert.Equal(t, []Correction{{From: "gaer", To: "gear"}}, res.Corrections)
	assert.ElementsMatch(t, []uint32{1, 3}, ids(res))

	res = search(t, e, "zzzzzz")
	assert.Empty(t, res.Corrections)
	assert.Empty(t, res.Results)
}

func TestFeedbackExpandsQuery(t *testing.T) {
	e := newEngine(t, gearDoc, conveyorDoc, brakeDoc, clutchDoc)

	res := search(t, e, "clutch #1")
	assert.Equal(t, []string{"coupl", "rotate", "shaft"}, res.Expansion)
	assert.Equal(t, 2, res.TotalHits)
	require.Len(t, res.Results, 2)
	assert.Equal(t, uint32(4), res.Results[0].DocID)
	assert.Equal(t, uint32(1), res.Results[1].DocID)
}

func TestFeedbackTurnsPhraseIntoMixed(t *testing.T) {
	e := newEngine(t, gearDoc, conveyorDoc, brakeDoc, clutchDoc)

	res := search(t, e, `"gear assembly" #1`)
	assert.Equal(t, "phrase", res.Kind)
	assert.Contains(t, res.Expansion, "brak")
	assert.Contains(t, ids(res), uint32(3))
}

func TestSearchWithoutIndex(t *testing.T) {
	tok := tokenizer.New()
	e := New(parser.New(tok), tok, Options{}, nil)
	_, err := e.Search(context.Background(), "gear", 10)
	assert.ErrorIs(t, err, apperrors.ErrIndexNotReady)
}

func TestSwapServesNewGeneration(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	tok := tokenizer.New()
	e := New(parser.New(tok), tok, Options{}, nil)
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.Swap(build(t, dataDir, gearDoc)))
	first := e.Generation()
	assert.Empty(t, search(t, e, "clutch").Results)

	require.NoError(t, e.Swap(build(t, dataDir, gearDoc, clutchDoc)))
	assert.NotEqual(t, first, e.Generation())
	assert.Equal(t, []uint32{4}, ids(search(t, e, "clutch")))
}

func TestCancelledContext(t *testing.T) {
	e := newEngine(t, gearDoc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Search(ctx, "gear", 10)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}
