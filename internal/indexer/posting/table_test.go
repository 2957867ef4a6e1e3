package posting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	t := NewTable()
	t.Add("gear", 1, Title, 0)
	t.Add("gear", 1, Abstract, 1)
	t.Add("gear", 3, Abstract, 4)
	t.Add("force", 1, Abstract, 5)
	t.Add("assembly", 2, Title, 0)
	t.Add("assembly", 2, Abstract, 2)
	return t
}

func TestTableViews(t *testing.T) {
	tbl := sampleTable()
	assert.Equal(t, []string{"assembly", "force", "gear"}, tbl.Tokens())
	assert.Equal(t, []uint32{1, 2, 3}, tbl.DocIDs())
	assert.Equal(t, 3, tbl.Len())

	row := tbl.Row("gear")
	require.Len(t, row, 2)
	assert.EqualValues(t, 1, row[0].DocID)
	assert.Equal(t, []uint32{0}, row[0].Positions[Title])

	col := tbl.Column(1)
	assert.Len(t, col, 2)
	assert.Equal(t, []uint32{5}, col["force"][Abstract])

	_, ok := tbl.Get("force", 2)
	assert.False(t, ok)
	assert.Positive(t, tbl.SizeBytes())

	tbl.Reset()
	assert.True(t, tbl.IsEmpty())
	assert.Zero(t, tbl.SizeBytes())
}

func TestTableAscendIsSorted(t *testing.T) {
	var tokens []string
	err := sampleTable().Ascend(func(token string, list List) error {
		tokens = append(tokens, token)
		for i := 1; i < len(list); i++ {
			assert.Less(t, list[i-1].DocID, list[i].DocID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"assembly", "force", "gear"}, tokens)
}

func TestBooleanAlgebra(t *testing.T) {
	a := NewTable()
	a.Add("x", 1, Title, 0)
	a.Add("x", 2, Title, 0)
	a.Add("x", 3, Title, 0)
	b := NewTable()
	b.Add("y", 2, Abstract, 1)
	b.Add("y", 4, Abstract, 1)

	and := a.Intersect(b)
	assert.Equal(t, []uint32{2}, and.DocIDs())
	assert.True(t, and.HasToken("x"))
	assert.True(t, and.HasToken("y"))
	for _, d := range and.DocIDs() {
		assert.True(t, a.Contains(d), "A∧B ⊆ A")
	}

	or := a.Union(b)
	assert.Equal(t, []uint32{1, 2, 3, 4}, or.DocIDs())
	for _, d := range a.DocIDs() {
		assert.True(t, or.Contains(d), "A∨B ⊇ A")
	}

	not := a.Difference(b)
	assert.Equal(t, []uint32{1, 3}, not.DocIDs())
	_, ok := not.Get("x", 2)
	assert.False(t, ok)

	assert.True(t, a.Intersect(a.Difference(a)).IsEmpty(), "A∧¬A = ∅")
	assert.Equal(t, a.DocIDs(), a.Union(a.Difference(b)).DocIDs())

	// operands are not mutated
	assert.Equal(t, []uint32{1, 2, 3}, a.DocIDs())
	assert.Equal(t, []uint32{2, 4}, b.DocIDs())
}

func TestUnionMergesSharedCells(t *testing.T) {
	a := NewTable()
	a.Add("gear", 1, Abstract, 1)
	b := NewTable()
	b.Add("gear", 1, Abstract, 7)
	b.Add("gear", 1, Title, 0)

	ps, ok := a.Union(b).Get("gear", 1)
	require.True(t, ok)
	assert.Equal(t, []uint32{1, 7}, ps[Abstract])
	assert.Equal(t, []uint32{0}, ps[Title])
}

func TestDocsOnlyTable(t *testing.T) {
	links := TableFromDocs([]uint32{9, 4})
	assert.Equal(t, []uint32{4, 9}, links.DocIDs())
	assert.Empty(t, links.Tokens())

	other := sampleTable()
	assert.Equal(t, []uint32{1, 2, 3, 4, 9}, other.Union(links).DocIDs())
	assert.True(t, other.Intersect(links).IsEmpty())
}
