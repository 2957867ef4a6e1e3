package posting

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionSetAddKeepsOrder(t *testing.T) {
	var ps PositionSet
	for _, p := range []uint32{5, 1, 9, 5, 3} {
		ps.Add(Abstract, p)
	}
	assert.Equal(t, []uint32{1, 3, 5, 9}, ps[Abstract])
	assert.Empty(t, ps[Title])
	assert.Equal(t, 4, ps.Total())
	assert.True(t, ps.Contains(Abstract, 9))
	assert.False(t, ps.Contains(Title, 9))
}

func TestMergeLists(t *testing.T) {
	a := List{
		{DocID: 1, Positions: PositionSet{{0}, nil}},
		{DocID: 4, Positions: PositionSet{nil, {2, 8}}},
	}
	b := List{
		{DocID: 2, Positions: PositionSet{{1}, nil}},
		{DocID: 4, Positions: PositionSet{{3}, {2, 5}}},
	}
	got := MergeLists(a, b)
	require.Len(t, got, 3)
	assert.Equal(t, []uint32{1, 2, 4}, []uint32{got[0].DocID, got[1].DocID, got[2].DocID})
	assert.Equal(t, []uint32{3}, got[2].Positions[Title])
	assert.Equal(t, []uint32{2, 5, 8}, got[2].Positions[Abstract])
	assert.Equal(t, 6, got.Frequency())
}

func TestListRoundTrip(t *testing.T) {
	list := List{
		{DocID: 3, Positions: PositionSet{{0, 4}, {1, 2, 77}}},
		{DocID: 17, Positions: PositionSet{nil, {0}}},
		{DocID: 4000000, Positions: PositionSet{{12}, nil}},
	}
	for _, enc := range []codec.Encoding{codec.Uncompressed, codec.Compressed} {
		t.Run(enc.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w := codec.NewWriter(&buf, enc)
			require.NoError(t, WriteList(w, list))
			require.NoError(t, w.Flush())

			got, err := ReadList(codec.NewBytesReader(buf.Bytes(), enc))
			require.NoError(t, err)
			require.Len(t, got, len(list))
			for i := range list {
				assert.Equal(t, list[i].DocID, got[i].DocID)
				for ct := range list[i].Positions {
					assert.ElementsMatch(t, list[i].Positions[ct], got[i].Positions[ct])
				}
			}
		})
	}
}

func TestHeadersDeferPayload(t *testing.T) {
	list := List{
		{DocID: 8, Positions: PositionSet{{1}, {3, 4}}},
		{DocID: 9, Positions: PositionSet{nil, {6}}},
	}
	var buf bytes.Buffer
	w := codec.NewWriter(&buf, codec.Compressed)
	require.NoError(t, WriteList(w, list))
	require.NoError(t, w.Flush())

	headers, err := ReadHeaders(codec.NewBytesReader(buf.Bytes(), codec.Compressed))
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, [NumContentTypes]int{1, 2}, headers[0].Counts)
	assert.Equal(t, 3, headers[0].Total())
	assert.Equal(t, 1, headers[1].Total())

	ps, err := headers[1].Payload.Load()
	require.NoError(t, err)
	assert.Equal(t, []uint32{6}, ps[Abstract])
}

func TestWriteListRejectsUnsortedDocuments(t *testing.T) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf, codec.Compressed)
	err := WriteList(w, List{{DocID: 5}, {DocID: 2}})
	require.ErrorIs(t, err, codec.ErrUnsorted)
}

func TestParseContentType(t *testing.T) {
	ct, err := ParseContentType("Abstract")
	require.NoError(t, err)
	assert.Equal(t, Abstract, ct)
	assert.Equal(t, 0.7, Title.Weight())
	_, err = ParseContentType("claims")
	assert.Error(t, err)
}

func TestReadListRejectsCorruptCounts(t *testing.T) {
	blob := binary.AppendUvarint(nil, 0xFFFFFFFF)
	_, err := ReadList(codec.NewBytesReader(blob, codec.Compressed))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// one document whose title count claims far more positions than the blob holds
	var buf bytes.Buffer
	w := codec.NewWriter(&buf, codec.Compressed)
	require.NoError(t, w.WriteInt(1))
	require.NoError(t, w.WriteInt(7))
	require.NoError(t, w.WriteInt(1<<30))
	require.NoError(t, w.WriteInt(0))
	w.StartSkip()
	require.NoError(t, w.WriteSorted([]uint32{1}))
	require.NoError(t, w.EndSkip())
	require.NoError(t, w.Flush())

	_, err = ReadList(codec.NewBytesReader(buf.Bytes(), codec.Compressed))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadList(codec.NewBytesReader(buf.Bytes()[:2], codec.Compressed))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
