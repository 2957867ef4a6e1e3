package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{Uncompressed, Compressed} {
		t.Run(enc.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf, enc)
			require.NoError(t, w.WriteInt(0))
			require.NoError(t, w.WriteInt(300))
			require.NoError(t, w.WriteInt(2147483647))
			require.NoError(t, w.WriteLong(1<<40))
			require.NoError(t, w.WriteString("übersetzung"))
			require.NoError(t, w.WriteFloat(0.125))
			require.NoError(t, w.WriteSorted([]uint32{3, 7, 7, 1000, 1001}))
			require.NoError(t, w.WriteFixedString("key"))
			require.NoError(t, w.Flush())
			require.EqualValues(t, buf.Len(), w.Offset())

			r := NewBytesReader(buf.Bytes(), enc)
			i, err := r.ReadInt()
			require.NoError(t, err)
			require.EqualValues(t, 0, i)
			i, err = r.ReadInt()
			require.NoError(t, err)
			require.EqualValues(t, 300, i)
			i, err = r.ReadInt()
			require.NoError(t, err)
			require.EqualValues(t, 2147483647, i)
			l, err := r.ReadLong()
			require.NoError(t, err)
			require.EqualValues(t, int64(1<<40), l)
			s, err := r.ReadString()
			require.NoError(t, err)
			require.Equal(t, "übersetzung", s)
			f, err := r.ReadFloat()
			require.NoError(t, err)
			require.Equal(t, 0.125, f)
			seq, err := r.ReadSorted(5)
			require.NoError(t, err)
			require.Equal(t, []uint32{3, 7, 7, 1000, 1001}, seq)
			s, err = r.ReadFixedString()
			require.NoError(t, err)
			require.Equal(t, "key", s)

			_, err = r.ReadInt()
			require.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestCompressedIsSmaller(t *testing.T) {
	seq := []uint32{100000, 100001, 100005, 100020}
	size := func(enc Encoding) int {
		var buf bytes.Buffer
		w := NewWriter(&buf, enc)
		require.NoError(t, w.WriteSorted(seq))
		require.NoError(t, w.Flush())
		return buf.Len()
	}
	require.Equal(t, 16, size(Uncompressed))
	require.Less(t, size(Compressed), 8)
}

func TestWriteSortedRejectsDescending(t *testing.T) {
	w := NewWriter(io.Discard, Compressed)
	require.ErrorIs(t, w.WriteSorted([]uint32{5, 4}), ErrUnsorted)
}

func TestNestedSkipAreas(t *testing.T) {
	for _, enc := range []Encoding{Uncompressed, Compressed} {
		var buf bytes.Buffer
		w := NewWriter(&buf, enc)
		require.NoError(t, w.WriteFixedInt(7))
		w.StartSkip()
		require.NoError(t, w.WriteInt(1))
		w.StartSkip()
		require.NoError(t, w.WriteString("inner"))
		require.Equal(t, 2, w.Depth())
		require.ErrorIs(t, w.Flush(), ErrOpenSkipArea)
		require.NoError(t, w.EndSkip())
		require.NoError(t, w.WriteInt(2))
		require.NoError(t, w.EndSkip())
		require.NoError(t, w.WriteFixedInt(9))
		require.ErrorIs(t, w.EndSkip(), ErrNoSkipArea)
		require.NoError(t, w.Flush())

		// skip the whole outer area
		r := NewReader(bufio.NewReader(bytes.NewReader(buf.Bytes())), enc)
		v, err := r.ReadFixedInt()
		require.NoError(t, err)
		require.EqualValues(t, 7, v)
		require.NoError(t, r.SkipArea())
		v, err = r.ReadFixedInt()
		require.NoError(t, err)
		require.EqualValues(t, 9, v)

		// descend into it and skip only the inner area
		r = NewBytesReader(buf.Bytes(), enc)
		_, err = r.ReadFixedInt()
		require.NoError(t, err)
		_, err = r.ReadSkipLength()
		require.NoError(t, err)
		v, err = r.ReadInt()
		require.NoError(t, err)
		require.EqualValues(t, 1, v)
		inner, err := r.ReadSkipArea()
		require.NoError(t, err)
		s, err := NewBytesReader(inner, enc).ReadString()
		require.NoError(t, err)
		require.Equal(t, "inner", s)
		v, err = r.ReadInt()
		require.NoError(t, err)
		require.EqualValues(t, 2, v)
	}
}

func TestTruncatedRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Uncompressed)
	w.StartSkip()
	require.NoError(t, w.WriteString("a long enough value"))
	require.NoError(t, w.EndSkip())
	require.NoError(t, w.Flush())

	r := NewBytesReader(buf.Bytes()[:buf.Len()-3], Uncompressed)
	_, err := r.ReadSkipArea()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCorruptCountReadsAsTruncated(t *testing.T) {
	huge := binary.AppendUvarint(nil, 1<<30)
	_, err := NewBytesReader(huge, Compressed).ReadCount()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	negative := binary.AppendUvarint(nil, 0xFFFFFFFF)
	_, err = NewBytesReader(negative, Compressed).ReadCount()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = NewBytesReader([]byte{1, 2}, Compressed).ReadSorted(1 << 30)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	fixed := binary.BigEndian.AppendUint32(nil, 3)
	n, err := NewBytesReader(append(fixed, 0, 0, 0), Uncompressed).ReadCount()
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
