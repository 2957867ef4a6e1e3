package seeklist

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, s *SeekList[string], n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.Put(fmt.Sprintf("k%04d", i), int64(i*10))
		require.NoError(t, err)
	}
}

func TestSamplingCadence(t *testing.T) {
	s := New[string](codec.StringKeys{}, 3)
	fill(t, s, 10)
	// k0000, k0003, k0006, k0009
	assert.Equal(t, 4, s.Len())

	off, ok := s.Get("k0003")
	require.True(t, ok)
	assert.EqualValues(t, 30, off)

	off, ok = s.Get("k0005")
	require.True(t, ok)
	assert.EqualValues(t, 30, off, "predecessor sample")

	off, ok = s.Get("zzz")
	require.True(t, ok)
	assert.EqualValues(t, 90, off, "past the last sample scans from it")

	_, ok = s.Get("a")
	assert.False(t, ok, "below the first key")
}

func TestFirstKeyAlwaysSampled(t *testing.T) {
	s := New[string](codec.StringKeys{}, 1000)
	fill(t, s, 5)
	assert.Equal(t, 1, s.Len())
	off, ok := s.Get("k0000")
	require.True(t, ok)
	assert.EqualValues(t, 0, off)
}

func TestPutOutOfOrder(t *testing.T) {
	s := New[string](codec.StringKeys{}, 2)
	_, err := s.Put("b", 0)
	require.NoError(t, err)
	_, err = s.Put("a", 4)
	require.ErrorIs(t, err, ErrOutOfOrder)
	_, err = s.Put("b", 4)
	require.ErrorIs(t, err, ErrOutOfOrder)
}

func TestSaveLoad(t *testing.T) {
	s := New[uint32](codec.DocKeys{}, 2)
	for i := uint32(0); i < 9; i++ {
		_, err := s.Put(i*5, int64(i)*100)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))
	loaded, err := Load[uint32](bytes.NewReader(buf.Bytes()), codec.DocKeys{}, 2)
	require.NoError(t, err)
	require.Equal(t, s.Len(), loaded.Len())

	for _, key := range []uint32{0, 3, 10, 11, 39, 1000} {
		want, wantOK := s.Get(key)
		got, gotOK := loaded.Get(key)
		assert.Equal(t, wantOK, gotOK, "key %d", key)
		assert.Equal(t, want, got, "key %d", key)
	}
}

func TestWriteReadFile(t *testing.T) {
	s := New[string](codec.StringKeys{}, 2)
	fill(t, s, 7)
	path := filepath.Join(t.TempDir(), "inverted.seek")
	require.NoError(t, s.WriteFile(path))

	loaded, err := ReadFile[string](path, codec.StringKeys{}, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())
	off, ok := loaded.Get("k0005")
	require.True(t, ok)
	assert.EqualValues(t, 40, off)
}
