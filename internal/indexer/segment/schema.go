// Package segment implements the immutable sorted runs every logical index
// is stored in, plus the generic machinery around them: the segment writer,
// sequential scanner, seek-list-assisted reader, k-way merge and the
// bounded-memory builder that ties flushing and merging together.
//
// On disk a segment is
//
//	[int32 totalCount] ([key][int32 skipLength][value bytes])*
//
// with keys strictly ascending, next to a seek list sampling its entries.
package segment

import (
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/seeklist"
)

const (
	SegmentExt = ".seg"
	SeekExt    = ".seek"
	tmpExt     = ".tmp"

	// headerSize is the fixed-width totalCount at the head of every segment.
	headerSize = 4
)

// ValueCodec reads, writes and combines the values of one kind of index.
type ValueCodec[V any] interface {
	WriteValue(w *codec.Writer, v V) error
	ReadValue(r *codec.Reader) (V, error)
	// MergeValues combines the values of one key found in several segments.
	MergeValues(a, b V) V
}

// Schema is the capability set one logical index is instantiated with.
type Schema[K, V any] struct {
	Keys         codec.KeyCodec[K]
	Values       ValueCodec[V]
	Encoding     codec.Encoding
	SeekInterval int
}

func (s Schema[K, V]) newSeekList() *seeklist.SeekList[K] {
	return seeklist.New(s.Keys, s.SeekInterval)
}

// Paths returns the segment and seek list file names for a base path.
func Paths(base string) (seg, seek string) {
	return base + SegmentExt, base + SeekExt
}
