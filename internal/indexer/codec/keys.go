package codec

import (
	"cmp"
	"strings"
)

// KeyCodec reads, writes and orders the keys of one kind of segment. Keys
// are always written fixed width, independent of the value encoding.
type KeyCodec[K any] interface {
	WriteKey(w *Writer, key K) error
	ReadKey(r *Reader) (K, error)
	Compare(a, b K) int
}

// StringKeys orders tokens by byte order.
type StringKeys struct{}

func (StringKeys) WriteKey(w *Writer, key string) error { return w.WriteFixedString(key) }
func (StringKeys) ReadKey(r *Reader) (string, error)    { return r.ReadFixedString() }
func (StringKeys) Compare(a, b string) int              { return strings.Compare(a, b) }

// DocKeys orders document ids numerically.
type DocKeys struct{}

func (DocKeys) WriteKey(w *Writer, key uint32) error { return w.WriteFixedInt(int32(key)) }

func (DocKeys) ReadKey(r *Reader) (uint32, error) {
	v, err := r.ReadFixedInt()
	return uint32(v), err
}

func (DocKeys) Compare(a, b uint32) int { return cmp.Compare(a, b) }
