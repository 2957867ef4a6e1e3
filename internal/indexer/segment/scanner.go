package segment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
)

const scanBufferSize = 256 * 1024

// Scanner reads a whole segment front to back through a large buffer. It is
// the access path for merges and full scans.
type Scanner[K, V any] struct {
	schema Schema[K, V]
	file   *os.File
	r      *codec.Reader
	total  int
	read   int
}

// OpenScanner opens the segment at base for sequential reading.
func OpenScanner[K, V any](schema Schema[K, V], base string) (*Scanner[K, V], error) {
	seg, _ := Paths(base)
	f, err := os.Open(seg)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r := codec.NewReader(bufio.NewReaderSize(f, scanBufferSize), schema.Encoding)
	total, err := r.ReadFixedInt()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	return &Scanner[K, V]{
		schema: schema,
		file:   f,
		r:      r,
		total:  int(total),
	}, nil
}

// Total is the entry count recorded in the header.
func (s *Scanner[K, V]) Total() int { return s.total }

// Next returns the next entry, or io.EOF after the last one.
func (s *Scanner[K, V]) Next() (K, V, error) {
	var (
		key   K
		value V
	)
	if s.read >= s.total {
		return key, value, io.EOF
	}
	key, blob, err := s.nextRaw()
	if err != nil {
		return key, value, err
	}
	value, err = s.schema.Values.ReadValue(codec.NewBytesReader(blob, s.schema.Encoding))
	if err != nil {
		return key, value, fmt.Errorf("decoding value of entry %d: %w", s.read, err)
	}
	return key, value, nil
}

func (s *Scanner[K, V]) nextRaw() (K, []byte, error) {
	key, err := s.schema.Keys.ReadKey(s.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return key, nil, fmt.Errorf("reading key of entry %d: %w", s.read, err)
	}
	blob, err := s.r.ReadSkipArea()
	if err != nil {
		return key, nil, fmt.Errorf("reading value of entry %d: %w", s.read, err)
	}
	s.read++
	return key, blob, nil
}

func (s *Scanner[K, V]) Close() error {
	return s.file.Close()
}

// Scan visits every entry of the segment at base in key order.
func Scan[K, V any](schema Schema[K, V], base string, fn func(K, V) error) error {
	s, err := OpenScanner(schema, base)
	if err != nil {
		return err
	}
	defer s.Close()
	for {
		key, value, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
}
