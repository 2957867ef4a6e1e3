package segment

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/exp/mmap"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/seeklist"
)

const cursorBufferSize = 4096

// Entry is one decoded key/value pair of a segment.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Reader serves point and prefix lookups over a published segment. The
// segment is memory mapped and every lookup runs on its own cursor, so a
// Reader is safe for concurrent use.
type Reader[K, V any] struct {
	schema Schema[K, V]
	base   string
	data   *mmap.ReaderAt
	seek   *seeklist.SeekList[K]
	total  int
	logger *slog.Logger
}

// OpenReader maps the segment at base and loads its seek list.
func OpenReader[K, V any](schema Schema[K, V], base string) (*Reader[K, V], error) {
	segPath, seekPath := Paths(base)
	data, err := mmap.Open(segPath)
	if err != nil {
		return nil, fmt.Errorf("mapping segment file: %w", err)
	}
	if data.Len() < headerSize {
		data.Close()
		return nil, fmt.Errorf("segment %s shorter than its header", segPath)
	}
	var header [headerSize]byte
	if _, err := data.ReadAt(header[:], 0); err != nil {
		data.Close()
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	seek, err := seeklist.ReadFile(seekPath, schema.Keys, schema.SeekInterval)
	if err != nil {
		data.Close()
		return nil, err
	}
	return &Reader[K, V]{
		schema: schema,
		base:   base,
		data:   data,
		seek:   seek,
		total:  int(int32(binary.BigEndian.Uint32(header[:]))),
		logger: slog.Default().With("component", "segment-reader", "segment", base),
	}, nil
}

// Len is the number of entries in the segment.
func (r *Reader[K, V]) Len() int { return r.total }

func (r *Reader[K, V]) Close() error {
	return r.data.Close()
}

func (r *Reader[K, V]) cursor(offset int64) *codec.Reader {
	section := io.NewSectionReader(r.data, offset, int64(r.data.Len())-offset)
	return codec.NewReader(bufio.NewReaderSize(section, cursorBufferSize), r.schema.Encoding)
}

// truncated reports a record cut short by the end of the file. Such records
// read as absent.
func (r *Reader[K, V]) truncated(err error, op string) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		r.logger.Warn("truncated record", "op", op, "error", err)
		return true
	}
	return false
}

// GetRaw returns the undecoded value blob stored under key.
func (r *Reader[K, V]) GetRaw(key K) ([]byte, bool, error) {
	start, ok := r.seek.Get(key)
	if !ok {
		return nil, false, nil
	}
	c := r.cursor(start)
	for {
		k, err := r.schema.Keys.ReadKey(c)
		if errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		if err != nil {
			if r.truncated(err, "get") {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("reading key: %w", err)
		}
		switch cmp := r.schema.Keys.Compare(k, key); {
		case cmp == 0:
			blob, err := c.ReadSkipArea()
			if err != nil {
				if r.truncated(err, "get") {
					return nil, false, nil
				}
				return nil, false, fmt.Errorf("reading value: %w", err)
			}
			return blob, true, nil
		case cmp > 0:
			return nil, false, nil
		}
		if err := c.SkipArea(); err != nil {
			if r.truncated(err, "get") {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("skipping value: %w", err)
		}
	}
}

// Get returns the value stored under key.
func (r *Reader[K, V]) Get(key K) (V, bool, error) {
	var zero V
	blob, ok, err := r.GetRaw(key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := r.Decode(blob)
	if err != nil {
		if r.truncated(err, "decode") {
			return zero, false, nil
		}
		return zero, false, err
	}
	return v, true, nil
}

// Decode decodes a blob returned by GetRaw or ScanPrefix.
func (r *Reader[K, V]) Decode(blob []byte) (V, error) {
	v, err := r.schema.Values.ReadValue(codec.NewBytesReader(blob, r.schema.Encoding))
	if err != nil {
		return v, fmt.Errorf("decoding value: %w", err)
	}
	return v, nil
}

// Encoding is the value encoding of the segment.
func (r *Reader[K, V]) Encoding() codec.Encoding { return r.schema.Encoding }

// ScanPrefix calls fn with the raw value of every key starting with prefix,
// in key order. The scan stops at the first key past the prefix range.
func ScanPrefix[V any](r *Reader[string, V], prefix string, fn func(key string, blob []byte) error) error {
	start, ok := r.seek.Get(prefix)
	if !ok {
		// every key bearing the prefix sorts at or after the first entry
		start = headerSize
	}
	c := r.cursor(start)
	for {
		k, err := r.schema.Keys.ReadKey(c)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if r.truncated(err, "prefix") {
				return nil
			}
			return fmt.Errorf("reading key: %w", err)
		}
		if strings.HasPrefix(k, prefix) {
			blob, err := c.ReadSkipArea()
			if err != nil {
				if r.truncated(err, "prefix") {
					return nil
				}
				return fmt.Errorf("reading value: %w", err)
			}
			if err := fn(k, blob); err != nil {
				return err
			}
			continue
		}
		if k > prefix {
			return nil
		}
		if err := c.SkipArea(); err != nil {
			if r.truncated(err, "prefix") {
				return nil
			}
			return fmt.Errorf("skipping value: %w", err)
		}
	}
}

// LookupPrefix decodes every entry whose key starts with prefix.
func LookupPrefix[V any](r *Reader[string, V], prefix string) ([]Entry[string, V], error) {
	var entries []Entry[string, V]
	err := ScanPrefix(r, prefix, func(key string, blob []byte) error {
		v, err := r.Decode(blob)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		entries = append(entries, Entry[string, V]{Key: key, Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
