package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/seeklist"
)

// Writer streams ascending entries into a new segment. Files are written
// under temporary names and only renamed into place by Close, so readers
// never observe a partial segment.
type Writer[K, V any] struct {
	schema Schema[K, V]
	base   string
	file   *os.File
	w      *codec.Writer
	seek   *seeklist.SeekList[K]
	count  int32
	closed bool
}

// Create starts a segment at base (without extension).
func Create[K, V any](schema Schema[K, V], base string) (*Writer[K, V], error) {
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return nil, fmt.Errorf("creating segment directory: %w", err)
	}
	seg, _ := Paths(base)
	f, err := os.Create(seg + tmpExt)
	if err != nil {
		return nil, fmt.Errorf("creating temp segment file: %w", err)
	}
	w := &Writer[K, V]{
		schema: schema,
		base:   base,
		file:   f,
		w:      codec.NewWriter(f, schema.Encoding),
		seek:   schema.newSeekList(),
	}
	// placeholder, patched on Close
	if err := w.w.WriteFixedInt(0); err != nil {
		w.Abort()
		return nil, fmt.Errorf("writing segment header: %w", err)
	}
	return w, nil
}

// Append writes one entry. Keys must arrive strictly ascending.
func (w *Writer[K, V]) Append(key K, value V) error {
	if _, err := w.seek.Put(key, w.w.Offset()); err != nil {
		return fmt.Errorf("appending entry %d: %w", w.count, err)
	}
	if err := w.schema.Keys.WriteKey(w.w, key); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	w.w.StartSkip()
	if err := w.schema.Values.WriteValue(w.w, value); err != nil {
		return fmt.Errorf("writing value: %w", err)
	}
	if err := w.w.EndSkip(); err != nil {
		return fmt.Errorf("closing value frame: %w", err)
	}
	w.count++
	return nil
}

// Count is the number of entries appended so far.
func (w *Writer[K, V]) Count() int { return int(w.count) }

// Size is the number of segment bytes produced so far.
func (w *Writer[K, V]) Size() int64 { return w.w.Offset() }

// Close finishes the segment, writes its seek list and publishes both files.
func (w *Writer[K, V]) Close() error {
	if w.closed {
		return nil
	}
	if err := w.finish(); err != nil {
		w.Abort()
		return err
	}
	w.closed = true
	seg, seek := Paths(w.base)
	if err := os.Rename(seek+tmpExt, seek); err != nil {
		w.Abort()
		return fmt.Errorf("renaming seek list file: %w", err)
	}
	if err := os.Rename(seg+tmpExt, seg); err != nil {
		os.Remove(seek)
		w.Abort()
		return fmt.Errorf("renaming segment file: %w", err)
	}
	return nil
}

func (w *Writer[K, V]) finish() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flushing segment: %w", err)
	}
	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(w.count))
	if _, err := w.file.WriteAt(header[:], 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("syncing segment file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing segment file: %w", err)
	}
	_, seek := Paths(w.base)
	return w.seek.WriteFile(seek + tmpExt)
}

// Abort discards everything written so far.
func (w *Writer[K, V]) Abort() {
	w.closed = true
	w.file.Close()
	seg, seek := Paths(w.base)
	os.Remove(seg + tmpExt)
	os.Remove(seek + tmpExt)
}

// Remove deletes a published segment and its seek list.
func Remove(base string) error {
	seg, seek := Paths(base)
	err1 := os.Remove(seg)
	err2 := os.Remove(seek)
	if err1 != nil && !errors.Is(err1, os.ErrNotExist) {
		return err1
	}
	if err2 != nil && !errors.Is(err2, os.ErrNotExist) {
		return err2
	}
	return nil
}
