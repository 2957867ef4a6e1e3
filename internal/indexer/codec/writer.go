package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer encodes primitives onto an underlying stream. While a skip area is
// open all writes go to the innermost area's buffer instead.
type Writer struct {
	out     *bufio.Writer
	enc     Encoding
	skips   []*bytes.Buffer
	offset  int64
	scratch [binary.MaxVarintLen64]byte
}

// NewWriter buffers w and encodes values with enc.
func NewWriter(w io.Writer, enc Encoding) *Writer {
	return &Writer{
		out: bufio.NewWriterSize(w, 64*1024),
		enc: enc,
	}
}

func (w *Writer) Encoding() Encoding { return w.enc }

// Offset is the number of bytes emitted to the underlying stream, including
// bytes still sitting in the buffer. Bytes inside open skip areas are not
// counted until the area is closed.
func (w *Writer) Offset() int64 { return w.offset }

// Depth returns the number of open skip areas.
func (w *Writer) Depth() int { return len(w.skips) }

func (w *Writer) write(p []byte) error {
	if n := len(w.skips); n > 0 {
		w.skips[n-1].Write(p)
		return nil
	}
	n, err := w.out.Write(p)
	w.offset += int64(n)
	return err
}

func (w *Writer) WriteFixedInt(v int32) error {
	binary.BigEndian.PutUint32(w.scratch[:4], uint32(v))
	return w.write(w.scratch[:4])
}

func (w *Writer) WriteFixedLong(v int64) error {
	binary.BigEndian.PutUint64(w.scratch[:8], uint64(v))
	return w.write(w.scratch[:8])
}

func (w *Writer) WriteFixedString(s string) error {
	if err := w.WriteFixedInt(int32(len(s))); err != nil {
		return err
	}
	return w.write([]byte(s))
}

func (w *Writer) WriteInt(v int32) error {
	if w.enc == Uncompressed {
		return w.WriteFixedInt(v)
	}
	n := binary.PutUvarint(w.scratch[:], uint64(uint32(v)))
	return w.write(w.scratch[:n])
}

func (w *Writer) WriteLong(v int64) error {
	if w.enc == Uncompressed {
		return w.WriteFixedLong(v)
	}
	n := binary.PutUvarint(w.scratch[:], uint64(v))
	return w.write(w.scratch[:n])
}

// WriteFloat is always fixed width; varint gains nothing on IEEE bits.
func (w *Writer) WriteFloat(v float64) error {
	return w.WriteFixedLong(int64(math.Float64bits(v)))
}

func (w *Writer) WriteString(s string) error {
	if w.enc == Uncompressed {
		return w.WriteFixedString(s)
	}
	if err := w.WriteInt(int32(len(s))); err != nil {
		return err
	}
	return w.write([]byte(s))
}

// WriteSorted writes an ascending sequence without its length. Compressed
// mode stores the first value and then the gaps.
func (w *Writer) WriteSorted(values []uint32) error {
	var prev uint32
	for i, v := range values {
		if i > 0 && v < prev {
			return fmt.Errorf("value %d after %d: %w", v, prev, ErrUnsorted)
		}
		out := v
		if w.enc == Compressed && i > 0 {
			out = v - prev
		}
		if err := w.WriteInt(int32(out)); err != nil {
			return err
		}
		prev = v
	}
	return nil
}

// StartSkip opens a new skip area nested inside any open one.
func (w *Writer) StartSkip() {
	w.skips = append(w.skips, new(bytes.Buffer))
}

// EndSkip closes the innermost skip area and writes its fixed-width length
// followed by its bytes into the enclosing target.
func (w *Writer) EndSkip() error {
	n := len(w.skips)
	if n == 0 {
		return ErrNoSkipArea
	}
	area := w.skips[n-1]
	w.skips = w.skips[:n-1]
	if err := w.WriteFixedInt(int32(area.Len())); err != nil {
		return err
	}
	return w.write(area.Bytes())
}

// Flush pushes buffered bytes to the underlying stream.
func (w *Writer) Flush() error {
	if len(w.skips) > 0 {
		return ErrOpenSkipArea
	}
	return w.out.Flush()
}
