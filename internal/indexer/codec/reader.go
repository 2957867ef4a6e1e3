package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Source is what a Reader decodes from; bufio.Reader and bytes.Reader both qualify.
type Source interface {
	io.Reader
	io.ByteReader
}

type discarder interface {
	Discard(n int) (int, error)
}

// lenner is implemented by in-memory sources that know how many bytes remain.
type lenner interface {
	Len() int
}

// maxPrealloc caps the capacity reserved for a count read from a stream
// whose remaining length is unknown.
const maxPrealloc = 1 << 12

// Reader decodes primitives written by Writer. A clean end of stream before
// a value starts is io.EOF, a stream ending inside a value is io.ErrUnexpectedEOF.
type Reader struct {
	src    Source
	enc    Encoding
	offset int64
	buf    [8]byte
}

func NewReader(src Source, enc Encoding) *Reader {
	return &Reader{src: src, enc: enc}
}

// NewBytesReader decodes a value blob already held in memory.
func NewBytesReader(b []byte, enc Encoding) *Reader {
	return NewReader(bytes.NewReader(b), enc)
}

func (r *Reader) Encoding() Encoding { return r.enc }

// Offset is the number of bytes consumed since construction.
func (r *Reader) Offset() int64 { return r.offset }

func (r *Reader) ReadByte() (byte, error) {
	b, err := r.src.ReadByte()
	if err == nil {
		r.offset++
	}
	return b, err
}

func (r *Reader) readFull(p []byte) error {
	n, err := io.ReadFull(r.src, p)
	r.offset += int64(n)
	return err
}

func (r *Reader) ReadFixedInt() (int32, error) {
	if err := r.readFull(r.buf[:4]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(r.buf[:4])), nil
}

func (r *Reader) ReadFixedLong() (int64, error) {
	if err := r.readFull(r.buf[:8]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(r.buf[:8])), nil
}

func (r *Reader) ReadFixedString() (string, error) {
	n, err := r.ReadFixedInt()
	if err != nil {
		return "", err
	}
	return r.readString(int64(n))
}

func (r *Reader) readString(n int64) (string, error) {
	if n < 0 || n > maxStringLen {
		return "", fmt.Errorf("length %d: %w", n, ErrStringTooLarge)
	}
	p := make([]byte, n)
	if err := r.readFull(p); err != nil {
		return "", unexpected(err)
	}
	return string(p), nil
}

func (r *Reader) ReadInt() (int32, error) {
	if r.enc == Uncompressed {
		return r.ReadFixedInt()
	}
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	return int32(uint32(v)), nil
}

func (r *Reader) ReadLong() (int64, error) {
	if r.enc == Uncompressed {
		return r.ReadFixedLong()
	}
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func (r *Reader) ReadFloat() (float64, error) {
	v, err := r.ReadFixedLong()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

func (r *Reader) ReadString() (string, error) {
	if r.enc == Uncompressed {
		return r.ReadFixedString()
	}
	n, err := r.ReadInt()
	if err != nil {
		return "", err
	}
	return r.readString(int64(uint32(n)))
}

// ReadCount reads an element count. Every element takes at least one byte,
// so a count that is negative or larger than the bytes left in an in-memory
// source marks a corrupt record.
func (r *Reader) ReadCount() (int, error) {
	n, err := r.ReadInt()
	if err != nil {
		return 0, unexpected(err)
	}
	if err := r.checkCount(int(n)); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *Reader) checkCount(n int) error {
	if n < 0 {
		return fmt.Errorf("negative count %d: %w", n, io.ErrUnexpectedEOF)
	}
	if l, ok := r.src.(lenner); ok && n > l.Len() {
		return fmt.Errorf("count %d exceeds %d remaining bytes: %w", n, l.Len(), io.ErrUnexpectedEOF)
	}
	return nil
}

// Capacity is the slice capacity to reserve for n decoded elements.
func Capacity(n int) int {
	return min(n, maxPrealloc)
}

// ReadSorted reads n values written by Writer.WriteSorted.
func (r *Reader) ReadSorted(n int) ([]uint32, error) {
	if err := r.checkCount(n); err != nil {
		return nil, err
	}
	values := make([]uint32, 0, Capacity(n))
	var prev uint32
	for i := 0; i < n; i++ {
		v, err := r.ReadInt()
		if err != nil {
			return nil, unexpected(err)
		}
		cur := uint32(v)
		if r.enc == Compressed && i > 0 {
			cur += prev
		}
		values = append(values, cur)
		prev = cur
	}
	return values, nil
}

// ReadSkipLength reads the fixed-width length that prefixes a skip area.
func (r *Reader) ReadSkipLength() (int32, error) {
	n, err := r.ReadFixedInt()
	if err != nil {
		return 0, unexpected(err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative skip length %d: %w", n, io.ErrUnexpectedEOF)
	}
	return n, nil
}

// ReadSkipArea returns the bytes of the next skip area without decoding them.
func (r *Reader) ReadSkipArea() ([]byte, error) {
	n, err := r.ReadSkipLength()
	if err != nil {
		return nil, err
	}
	p := make([]byte, n)
	if err := r.readFull(p); err != nil {
		return nil, unexpected(err)
	}
	return p, nil
}

// Skip discards n bytes.
func (r *Reader) Skip(n int64) error {
	if d, ok := r.src.(discarder); ok {
		m, err := d.Discard(int(n))
		r.offset += int64(m)
		return unexpected(err)
	}
	m, err := io.CopyN(io.Discard, r.src, n)
	r.offset += m
	return unexpected(err)
}

// SkipArea steps over the next skip area.
func (r *Reader) SkipArea() error {
	n, err := r.ReadSkipLength()
	if err != nil {
		return err
	}
	return r.Skip(int64(n))
}

// unexpected turns a bare EOF inside a record into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
