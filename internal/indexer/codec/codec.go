// Package codec implements the primitive wire encodings of the index files.
// Two encodings exist: fixed-width big-endian and varint/delta compressed.
// Skip areas frame a sub-record with a fixed-width length so a reader can
// step over it without decoding.
package codec

import (
	"errors"
	"fmt"
)

// Encoding selects how ints, longs and strings inside value blobs are written.
type Encoding uint8

const (
	Uncompressed Encoding = iota
	Compressed
)

// maxStringLen bounds string reads so a corrupt length cannot force a huge allocation.
const maxStringLen = 1 << 20

var (
	ErrUnsorted       = errors.New("sequence is not ascending")
	ErrOpenSkipArea   = errors.New("skip area still open")
	ErrNoSkipArea     = errors.New("no open skip area")
	ErrStringTooLarge = errors.New("string length out of range")
)

// EncodingFor maps the index.compressed config switch to an Encoding.
func EncodingFor(compressed bool) Encoding {
	if compressed {
		return Compressed
	}
	return Uncompressed
}

func (e Encoding) String() string {
	switch e {
	case Uncompressed:
		return "uncompressed"
	case Compressed:
		return "compressed"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}
