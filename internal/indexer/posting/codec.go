package posting

import (
	"errors"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
)

// A posting list value is laid out as
//
//	[int docCount]
//	per document: [int docID or gap][int count per content type][skip area: positions]
//
// Document ids and positions are gap-encoded in compressed mode. The nested
// skip area lets a reader take the header of every document and defer the
// positions until they are needed.

// Header is the eagerly decoded part of a posting.
type Header struct {
	DocID   uint32
	Counts  [NumContentTypes]int
	Payload Payload
}

// Total is the number of occurrences in the document.
func (h Header) Total() int {
	n := 0
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// Payload is a handle to positions that have not been decoded yet.
type Payload struct {
	raw    []byte
	enc    codec.Encoding
	counts [NumContentTypes]int
}

// Load decodes the positions.
func (p Payload) Load() (PositionSet, error) {
	var ps PositionSet
	r := codec.NewBytesReader(p.raw, p.enc)
	for ct, n := range p.counts {
		if n == 0 {
			continue
		}
		values, err := r.ReadSorted(n)
		if err != nil {
			return ps, fmt.Errorf("decoding %s positions: %w", ContentType(ct), err)
		}
		ps[ct] = values
	}
	return ps, nil
}

// WriteList encodes a posting list. The caller frames it in a skip area.
func WriteList(w *codec.Writer, list List) error {
	if err := w.WriteInt(int32(len(list))); err != nil {
		return err
	}
	var prev uint32
	for i, p := range list {
		id := p.DocID
		if w.Encoding() == codec.Compressed && i > 0 {
			if id <= prev {
				return fmt.Errorf("document %d after %d: %w", id, prev, codec.ErrUnsorted)
			}
			id -= prev
		}
		prev = p.DocID
		if err := w.WriteInt(int32(id)); err != nil {
			return err
		}
		for _, positions := range p.Positions {
			if err := w.WriteInt(int32(len(positions))); err != nil {
				return err
			}
		}
		w.StartSkip()
		for _, positions := range p.Positions {
			if err := w.WriteSorted(positions); err != nil {
				return err
			}
		}
		if err := w.EndSkip(); err != nil {
			return err
		}
	}
	return nil
}

// ReadHeaders decodes document ids and counts and keeps positions deferred.
func ReadHeaders(r *codec.Reader) ([]Header, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	headers := make([]Header, 0, codec.Capacity(n))
	var prev uint32
	for i := 0; i < n; i++ {
		v, err := r.ReadInt()
		if err != nil {
			return nil, inRecord(err)
		}
		id := uint32(v)
		if r.Encoding() == codec.Compressed && i > 0 {
			id += prev
		}
		prev = id
		h := Header{DocID: id}
		for ct := range h.Counts {
			c, err := r.ReadInt()
			if err != nil {
				return nil, inRecord(err)
			}
			h.Counts[ct] = int(c)
		}
		raw, err := r.ReadSkipArea()
		if err != nil {
			return nil, err
		}
		h.Payload = Payload{raw: raw, enc: r.Encoding(), counts: h.Counts}
		headers = append(headers, h)
	}
	return headers, nil
}

// inRecord reports a stream ending inside a posting list as truncated.
func inRecord(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ReadList decodes a posting list including all positions.
func ReadList(r *codec.Reader) (List, error) {
	headers, err := ReadHeaders(r)
	if err != nil {
		return nil, err
	}
	return Force(headers)
}

// Force loads every deferred payload.
func Force(headers []Header) (List, error) {
	list := make(List, len(headers))
	for i, h := range headers {
		ps, err := h.Payload.Load()
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", h.DocID, err)
		}
		list[i] = Posting{DocID: h.DocID, Positions: ps}
	}
	return list, nil
}

// ListCodec is the value codec of the inverted index: posting lists merged
// by union.
type ListCodec struct{}

func (ListCodec) WriteValue(w *codec.Writer, list List) error { return WriteList(w, list) }
func (ListCodec) ReadValue(r *codec.Reader) (List, error)     { return ReadList(r) }
func (ListCodec) MergeValues(a, b List) List                  { return MergeLists(a, b) }
