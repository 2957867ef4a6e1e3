package indexer

import (
	"fmt"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/posting"
)

// Document is one parsed patent grant as delivered by the upstream parser.
type Document struct {
	ID       uint32 `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	// Citations lists the ids of the patents this one cites.
	Citations []uint32 `json:"citations,omitempty"`
}

// Text returns the raw text of one content type.
func (d Document) Text(ct posting.ContentType) string {
	switch ct {
	case posting.Title:
		return d.Title
	case posting.Abstract:
		return d.Abstract
	}
	return ""
}

// DocumentInfo is the per-document record of the documents index.
type DocumentInfo struct {
	Importance  float64
	TokenCounts [posting.NumContentTypes]int
}

// Length is the token count over all content types.
func (d DocumentInfo) Length() int {
	n := 0
	for _, c := range d.TokenCounts {
		n += c
	}
	return n
}

type documentCodec struct{}

func (documentCodec) WriteValue(w *codec.Writer, d DocumentInfo) error {
	if err := w.WriteFloat(d.Importance); err != nil {
		return err
	}
	for _, c := range d.TokenCounts {
		if err := w.WriteInt(int32(c)); err != nil {
			return err
		}
	}
	return nil
}

func (documentCodec) ReadValue(r *codec.Reader) (DocumentInfo, error) {
	var d DocumentInfo
	v, err := r.ReadFloat()
	if err != nil {
		return d, err
	}
	d.Importance = v
	for ct := range d.TokenCounts {
		c, err := r.ReadInt()
		if err != nil {
			return d, fmt.Errorf("token count of %s: %w", posting.ContentType(ct), err)
		}
		d.TokenCounts[ct] = int(c)
	}
	return d, nil
}

// MergeValues keeps the later record of a document.
func (documentCodec) MergeValues(_, b DocumentInfo) DocumentInfo { return b }

// citationCodec stores the sorted ids of the documents citing a key.
type citationCodec struct{}

func (citationCodec) WriteValue(w *codec.Writer, citing []uint32) error {
	if err := w.WriteInt(int32(len(citing))); err != nil {
		return err
	}
	return w.WriteSorted(citing)
}

func (citationCodec) ReadValue(r *codec.Reader) ([]uint32, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	return r.ReadSorted(n)
}

func (citationCodec) MergeValues(a, b []uint32) []uint32 {
	merged := make([]uint32, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	slices.Sort(merged)
	return slices.Compact(merged)
}

// Contents holds the raw text of a document per content type. It is kept
// for feedback expansion, which needs the words around a match.
type Contents [posting.NumContentTypes]string

type contentsCodec struct{}

func (contentsCodec) WriteValue(w *codec.Writer, c Contents) error {
	for _, text := range c {
		if err := w.WriteString(text); err != nil {
			return err
		}
	}
	return nil
}

func (contentsCodec) ReadValue(r *codec.Reader) (Contents, error) {
	var c Contents
	for ct := range c {
		text, err := r.ReadString()
		if err != nil {
			return c, fmt.Errorf("%s text: %w", posting.ContentType(ct), err)
		}
		c[ct] = text
	}
	return c, nil
}

func (contentsCodec) MergeValues(a, b Contents) Contents {
	for ct, text := range b {
		if text != "" {
			a[ct] = text
		}
	}
	return a
}
