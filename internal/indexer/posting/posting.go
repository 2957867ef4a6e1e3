// Package posting holds the positional postings of the inverted index: the
// content-type enumeration, position sets, per-token posting lists and the
// sparse token×document table the query engine composes.
package posting

import (
	"fmt"
	"slices"
	"strings"
)

// ContentType is a named region of a patent. The numeric order is part of
// the wire format and must not change.
type ContentType uint8

const (
	Title ContentType = iota
	Abstract
)

// NumContentTypes is the size of the enumeration.
const NumContentTypes = 2

// ContentTypes lists every content type in wire order.
var ContentTypes = [NumContentTypes]ContentType{Title, Abstract}

var contentWeights = [NumContentTypes]float64{0.7, 0.3}

var contentNames = [NumContentTypes]string{"title", "abstract"}

// Weight is the ranking weight of the content type.
func (c ContentType) Weight() float64 { return contentWeights[c] }

func (c ContentType) String() string {
	if int(c) < NumContentTypes {
		return contentNames[c]
	}
	return fmt.Sprintf("content(%d)", uint8(c))
}

func ParseContentType(s string) (ContentType, error) {
	for i, name := range contentNames {
		if strings.EqualFold(s, name) {
			return ContentType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown content type %q", s)
}

// PositionSet groups the positions of one token in one document by content
// type. Each slice is strictly increasing.
type PositionSet [NumContentTypes][]uint32

// Add inserts pos keeping the slice sorted and duplicate free.
func (ps *PositionSet) Add(ct ContentType, pos uint32) {
	s := ps[ct]
	if n := len(s); n == 0 || s[n-1] < pos {
		ps[ct] = append(s, pos)
		return
	}
	i, found := slices.BinarySearch(s, pos)
	if found {
		return
	}
	ps[ct] = slices.Insert(s, i, pos)
}

// Merge returns the per-content-type union of ps and other.
func (ps PositionSet) Merge(other PositionSet) PositionSet {
	var out PositionSet
	for ct := range out {
		out[ct] = unionSorted(ps[ct], other[ct])
	}
	return out
}

func (ps PositionSet) Count(ct ContentType) int { return len(ps[ct]) }

// Total is the number of occurrences across content types.
func (ps PositionSet) Total() int {
	n := 0
	for _, s := range ps {
		n += len(s)
	}
	return n
}

func (ps PositionSet) IsEmpty() bool { return ps.Total() == 0 }

func (ps PositionSet) Clone() PositionSet {
	var out PositionSet
	for ct, s := range ps {
		out[ct] = slices.Clone(s)
	}
	return out
}

// Contains reports whether pos occurs in content type ct.
func (ps PositionSet) Contains(ct ContentType, pos uint32) bool {
	_, found := slices.BinarySearch(ps[ct], pos)
	return found
}

func unionSorted(a, b []uint32) []uint32 {
	if len(a) == 0 {
		return slices.Clone(b)
	}
	if len(b) == 0 {
		return slices.Clone(a)
	}
	out := make([]uint32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// Posting is one document's occurrences of a token.
type Posting struct {
	DocID     uint32
	Positions PositionSet
}

// List is a posting list sorted by ascending document id.
type List []Posting

// MergeLists unions two sorted lists; shared documents get merged positions.
func MergeLists(a, b List) List {
	out := make(List, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocID < b[j].DocID:
			out = append(out, a[i])
			i++
		case a[i].DocID > b[j].DocID:
			out = append(out, b[j])
			j++
		default:
			out = append(out, Posting{DocID: a[i].DocID, Positions: a[i].Positions.Merge(b[j].Positions)})
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// Frequency is the total number of positions across the list.
func (l List) Frequency() int {
	n := 0
	for _, p := range l {
		n += p.Positions.Total()
	}
	return n
}
