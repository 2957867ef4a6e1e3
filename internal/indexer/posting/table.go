package posting

import (
	"maps"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// approximate bookkeeping cost of one (token, document) cell
const cellOverhead = 64

// Table is a sparse token × document matrix of position sets. Its document
// space may hold documents with no token rows, as produced by citation
// lookups. A Table is not safe for concurrent mutation.
type Table struct {
	rows map[string]map[uint32]*PositionSet
	docs *roaring.Bitmap
	size int64
}

func NewTable() *Table {
	return &Table{
		rows: make(map[string]map[uint32]*PositionSet),
		docs: roaring.New(),
	}
}

// TableFromDocs builds a table whose document space is docs and which has no rows.
func TableFromDocs(docs []uint32) *Table {
	t := NewTable()
	t.docs.AddMany(docs)
	return t
}

func (t *Table) cell(token string, doc uint32) *PositionSet {
	row, ok := t.rows[token]
	if !ok {
		row = make(map[uint32]*PositionSet)
		t.rows[token] = row
	}
	ps, ok := row[doc]
	if !ok {
		ps = new(PositionSet)
		row[doc] = ps
		t.docs.Add(doc)
		t.size += int64(len(token)) + cellOverhead
	}
	return ps
}

// Add records one occurrence.
func (t *Table) Add(token string, doc uint32, ct ContentType, pos uint32) {
	ps := t.cell(token, doc)
	before := len(ps[ct])
	ps.Add(ct, pos)
	t.size += 4 * int64(len(ps[ct])-before)
}

// AddPosting merges p into the row of token.
func (t *Table) AddPosting(token string, p Posting) {
	ps := t.cell(token, p.DocID)
	before := ps.Total()
	*ps = ps.Merge(p.Positions)
	t.size += 4 * int64(ps.Total()-before)
}

// AddList merges a whole posting list into the row of token.
func (t *Table) AddList(token string, list List) {
	for _, p := range list {
		t.AddPosting(token, p)
	}
}

// Get returns the positions of token in doc.
func (t *Table) Get(token string, doc uint32) (PositionSet, bool) {
	ps, ok := t.rows[token][doc]
	if !ok {
		return PositionSet{}, false
	}
	return *ps, true
}

// Row returns every posting of token sorted by document id.
func (t *Table) Row(token string) List {
	row := t.rows[token]
	list := make(List, 0, len(row))
	for _, doc := range slices.Sorted(maps.Keys(row)) {
		list = append(list, Posting{DocID: doc, Positions: *row[doc]})
	}
	return list
}

// Column returns every token of doc with its positions.
func (t *Table) Column(doc uint32) map[string]PositionSet {
	col := make(map[string]PositionSet)
	for token, row := range t.rows {
		if ps, ok := row[doc]; ok {
			col[token] = *ps
		}
	}
	return col
}

// Tokens returns the row keys in ascending order.
func (t *Table) Tokens() []string {
	return slices.Sorted(maps.Keys(t.rows))
}

// HasToken reports whether token has a row.
func (t *Table) HasToken(token string) bool {
	_, ok := t.rows[token]
	return ok
}

// Docs returns the document space. Callers must not modify it.
func (t *Table) Docs() *roaring.Bitmap { return t.docs }

// DocIDs returns the document space in ascending order.
func (t *Table) DocIDs() []uint32 { return t.docs.ToArray() }

func (t *Table) Contains(doc uint32) bool { return t.docs.Contains(doc) }

// Len is the number of documents.
func (t *Table) Len() int { return int(t.docs.GetCardinality()) }

func (t *Table) IsEmpty() bool { return t.docs.IsEmpty() }

// SizeBytes estimates the memory held by the table.
func (t *Table) SizeBytes() int64 { return t.size }

// Reset drops all rows so the memory can be reclaimed.
func (t *Table) Reset() {
	t.rows = make(map[string]map[uint32]*PositionSet)
	t.docs = roaring.New()
	t.size = 0
}

// Ascend visits every row in token order with its sorted posting list.
func (t *Table) Ascend(fn func(token string, list List) error) error {
	for _, token := range t.Tokens() {
		if err := fn(token, t.Row(token)); err != nil {
			return err
		}
	}
	return nil
}

// Union returns the disjunction of t and o; shared cells merge positions.
func (t *Table) Union(o *Table) *Table {
	out := t.Restrict(t.docs)
	for token, row := range o.rows {
		for doc, ps := range row {
			out.AddPosting(token, Posting{DocID: doc, Positions: *ps})
		}
	}
	out.docs.Or(o.docs)
	return out
}

// Intersect keeps the documents present in both tables and the postings of
// both for those documents.
func (t *Table) Intersect(o *Table) *Table {
	docs := roaring.And(t.docs, o.docs)
	out := t.Restrict(docs)
	for token, row := range o.rows {
		for doc, ps := range row {
			if docs.Contains(doc) {
				out.AddPosting(token, Posting{DocID: doc, Positions: *ps})
			}
		}
	}
	return out
}

// Difference keeps the documents of t that are not in o.
func (t *Table) Difference(o *Table) *Table {
	return t.Restrict(roaring.AndNot(t.docs, o.docs))
}

// Restrict returns a copy of t limited to docs.
func (t *Table) Restrict(docs *roaring.Bitmap) *Table {
	out := NewTable()
	for token, row := range t.rows {
		for doc, ps := range row {
			if docs.Contains(doc) {
				out.AddPosting(token, Posting{DocID: doc, Positions: *ps})
			}
		}
	}
	out.docs.Or(roaring.And(t.docs, docs))
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table { return t.Restrict(t.docs) }
