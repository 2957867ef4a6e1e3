package segment

import (
	"errors"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	apperrors "github.com/Adithya-Monish-Kumar-K/patent-search/pkg/errors"
)

type mergeCursor[K, V any] struct {
	scanner *Scanner[K, V]
	key     K
	value   V
}

// advance moves the cursor to its next entry. It reports false once the
// underlying segment is exhausted.
func (c *mergeCursor[K, V]) advance(keys codec.KeyCodec[K], first bool) (bool, error) {
	key, value, err := c.scanner.Next()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !first && keys.Compare(key, c.key) <= 0 {
		return false, fmt.Errorf("key %v after %v in %s: %w", key, c.key, c.scanner.file.Name(), apperrors.ErrCorruptSegment)
	}
	c.key, c.value = key, value
	return true, nil
}

// Merge combines the sorted segments at inputs into one segment at out.
// Values of a key present in several inputs are folded with MergeValues in
// input order. Inputs are left in place.
func Merge[K, V any](schema Schema[K, V], inputs []string, out string) (int, error) {
	scanners := make([]*Scanner[K, V], 0, len(inputs))
	defer func() {
		for _, s := range scanners {
			s.Close()
		}
	}()
	cursors := make([]*mergeCursor[K, V], 0, len(inputs))
	for _, in := range inputs {
		s, err := OpenScanner(schema, in)
		if err != nil {
			return 0, err
		}
		scanners = append(scanners, s)
		c := &mergeCursor[K, V]{scanner: s}
		ok, err := c.advance(schema.Keys, true)
		if err != nil {
			return 0, err
		}
		if ok {
			cursors = append(cursors, c)
		}
	}

	w, err := Create(schema, out)
	if err != nil {
		return 0, err
	}
	for len(cursors) > 0 {
		lowest := cursors[0].key
		for _, c := range cursors[1:] {
			if schema.Keys.Compare(c.key, lowest) < 0 {
				lowest = c.key
			}
		}

		var merged V
		contributed := false
		live := cursors[:0]
		for _, c := range cursors {
			if schema.Keys.Compare(c.key, lowest) != 0 {
				live = append(live, c)
				continue
			}
			if contributed {
				merged = schema.Values.MergeValues(merged, c.value)
			} else {
				merged = c.value
				contributed = true
			}
			ok, err := c.advance(schema.Keys, false)
			if err != nil {
				w.Abort()
				return 0, err
			}
			if ok {
				live = append(live, c)
			}
		}
		cursors = live

		if err := w.Append(lowest, merged); err != nil {
			w.Abort()
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Count(), nil
}
