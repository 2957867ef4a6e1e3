// Package seeklist keeps a sparse, sorted key→offset sample of a segment so a
// lookup can start scanning close to its target instead of at the file head.
package seeklist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/google/btree"
)

// DefaultInterval is how many keys pass between two samples.
const DefaultInterval = 200

var ErrOutOfOrder = errors.New("seek list keys must be put in ascending order")

type entry[K any] struct {
	key    K
	offset int64
}

// SeekList samples the first key and then every interval-th key put.
type SeekList[K any] struct {
	keys     codec.KeyCodec[K]
	interval int
	tree     *btree.BTreeG[entry[K]]
	puts     int
	last     K
}

func New[K any](keys codec.KeyCodec[K], interval int) *SeekList[K] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	less := func(a, b entry[K]) bool { return keys.Compare(a.key, b.key) < 0 }
	return &SeekList[K]{
		keys:     keys,
		interval: interval,
		tree:     btree.NewG(16, less),
	}
}

// Put is called once per distinct key, in ascending order, with the offset
// of the key's entry. It reports whether the key was sampled.
func (s *SeekList[K]) Put(key K, offset int64) (bool, error) {
	if s.puts > 0 && s.keys.Compare(key, s.last) <= 0 {
		return false, ErrOutOfOrder
	}
	s.last = key
	sample := s.puts%s.interval == 0
	s.puts++
	if sample {
		s.tree.ReplaceOrInsert(entry[K]{key: key, offset: offset})
	}
	return sample, nil
}

// Get returns the offset of key if it was sampled, otherwise the offset of
// the greatest sampled key below it. A key below every sample is absent:
// the first key is always sampled, so nothing can precede it. Past the last
// sample the caller scans to the end of the segment.
func (s *SeekList[K]) Get(key K) (int64, bool) {
	var (
		offset int64
		found  bool
	)
	s.tree.DescendLessOrEqual(entry[K]{key: key}, func(e entry[K]) bool {
		offset, found = e.offset, true
		return false
	})
	return offset, found
}

func (s *SeekList[K]) Len() int { return s.tree.Len() }

// Save writes all samples in ascending key order as [key][int64 offset].
func (s *SeekList[K]) Save(w io.Writer) error {
	cw := codec.NewWriter(w, codec.Uncompressed)
	var err error
	s.tree.Ascend(func(e entry[K]) bool {
		if err = s.keys.WriteKey(cw, e.key); err != nil {
			return false
		}
		err = cw.WriteFixedLong(e.offset)
		return err == nil
	})
	if err != nil {
		return fmt.Errorf("writing seek list: %w", err)
	}
	return cw.Flush()
}

// Load reads samples written by Save.
func Load[K any](r codec.Source, keys codec.KeyCodec[K], interval int) (*SeekList[K], error) {
	s := New(keys, interval)
	cr := codec.NewReader(r, codec.Uncompressed)
	for {
		key, err := keys.ReadKey(cr)
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading seek list key: %w", err)
		}
		offset, err := cr.ReadFixedLong()
		if err != nil {
			return nil, fmt.Errorf("reading seek list offset: %w", err)
		}
		s.tree.ReplaceOrInsert(entry[K]{key: key, offset: offset})
		s.last = key
		s.puts++
	}
}

// WriteFile saves the list to path.
func (s *SeekList[K]) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating seek list file: %w", err)
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing seek list file: %w", err)
	}
	return f.Close()
}

// ReadFile loads a list saved with WriteFile.
func ReadFile[K any](path string, keys codec.KeyCodec[K], interval int) (*SeekList[K], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seek list file: %w", err)
	}
	defer f.Close()
	return Load(bufio.NewReader(f), keys, interval)
}
