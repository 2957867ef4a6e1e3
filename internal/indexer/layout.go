package indexer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/posting"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/patent-search/pkg/errors"
)

// A data directory holds numbered generations, each a complete index:
//
//	CURRENT            name of the live generation
//	gen-000001/        inverted, documents, citations, contents (.seg + .seek) and corpus.stats
//
// A build writes a fresh generation and then replaces CURRENT, so readers
// only ever open complete generations.

const (
	InvertedIndex  = "inverted"
	DocumentsIndex = "documents"
	CitationsIndex = "citations"
	ContentsIndex  = "contents"

	currentFile   = "CURRENT"
	statsFile     = "corpus.stats"
	genPrefix     = "gen-"
	statsVersion  = 1
	defaultKeep   = 2
)

func invertedSchema(enc codec.Encoding, interval int) segment.Schema[string, posting.List] {
	return segment.Schema[string, posting.List]{Keys: codec.StringKeys{}, Values: posting.ListCodec{}, Encoding: enc, SeekInterval: interval}
}

func documentsSchema(enc codec.Encoding, interval int) segment.Schema[uint32, DocumentInfo] {
	return segment.Schema[uint32, DocumentInfo]{Keys: codec.DocKeys{}, Values: documentCodec{}, Encoding: enc, SeekInterval: interval}
}

func citationsSchema(enc codec.Encoding, interval int) segment.Schema[uint32, []uint32] {
	return segment.Schema[uint32, []uint32]{Keys: codec.DocKeys{}, Values: citationCodec{}, Encoding: enc, SeekInterval: interval}
}

func contentsSchema(enc codec.Encoding, interval int) segment.Schema[uint32, Contents] {
	return segment.Schema[uint32, Contents]{Keys: codec.DocKeys{}, Values: contentsCodec{}, Encoding: enc, SeekInterval: interval}
}

// CorpusStats are the collection-wide figures the ranker smooths with.
// They also record the format parameters of their generation.
type CorpusStats struct {
	Encoding     codec.Encoding
	SeekInterval int
	Documents    int64
	Tokens       [posting.NumContentTypes]int64
}

// CollectionLength is the token count over all content types.
func (s CorpusStats) CollectionLength() int64 {
	var n int64
	for _, t := range s.Tokens {
		n += t
	}
	return n
}

func writeStats(path string, s CorpusStats) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating stats file: %w", err)
	}
	w := codec.NewWriter(f, codec.Uncompressed)
	err = errors.Join(
		w.WriteFixedInt(statsVersion),
		w.WriteFixedInt(int32(s.Encoding)),
		w.WriteFixedInt(int32(s.SeekInterval)),
		w.WriteFixedLong(s.Documents),
	)
	for _, t := range s.Tokens {
		err = errors.Join(err, w.WriteFixedLong(t))
	}
	err = errors.Join(err, w.Flush())
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing stats file: %w", err)
	}
	return os.Rename(tmp, path)
}

func readStats(path string) (CorpusStats, error) {
	var s CorpusStats
	f, err := os.Open(path)
	if err != nil {
		return s, fmt.Errorf("opening stats file: %w", err)
	}
	defer f.Close()
	r := codec.NewReader(bufio.NewReader(f), codec.Uncompressed)
	fields := make([]int64, 0, 4+posting.NumContentTypes)
	for i := 0; i < 3; i++ {
		v, err := r.ReadFixedInt()
		if err != nil {
			return s, fmt.Errorf("reading stats header: %w", err)
		}
		fields = append(fields, int64(v))
	}
	if fields[0] != statsVersion {
		return s, fmt.Errorf("stats version %d: %w", fields[0], apperrors.ErrCorruptSegment)
	}
	for i := 0; i < 1+posting.NumContentTypes; i++ {
		v, err := r.ReadFixedLong()
		if err != nil {
			return s, fmt.Errorf("reading stats: %w", err)
		}
		fields = append(fields, v)
	}
	s.Encoding = codec.Encoding(fields[1])
	s.SeekInterval = int(fields[2])
	s.Documents = fields[3]
	copy(s.Tokens[:], fields[4:])
	return s, nil
}

// CurrentGeneration returns the directory of the live generation in dataDir.
func CurrentGeneration(dataDir string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dataDir, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("no index published in %s: %w", dataDir, apperrors.ErrIndexNotReady)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", currentFile, err)
	}
	return filepath.Join(dataDir, strings.TrimSpace(string(b))), nil
}

func generations(dataDir string) ([]int, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	var gens []int
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), genPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), genPrefix))
		if err != nil {
			continue
		}
		gens = append(gens, n)
	}
	slices.Sort(gens)
	return gens, nil
}

func generationName(n int) string {
	return fmt.Sprintf("%s%06d", genPrefix, n)
}

// removeGeneration deletes a generation directory during pruning.
var removeGeneration = os.RemoveAll

// publish points CURRENT at gen.
func publish(dataDir, gen string) error {
	path := filepath.Join(dataDir, currentFile)
	if err := os.WriteFile(path+".tmp", []byte(gen+"\n"), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", currentFile, err)
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		return fmt.Errorf("publishing %s: %w", gen, err)
	}
	return nil
}

// prune removes all but the newest keep generations. It stops at the first
// directory that cannot be removed.
func prune(dataDir string, keep int) error {
	if keep <= 0 {
		keep = defaultKeep
	}
	gens, err := generations(dataDir)
	if err != nil {
		return err
	}
	for len(gens) > keep {
		if err := removeGeneration(filepath.Join(dataDir, generationName(gens[0]))); err != nil {
			return fmt.Errorf("pruning %s: %w", generationName(gens[0]), err)
		}
		gens = gens[1:]
	}
	return nil
}
