// Package benchmark contains Go benchmarks for index construction, the
// segment reader and the query engine over a synthetic patent corpus.
package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/tokenizer"
)

var vocabulary = []string{
	"gear", "brake", "clutch", "shaft", "assembly", "coupling", "rotational",
	"conveyor", "vehicle", "transmission", "bearing", "housing", "piston",
	"valve", "sensor", "actuator", "spring", "lever", "pulley", "motor",
}

func patent(id int) indexer.Document {
	w := func(k int) string { return vocabulary[(id*7+k*3)%len(vocabulary)] }
	var cites []uint32
	if id > 1 {
		cites = []uint32{uint32(id/2 + 1)}
	}
	return indexer.Document{
		ID:        uint32(id + 1),
		Title:     fmt.Sprintf("%s %s %s", w(0), w(1), w(2)),
		Abstract:  fmt.Sprintf("A %s for %s the %s of a %s with a %s %s", w(3), w(4), w(5), w(6), w(7), w(8)),
		Citations: cites,
	}
}

func buildCorpus(b *testing.B, dataDir string, docs int, enc codec.Encoding, flushBytes int64) indexer.Summary {
	b.Helper()
	opts := indexer.Options{
		DataDir:             dataDir,
		TempDir:             filepath.Join(dataDir, "tmp"),
		Encoding:            enc,
		SeekInterval:        64,
		FlushThresholdBytes: flushBytes,
	}
	eng, err := indexer.NewEngine(opts, tokenizer.New(), nil, nil)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < docs; i++ {
		if err := eng.IndexDocument(ctx, patent(i)); err != nil {
			b.Fatal(err)
		}
	}
	summary, err := eng.Finish()
	if err != nil {
		b.Fatal(err)
	}
	return summary
}

// BenchmarkBuild measures a full build, including flushes and the final
// merge, at several corpus sizes and both encodings.
func BenchmarkBuild(b *testing.B) {
	for _, enc := range []codec.Encoding{codec.Uncompressed, codec.Compressed} {
		for _, docs := range []int{100, 1000, 5000} {
			b.Run(fmt.Sprintf("%s/docs_%d", enc, docs), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					buildCorpus(b, b.TempDir(), docs, enc, 0)
				}
			})
		}
	}
}

// BenchmarkBuildBoundedMemory forces frequent flushes so the k-way merge
// dominates.
func BenchmarkBuildBoundedMemory(b *testing.B) {
	for _, threshold := range []int64{16 << 10, 256 << 10} {
		b.Run(fmt.Sprintf("flush_%d", threshold), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				summary := buildCorpus(b, b.TempDir(), 2000, codec.Compressed, threshold)
				b.ReportMetric(float64(summary.Flushes), "flushes/op")
			}
		})
	}
}

// BenchmarkLookup measures exact and prefix lookups against a published
// generation.
func BenchmarkLookup(b *testing.B) {
	dataDir := b.TempDir()
	buildCorpus(b, dataDir, 5000, codec.Compressed, 0)
	ix, err := indexer.Open(dataDir)
	if err != nil {
		b.Fatal(err)
	}
	defer ix.Close()

	b.Run("exact", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := ix.Lookup("gear", false); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("prefix", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := ix.Lookup("b", true); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("parallel", func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := ix.Lookup("shaft", false); err != nil {
					b.Error(err)
					return
				}
			}
		})
	})
}
