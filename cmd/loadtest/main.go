// Command loadtest drives the search API with a mix of keyword, phrase,
// boolean, citation and feedback queries and reports latency percentiles.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-queries queries.txt]
package main

import (
	"bufio"
	"cmp"
	"context"
	"flag"
	"fmt"
	"io"
	"maps"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/handler"
	"github.com/dustin/go-humanize"
)

var defaultQueries = []string{
	"gear assembly",
	"brake",
	"rotat* shaft",
	`"gear assembly"`,
	`"rotational force" clutch`,
	"gear AND brake",
	"clutch OR coupling",
	"assembly NOT conveyor",
	"linkTo:1",
	`"gear assembly" OR linkTo:2`,
	"clutch #3",
	`"brake assembly" #2`,
	"gaer",
	"conveyr belt",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Queries     []string
}

// Stats aggregates outcomes across workers. Latencies are kept per query
// so the report can show which query kinds are slow.
type Stats struct {
	total     atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64
	bytesRead atomic.Int64

	mu       sync.Mutex
	byQuery  map[string][]time.Duration
	byStatus map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		byQuery:  make(map[string][]time.Duration),
		byStatus: make(map[int]int64),
	}
}

func (s *Stats) Record(query string, elapsed time.Duration, status int, cacheHit bool) {
	s.total.Add(1)
	if status < 200 || status >= 300 {
		s.failed.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.byQuery[query] = append(s.byQuery[query], elapsed)
	s.byStatus[status]++
	s.mu.Unlock()
}

func (s *Stats) RecordError() {
	s.total.Add(1)
	s.failed.Add(1)
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "results requested per query")
	queryFile := flag.String("queries", "", "file with one query per line; empty uses a built-in mix")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := loadQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Limit:       *limit,
		Queries:     queries,
	}

	fmt.Println("=== Patent Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func loadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" {
			out = append(out, q)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s holds no queries", path)
	}
	return out, nil
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			queryIdx := workerID
			for ctx.Err() == nil {
				query := cfg.Queries[queryIdx%len(cfg.Queries)]
				queryIdx++

				searchURL := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d",
					cfg.BaseURL, url.QueryEscape(query), cfg.Limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
				if err != nil {
					stats.RecordError()
					continue
				}

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordError()
					}
					continue
				}
				n, _ := io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.bytesRead.Add(n)
				stats.Record(query, elapsed, resp.StatusCode, resp.Header.Get(handler.CacheHeader) == "hit")
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.total.Load()
	failed := stats.failed.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %s\n", humanize.Comma(total))
	fmt.Printf("Failed:          %s\n", humanize.Comma(failed))
	fmt.Printf("Cache Hits:      %s\n", humanize.Comma(stats.cacheHits.Load()))
	fmt.Printf("Bytes Read:      %s\n", humanize.Bytes(uint64(stats.bytesRead.Load())))
	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the search service running?")
		os.Exit(1)
	}
	fmt.Printf("Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())

	stats.mu.Lock()
	defer stats.mu.Unlock()

	var all []time.Duration
	queries := make([]string, 0, len(stats.byQuery))
	for q, lat := range stats.byQuery {
		queries = append(queries, q)
		slices.Sort(lat)
		all = append(all, lat...)
	}
	if len(all) > 0 {
		slices.Sort(all)
		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", all[0])
		fmt.Printf("Mean:   %s\n", mean(all))
		fmt.Printf("P50:    %s\n", percentile(all, 50))
		fmt.Printf("P90:    %s\n", percentile(all, 90))
		fmt.Printf("P99:    %s\n", percentile(all, 99))
		fmt.Printf("Max:    %s\n", all[len(all)-1])
	}

	// slowest queries first
	slices.SortFunc(queries, func(a, b string) int {
		return cmp.Compare(percentile(stats.byQuery[b], 95), percentile(stats.byQuery[a], 95))
	})
	fmt.Println()
	fmt.Println("=== By Query (p50 / p95) ===")
	for _, q := range queries {
		lat := stats.byQuery[q]
		fmt.Printf("  %-32q %10s %10s  n=%d\n", q, percentile(lat, 50), percentile(lat, 95), len(lat))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := slices.Sorted(maps.Keys(stats.byStatus))
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.byStatus[code])
	}
}

func mean(d []time.Duration) time.Duration {
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
