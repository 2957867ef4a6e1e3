// Command indexer builds one index generation from the patent corpus and
// announces it on the indexComplete topic.
//
// Documents come from a JSONL file when -input is set, otherwise from the
// documentIngest topic, read from the beginning until it stays idle for
// kafka.idleTimeout.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-input patents.jsonl]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/importance"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/resilience"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	input := flag.String("input", "", "JSONL file of patent documents; empty reads the document topic")
	announce := flag.Bool("announce", true, "publish an indexComplete event when the build is published")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("indexer", cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *input, *announce); err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, input string, announce bool) error {
	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdown(context.Background())
	}

	var scorer indexer.ImportanceScorer = importance.Static{}
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		scorer = importance.NewPostgres(db)
		slog.Info("importance scores from postgres", "database", cfg.Postgres.Database)
	}

	opts := indexer.Options{
		DataDir:             cfg.Index.DataDir,
		TempDir:             cfg.Index.TempDir,
		Encoding:            codec.EncodingFor(cfg.Index.Compressed),
		SeekInterval:        cfg.Index.SeekInterval,
		FlushThresholdBytes: cfg.Index.FlushThresholdBytes,
		KeepGenerations:     cfg.Index.KeepGenerations,
	}
	engine, err := indexer.NewEngine(opts, tokenizer.New(), scorer, m)
	if err != nil {
		return err
	}
	slog.Info("starting index build",
		"data_dir", opts.DataDir,
		"encoding", opts.Encoding,
		"seek_interval", opts.SeekInterval,
		"flush_threshold", humanize.IBytes(uint64(opts.FlushThresholdBytes)),
	)

	var read int
	if input != "" {
		read, err = readFile(ctx, input, engine)
	} else {
		c := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, cfg.Kafka.ConsumerGroup, true, consumer.HandleMessage(engine))
		read, err = c.Drain(ctx, cfg.Kafka.IdleTimeout)
		if closeErr := c.Close(); closeErr != nil {
			slog.Warn("closing document consumer", "error", closeErr)
		}
	}
	if err != nil {
		engine.Abort()
		return fmt.Errorf("reading documents after %d: %w", read, err)
	}

	summary, err := engine.Finish()
	if err != nil {
		return err
	}
	slog.Info("index generation published",
		"generation", summary.Generation,
		"documents", humanize.Comma(summary.Documents),
		"tokens", humanize.Comma(int64(summary.Tokens)),
		"flushes", summary.Flushes,
		"duration", summary.Duration,
	)

	if !announce {
		return nil
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()
	err = resilience.Retry(ctx, "announce build", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func(ctx context.Context) error {
		return consumer.AnnounceBuild(ctx, producer, summary)
	})
	if err != nil {
		return fmt.Errorf("announcing %s: %w", summary.Generation, err)
	}
	return nil
}

func readFile(ctx context.Context, path string, sink consumer.DocumentSink) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return consumer.ReadJSONL(ctx, f, sink)
}
