// Command searcher serves the patent search API over the latest published
// index generation and swaps in new generations as the indexer announces
// them.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/patent-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/patent-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("searcher", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Index.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdown(context.Background())
	}

	tok := tokenizer.New()
	p := parser.New(tok)
	engine := executor.New(p, tok, executor.Options{
		PRFWindow: cfg.Search.PRFWindow,
		PRFTerms:  cfg.Search.PRFTerms,
	}, m)
	defer engine.Close()

	ix, err := indexer.Open(cfg.Index.DataDir)
	switch {
	case err == nil:
		if err := engine.Swap(ix); err != nil {
			slog.Error("failed to attach index", "error", err)
			os.Exit(1)
		}
	case errors.Is(err, apperrors.ErrIndexNotReady):
		slog.Warn("no index published yet, waiting for the indexer", "data_dir", cfg.Index.DataDir)
	default:
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("index", health.PingerFunc(func(ctx context.Context) error {
		if engine.Generation() == "" {
			return apperrors.ErrIndexNotReady
		}
		return nil
	}), true)

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		var redisClient *pkgredis.Client
		err := resilience.Retry(ctx, "redis connect", resilience.RetryConfig{}, func(ctx context.Context) error {
			var connErr error
			redisClient, connErr = pkgredis.NewClient(ctx, cfg.Redis)
			return connErr
		})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.BreakerConfig{})
			queryCache = cache.New(cache.Guard(redisClient, breaker), cfg.Redis.CacheTTL, m)
			checker.Register("redis", redisClient, false)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	watcher := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, watcherGroup(cfg), false,
		consumer.HandleIndexComplete(func(ctx context.Context, ev consumer.IndexCompleteEvent) error {
			if ev.Generation == engine.Generation() {
				return nil
			}
			next, err := indexer.OpenGeneration(filepath.Join(cfg.Index.DataDir, ev.Generation))
			if err != nil {
				return err
			}
			if err := engine.Swap(next); err != nil {
				slog.Warn("previous generation did not close cleanly", "error", err)
			}
			if queryCache != nil {
				if err := queryCache.Invalidate(ctx); err != nil {
					slog.Warn("cache invalidation after swap failed", "error", err)
				}
			}
			return nil
		}))
	defer watcher.Close()
	go func() {
		if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("index watcher stopped", "error", err)
		}
	}()

	h := handler.New(engine, p, queryCache, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	}, m)
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// watcherGroup gives every searcher replica its own consumer group so each
// one sees every announcement.
func watcherGroup(cfg *config.Config) string {
	host, err := os.Hostname()
	if err != nil {
		host = "local"
	}
	return fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, host)
}
