// Command ingestion starts the document ingestion HTTP service.
//
// The service accepts patent documents via POST /api/v1/documents and
// /api/v1/documents/batch, validates them, stores importance scores in
// PostgreSQL when enabled, and publishes the documents to the
// documentIngest topic for the next index build.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/importance"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/postgres"
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
	logger.Setup("ingestion", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdown(context.Background())
	}

	checker := health.NewChecker()
	var scores publisher.ScoreStore
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate postgres", "error", err)
			os.Exit(1)
		}
		scores = importance.NewPostgres(db)
		checker.Register("postgres", db, true)
		slog.Info("connected to postgres", "database", cfg.Postgres.Database)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentIngest)

	h := handler.New(publisher.New(producer, scores))
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
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
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
