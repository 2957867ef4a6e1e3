package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/patent-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/metrics"
)

type Searcher interface {
	Execute(ctx context.Context, q parser.Query, limit int) (*executor.RankedResult, error)
	Generation() string
}

type Options struct {
	DefaultLimit int
	MaxResults   int
}

// CacheHeader reports whether a search was served from the cache: "hit",
// "miss" or "disabled".
const CacheHeader = "X-Cache"

type Handler struct {
	searcher Searcher
	parser   *parser.Parser
	cache    *cache.QueryCache
	opts     Options
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds the search API. queryCache may be nil.
func New(s Searcher, p *parser.Parser, queryCache *cache.QueryCache, opts Options, m *metrics.Metrics) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Handler{
		searcher: s,
		parser:   p,
		cache:    queryCache,
		opts:     opts,
		metrics:  m,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Routes registers the handler's endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	limit := h.opts.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, h.opts.MaxResults)
	}

	q := h.parser.Parse(query)
	compute := func() (*executor.RankedResult, error) {
		return h.searcher.Execute(ctx, q, limit)
	}
	var (
		result   *executor.RankedResult
		err      error
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, h.searcher.Generation(), q.String(), limit, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	status := "miss"
	switch {
	case h.cache == nil:
		status = "disabled"
	case cacheHit:
		status = "hit"
	}
	latency := time.Since(start)
	h.metrics.ObserveSearch(status, latency)
	log.Info("search completed",
		"query", query,
		"kind", result.Kind,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache", status,
		"latency_ms", latency.Milliseconds(),
	)
	w.Header().Set(CacheHeader, status)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its HTTP status. Only AppError messages reach
// the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
