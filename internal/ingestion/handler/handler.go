package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/patent-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/logger"
)

const (
	maxBatchBytes = 64 << 20
	maxLineBytes  = 1 << 20
)

type Handler struct {
	publisher *publisher.Publisher
	logger    *slog.Logger
}

func New(pub *publisher.Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Routes registers the handler's endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("POST /api/v1/documents/batch", h.IngestBatch)
}

// Ingest accepts one JSON document.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestion.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		h.writeValidation(w, err, 0)
		return
	}
	h.publish(w, r, []ingestion.IngestRequest{req})
}

// IngestBatch accepts newline-delimited JSON documents. The batch is
// rejected as a whole if any line is invalid.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	scanner := bufio.NewScanner(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	var reqs []ingestion.IngestRequest
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var req ingestion.IngestRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("line %d: invalid JSON", line))
			return
		}
		if err := validator.ValidateIngestRequest(&req); err != nil {
			h.writeValidation(w, err, line)
			return
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		h.writeError(w, http.StatusBadRequest, "reading batch: "+err.Error())
		return
	}
	h.publish(w, r, reqs)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request, reqs []ingestion.IngestRequest) {
	log := logger.FromContext(r.Context())
	resp, err := h.publisher.Ingest(r.Context(), reqs)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"error", err,
			"documents", len(reqs),
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("documents ingested", "accepted", resp.Accepted)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) writeValidation(w http.ResponseWriter, err error, line int) {
	var validationErr *validator.ValidationError
	if !errors.As(err, &validationErr) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body := map[string]any{
		"error":  "validation failed",
		"fields": validationErr.Fields,
	}
	if line > 0 {
		body["line"] = line
	}
	h.writeJSON(w, http.StatusBadRequest, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
