// Package validator checks ingestion requests and reports per-field
// failures.
package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/ingestion"
)

const (
	maxTitleLength    = 1024
	maxAbstractLength = 65536
	maxCitations      = 4096
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, field := range keys {
		parts[i] = fmt.Sprintf("%s:%s", field, e.Fields[field])
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest requires a patent id, some text within the length
// bounds, no self citation and an importance score in [0, 1].
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	if req.ID == 0 {
		errs["id"] = "id is required"
	}
	title := strings.TrimSpace(req.Title)
	abstract := strings.TrimSpace(req.Abstract)
	if title == "" && abstract == "" {
		errs["title"] = "title or abstract is required"
	}
	if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(abstract) > maxAbstractLength {
		errs["abstract"] = fmt.Sprintf("abstract must be at most %d characters", maxAbstractLength)
	}
	if len(req.Citations) > maxCitations {
		errs["citations"] = fmt.Sprintf("at most %d citations", maxCitations)
	} else if req.ID != 0 && slices.Contains(req.Citations, req.ID) {
		errs["citations"] = "a patent cannot cite itself"
	}
	if req.Importance != nil && (*req.Importance < 0 || *req.Importance > 1) {
		errs["importance"] = "importance must be within [0, 1]"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
