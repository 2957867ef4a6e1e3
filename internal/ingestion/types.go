// Package ingestion defines the request and response types of the patent
// document ingestion service.
package ingestion

import "github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer"

// IngestRequest is one patent grant as accepted over HTTP or in a JSONL
// batch. Importance, when present, is stored for the next index build.
type IngestRequest struct {
	ID         uint32   `json:"id"`
	Title      string   `json:"title"`
	Abstract   string   `json:"abstract"`
	Citations  []uint32 `json:"citations,omitempty"`
	Importance *float64 `json:"importance,omitempty"`
}

// Document returns the indexable part of the request.
func (r *IngestRequest) Document() indexer.Document {
	return indexer.Document{
		ID:        r.ID,
		Title:     r.Title,
		Abstract:  r.Abstract,
		Citations: r.Citations,
	}
}

// IngestResponse is returned to the caller after documents are queued.
type IngestResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []uint32 `json:"ids,omitempty"`
	Status   string   `json:"status"`
}
