// Package publisher stores importance scores and queues patent documents on
// Kafka for the next index build.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/importance"
	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/kafka"
)

// Producer is the part of the Kafka producer the publisher uses.
type Producer interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// ScoreStore persists importance scores.
type ScoreStore interface {
	Store(ctx context.Context, scores importance.Static) error
}

type Publisher struct {
	producer Producer
	scores   ScoreStore
	logger   *slog.Logger
}

// New creates a Publisher. scores may be nil, in which case importance
// values in requests are ignored.
func New(producer Producer, scores ScoreStore) *Publisher {
	return &Publisher{
		producer: producer,
		scores:   scores,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest stores the scores carried by reqs, then publishes the documents.
// Scores go first so the build that consumes the documents sees them.
func (p *Publisher) Ingest(ctx context.Context, reqs []ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	if len(reqs) == 0 {
		return &ingestion.IngestResponse{Status: "EMPTY"}, nil
	}
	scores := make(importance.Static)
	events := make([]kafka.Event, len(reqs))
	ids := make([]uint32, len(reqs))
	for i := range reqs {
		if reqs[i].Importance != nil {
			scores[reqs[i].ID] = *reqs[i].Importance
		}
		events[i] = consumer.DocumentEvent(reqs[i].Document())
		ids[i] = reqs[i].ID
	}

	if len(scores) > 0 {
		if p.scores == nil {
			p.logger.Warn("importance store disabled, dropping scores", "count", len(scores))
		} else if err := p.scores.Store(ctx, scores); err != nil {
			return nil, fmt.Errorf("storing importance scores: %w", err)
		}
	}
	if err := p.producer.PublishBatch(ctx, events); err != nil {
		return nil, fmt.Errorf("publishing %d documents: %w", len(events), err)
	}
	p.logger.Info("documents queued", "count", len(events), "scored", len(scores))
	return &ingestion.IngestResponse{Accepted: len(events), IDs: ids, Status: "QUEUED"}, nil
}
