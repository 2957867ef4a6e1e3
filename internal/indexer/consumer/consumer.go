// Package consumer feeds parsed patent documents from Kafka into an index
// build and announces finished generations.
package consumer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/kafka"
)

// IndexCompleteEvent announces a newly published index generation.
type IndexCompleteEvent struct {
	Generation  string    `json:"generation"`
	Documents   int64     `json:"documents"`
	Tokens      int       `json:"tokens"`
	PublishedAt time.Time `json:"publishedAt"`
}

// DocumentSink is the part of the indexer engine the consumer drives.
type DocumentSink interface {
	IndexDocument(ctx context.Context, doc indexer.Document) error
}

// HandleMessage returns a Kafka MessageHandler that indexes every document
// event into sink. Undecodable messages are logged and skipped.
func HandleMessage(sink DocumentSink) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		doc, err := kafka.DecodeJSON[indexer.Document](value)
		if err != nil {
			logger.Error("failed to decode document event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := sink.IndexDocument(ctx, doc); err != nil {
			return fmt.Errorf("indexing document %d: %w", doc.ID, err)
		}
		return nil
	}
}

// maxDocumentBytes bounds one JSONL line.
const maxDocumentBytes = 4 << 20

// ReadJSONL indexes one JSON document per line of r into sink and returns
// how many were indexed. Blank lines are skipped; a malformed line fails the
// read with its line number.
func ReadJSONL(ctx context.Context, r io.Reader, sink DocumentSink) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxDocumentBytes)
	n, line := 0, 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var doc indexer.Document
		if err := json.Unmarshal(scanner.Bytes(), &doc); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := sink.IndexDocument(ctx, doc); err != nil {
			return n, fmt.Errorf("line %d: indexing document %d: %w", line, doc.ID, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("reading documents: %w", err)
	}
	return n, nil
}

// Publisher is the part of the Kafka producer used to announce builds.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// AnnounceBuild publishes an IndexCompleteEvent for summary.
func AnnounceBuild(ctx context.Context, p Publisher, summary indexer.Summary) error {
	event := IndexCompleteEvent{
		Generation:  summary.Generation,
		Documents:   summary.Documents,
		Tokens:      summary.Tokens,
		PublishedAt: time.Now().UTC(),
	}
	return p.Publish(ctx, kafka.Event{Key: summary.Generation, Value: event})
}

// HandleIndexComplete returns a MessageHandler that passes every announced
// generation to load. Undecodable messages are logged and skipped.
func HandleIndexComplete(load func(ctx context.Context, event IndexCompleteEvent) error) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-watcher")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IndexCompleteEvent](value)
		if err != nil || event.Generation == "" {
			logger.Error("failed to decode index complete event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := load(ctx, event); err != nil {
			return fmt.Errorf("loading generation %s: %w", event.Generation, err)
		}
		return nil
	}
}

// DocumentEvent wraps doc for publishing to the document topic.
func DocumentEvent(doc indexer.Document) kafka.Event {
	return kafka.Event{Key: strconv.FormatUint(uint64(doc.ID), 10), Value: doc}
}
