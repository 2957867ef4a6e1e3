// Package importance serves the precomputed citation-graph importance of
// patents. Scores are computed offline and stored in PostgreSQL.
package importance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/patent-search/pkg/postgres"
)

const (
	selectScores = `SELECT patent_id, score FROM patent_importance`
	upsertScore  = `INSERT INTO patent_importance (patent_id, score) VALUES ($1, $2)
		ON CONFLICT (patent_id) DO UPDATE SET score = EXCLUDED.score`
)

// Static is an in-memory score table.
type Static map[uint32]float64

func (s Static) ScoreOf(_ context.Context, docID uint32) (float64, error) {
	return s[docID], nil
}

// Postgres reads the score table once and answers from memory; a build
// asks for every document, so per-document queries would dominate.
type Postgres struct {
	client *postgres.Client
	once   sync.Once
	scores Static
	err    error
	logger *slog.Logger
}

func NewPostgres(client *postgres.Client) *Postgres {
	return &Postgres{
		client: client,
		logger: slog.Default().With("component", "importance"),
	}
}

// ScoreOf returns the score of docID, zero for unscored documents.
func (p *Postgres) ScoreOf(ctx context.Context, docID uint32) (float64, error) {
	p.once.Do(func() { p.scores, p.err = p.load(ctx) })
	if p.err != nil {
		return 0, p.err
	}
	return p.scores[docID], nil
}

func (p *Postgres) load(ctx context.Context) (Static, error) {
	rows, err := p.client.DB.QueryContext(ctx, selectScores)
	if err != nil {
		return nil, fmt.Errorf("querying importance scores: %w", err)
	}
	defer rows.Close()
	scores := make(Static)
	for rows.Next() {
		var (
			id    int64
			score float64
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scanning importance score: %w", err)
		}
		scores[uint32(id)] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading importance scores: %w", err)
	}
	p.logger.Info("importance scores loaded", "count", len(scores))
	return scores, nil
}

// Store upserts scores in one transaction.
func Store(ctx context.Context, client *postgres.Client, scores Static) error {
	return client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertScore)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for id, score := range scores {
			if _, err := stmt.ExecContext(ctx, int64(id), score); err != nil {
				return fmt.Errorf("storing score of %d: %w", id, err)
			}
		}
		return nil
	})
}

// Store upserts scores into the table p reads. Scores already loaded by p
// are not refreshed.
func (p *Postgres) Store(ctx context.Context, scores Static) error {
	return Store(ctx, p.client, scores)
}
