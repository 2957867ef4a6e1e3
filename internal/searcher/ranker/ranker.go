package ranker

import (
	"fmt"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer/posting"
)

const (
	lambda           = 0.2
	tokenWeight      = 0.6
	importanceWeight = 0.4
	// ExpandedFactor scales tokens that feedback added to a query.
	ExpandedFactor = 0.25
)

type ScoredDoc struct {
	DocID uint32  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Corpus supplies the document and collection statistics scoring needs.
type Corpus interface {
	TokenCount(docID uint32, ct posting.ContentType) int
	ScoreOf(docID uint32) float64
	CollectionFrequency(token string) (int, error)
	CollectionLength() int64
}

type Ranker struct {
	corpus Corpus
}

func New(corpus Corpus) *Ranker {
	return &Ranker{corpus: corpus}
}

// Order returns the documents of table newest first, unscored.
func Order(table *posting.Table, limit int) []ScoredDoc {
	ids := table.DocIDs()
	slices.Reverse(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]ScoredDoc, len(ids))
	for i, id := range ids {
		out[i] = ScoredDoc{DocID: id}
	}
	return out
}

// Rank scores the documents of table by query likelihood over its token
// rows blended with document importance. Tokens in expanded are
// down-weighted by ExpandedFactor.
func (r *Ranker) Rank(table *posting.Table, expanded map[string]bool, limit int) ([]ScoredDoc, error) {
	tokens := table.Tokens()
	candidates := Prefilter(table, limit)

	collLen := float64(r.corpus.CollectionLength())
	smoothing := make([]float64, len(tokens))
	for i, token := range tokens {
		cf, err := r.corpus.CollectionFrequency(token)
		if err != nil {
			return nil, fmt.Errorf("collection frequency of %q: %w", token, err)
		}
		if collLen > 0 {
			smoothing[i] = lambda * float64(cf) / collLen
		}
	}

	result := make([]ScoredDoc, 0, len(candidates))
	for _, doc := range candidates {
		var textScore float64
		for _, ct := range posting.ContentTypes {
			docLen := float64(r.corpus.TokenCount(doc, ct))
			product := 1.0
			for i, token := range tokens {
				ps, _ := table.Get(token, doc)
				ql := smoothing[i]
				if docLen > 0 {
					ql += (1 - lambda) * float64(ps.Count(ct)) / docLen
				}
				if expanded[token] {
					ql *= ExpandedFactor
				}
				product *= ql
			}
			textScore += ct.Weight() * product
		}
		score := tokenWeight*textScore + importanceWeight*r.corpus.ScoreOf(doc)
		result = append(result, ScoredDoc{DocID: doc, Score: score})
	}
	slices.SortFunc(result, func(a, b ScoredDoc) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if a.DocID > b.DocID {
			return -1
		}
		if a.DocID < b.DocID {
			return 1
		}
		return 0
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	for i := range result {
		result[i].Score = math.Round(result[i].Score*1e6) / 1e6
	}
	return result, nil
}

// Prefilter narrows the documents of table to those matching the most
// distinct tokens, relaxing the requirement one token at a time until at
// least limit documents remain.
func Prefilter(table *posting.Table, limit int) []uint32 {
	docs := table.DocIDs()
	tokens := table.Tokens()
	if limit <= 0 || len(docs) <= limit || len(tokens) == 0 {
		return docs
	}
	matched := make(map[uint32]int, len(docs))
	for _, token := range tokens {
		for _, p := range table.Row(token) {
			matched[p.DocID]++
		}
	}
	for need := len(tokens); need >= 1; need-- {
		var kept []uint32
		for _, doc := range docs {
			if matched[doc] >= need {
				kept = append(kept, doc)
			}
		}
		if len(kept) >= limit || need == 1 {
			return kept
		}
	}
	return docs
}
