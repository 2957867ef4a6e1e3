// Package spelling suggests index tokens for query tokens the index does
// not hold.
package spelling

import (
	"fmt"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/patent-search/internal/indexer"
)

const (
	MaxDistance   = 3
	maxLengthDiff = 2
)

// Vocabulary lists index tokens by prefix with their collection frequency.
type Vocabulary interface {
	TokensWithPrefix(prefix string) ([]indexer.TokenFrequency, error)
}

type Corrector struct {
	vocab Vocabulary
}

func New(vocab Vocabulary) *Corrector {
	return &Corrector{vocab: vocab}
}

// Correct returns the closest token sharing the first character of token.
// Ties go to the more frequent token.
func (c *Corrector) Correct(token string) (string, bool, error) {
	first, size := utf8.DecodeRuneInString(token)
	if size == 0 || first == utf8.RuneError {
		return "", false, nil
	}
	candidates, err := c.vocab.TokensWithPrefix(token[:size])
	if err != nil {
		return "", false, fmt.Errorf("listing candidates for %q: %w", token, err)
	}
	target := []rune(token)
	var (
		best     indexer.TokenFrequency
		bestDist = MaxDistance + 1
	)
	for _, cand := range candidates {
		if cand.Token == token {
			continue
		}
		runes := []rune(cand.Token)
		if abs(len(runes)-len(target)) > maxLengthDiff {
			continue
		}
		d := Distance(target, runes, MaxDistance)
		if d < bestDist || (d == bestDist && cand.Frequency > best.Frequency) {
			best, bestDist = cand, d
		}
	}
	if bestDist > MaxDistance {
		return "", false, nil
	}
	return best.Token, true, nil
}

// Distance is the optimal-string-alignment Damerau-Levenshtein distance of
// a and b, or limit+1 once it is known to exceed limit.
func Distance(a, b []rune, limit int) int {
	if abs(len(a)-len(b)) > limit {
		return limit + 1
	}
	prev2 := make([]int, len(b)+1)
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d := min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				d = min(d, prev2[j-2]+1)
			}
			cur[j] = d
			rowMin = min(rowMin, d)
		}
		if rowMin > limit {
			return limit + 1
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return min(prev[len(b)], limit+1)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
