package importance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticScores(t *testing.T) {
	s := Static{4: 0.75}
	score, err := s.ScoreOf(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 0.75, score)

	score, err = s.ScoreOf(context.Background(), 5)
	require.NoError(t, err)
	assert.Zero(t, score)
}
