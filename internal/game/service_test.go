package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartpulse/backend/cache"
	"github.com/chartpulse/backend/cache/provider/memory"
	"github.com/chartpulse/backend/internal/etl"
)

func TestScore(t *testing.T) {
	s := NewService(nil, 1)

	assert.Equal(t, 0, s.Score(false, 5, 0.1), "wrong answers score nothing")
	// Instant correct answer: full speed bonus.
	assert.Equal(t, 150, s.Score(true, 1, 0))
	// 4 seconds in: bonus 50-20.
	assert.Equal(t, 330, s.Score(true, 3, 4))
	// Slow answers keep the base score, the bonus floors at zero.
	assert.Equal(t, 500, s.Score(true, 5, 60))
	// Fractional seconds truncate after the subtraction: 50-1.5 -> 48.
	assert.Equal(t, 148, s.Score(true, 1, 0.3))
	assert.Equal(t, 100, s.Score(true, 1, 9.9))
}

func TestGenerateSessionClampsDifficulty(t *testing.T) {
	s := NewService(nil, 1)

	assert.Equal(t, 1, s.GenerateSession(0).Difficulty)
	assert.Equal(t, 5, s.GenerateSession(9).Difficulty)
	assert.Equal(t, 3, s.GenerateSession(3).Difficulty)
}

func TestGenerateRound(t *testing.T) {
	s := NewService(nil, 42)
	round := s.GenerateRound(context.Background(), s.GenerateSession(2))

	require.Len(t, round.Setup, setupCandles)
	require.Len(t, round.Options, optionCount)

	correct := 0
	for _, opt := range round.Options {
		require.Len(t, opt.Data, continuationCandles)
		if opt.IsCorrect {
			correct++
		}
	}
	assert.Equal(t, 1, correct, "exactly one option must be correct")
}

// Another process sharing the remote store can cache a series whose columns
// disagree in length. Such an entry decodes cleanly, so it has to be handled
// here: treated as a miss, never sliced.
func TestGenerateRoundInconsistentCachedSeries(t *testing.T) {
	cc, err := cache.New(cache.Options{
		Remote:   memory.New(16),
		Fallback: memory.New(16),
	})
	require.NoError(t, err)

	bad := etl.Series{
		Dates: make([]string, 80),
		Close: []float64{1, 2, 3, 4, 5},
	}
	ctx := context.Background()
	for _, instrument := range []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA"} {
		require.True(t, cc.Set(ctx, cache.MarketDataKey(instrument, "stock", ""), &bad, time.Hour))
	}

	s := NewService(cc, 42)
	round := s.GenerateRound(ctx, s.GenerateSession(2))

	// Falls back to a synthetic walk instead of panicking on the short column.
	require.Len(t, round.Setup, setupCandles)
	for _, opt := range round.Options {
		require.Len(t, opt.Data, continuationCandles)
	}
}

func TestCheckAnswer(t *testing.T) {
	s := NewService(nil, 1)
	options := []Option{
		{ID: 0, IsCorrect: false},
		{ID: 1, IsCorrect: true},
		{ID: 2, IsCorrect: false},
	}

	assert.True(t, s.CheckAnswer(1, options))
	assert.False(t, s.CheckAnswer(0, options))
	assert.False(t, s.CheckAnswer(99, options), "unknown option id is wrong, not an error")
}
