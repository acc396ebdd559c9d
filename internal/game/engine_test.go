package game

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine() *Engine {
	return NewEngine(NewService(nil, 7), zap.NewNop())
}

func TestSeedHidesCorrectOption(t *testing.T) {
	e := newTestEngine()
	state := e.Seed(context.Background(), "s1", 2)

	require.Equal(t, StatusActive, state.Status)
	require.Len(t, state.Options, optionCount)
	for _, opt := range state.Options {
		assert.False(t, opt.IsCorrect, "active session must not reveal the answer")
	}

	// Same through State().
	view, err := e.State("s1")
	require.NoError(t, err)
	for _, opt := range view.Options {
		assert.False(t, opt.IsCorrect)
	}
}

func TestGuessFlow(t *testing.T) {
	e := newTestEngine()
	base := time.Now()
	now := base
	e.now = func() time.Time { return now }

	e.Seed(context.Background(), "s1", 3)
	now = base.Add(2 * time.Second)

	res, err := e.SubmitGuess("s1", 0)
	require.NoError(t, err)
	assert.Equal(t, "s1", res.SessionID)
	assert.InDelta(t, 2.0, res.TimeTaken, 0.01)
	assert.GreaterOrEqual(t, res.CorrectOption, 0)

	if res.IsCorrect {
		// difficulty 3, 2s in: 300 + (50-10)
		assert.Equal(t, 340, res.Score)
	} else {
		assert.Zero(t, res.Score)
	}

	// Completed state now carries the resolution.
	view, err := e.State("s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, view.Status)
	require.NotNil(t, view.UserAnswer)
	assert.Equal(t, 0, *view.UserAnswer)

	// Guessing twice is rejected.
	_, err = e.SubmitGuess("s1", 1)
	assert.ErrorIs(t, err, ErrSessionCompleted)
}

// Sessions seed concurrently from the HTTP layer, so round generation has to
// be safe without the engine mutex. Run with -race.
func TestConcurrentSeed(t *testing.T) {
	e := newTestEngine()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e.Seed(context.Background(), fmt.Sprintf("s%d", id), 1+id%5)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		state, err := e.State(fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		assert.Len(t, state.Options, optionCount)
	}
}

func TestUnknownSession(t *testing.T) {
	e := newTestEngine()

	_, err := e.SubmitGuess("missing", 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = e.State("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
