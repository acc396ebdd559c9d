// Package game implements the chart-guessing game: sessions are seeded with a
// setup window of candles, the player picks which of four continuations is
// real, and correct guesses score by difficulty and speed.
package game

import (
	"context"
	"math/rand"
	"sync"

	"github.com/chartpulse/backend/cache"
	"github.com/chartpulse/backend/internal/etl"
)

const (
	setupCandles        = 50
	continuationCandles = 20
	optionCount         = 4
)

// SessionParams are the randomized parameters of one round.
type SessionParams struct {
	AssetType  string `json:"asset_type"`
	Instrument string `json:"instrument"`
	Timeframe  string `json:"timeframe"`
	Difficulty int    `json:"difficulty"`
}

// Option is one continuation candidate shown to the player.
type Option struct {
	ID        int       `json:"id"`
	Data      []float64 `json:"data"`
	IsCorrect bool      `json:"is_correct,omitempty"`
}

// Round is a fully generated game round: the visible setup window plus the
// continuation options (exactly one correct).
type Round struct {
	Setup    []float64            `json:"setup"`
	Overlays map[string][]float64 `json:"overlays"`
	Options  []Option             `json:"options"`
}

// Service generates rounds and scores answers. Cached market data feeds real
// price windows; symbols without cached data get a synthetic random walk so
// the game keeps working through a cold cache or provider outage.
type Service struct {
	instruments []string
	timeframes  []string
	cache       cache.Cache

	// rand.Rand is not safe for concurrent use and sessions seed in
	// parallel, so every draw goes through the mutex.
	mu  sync.Mutex
	rng *rand.Rand
}

func NewService(c cache.Cache, seed int64) *Service {
	return &Service{
		instruments: []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA"},
		timeframes:  []string{"1min", "5min", "15min", "30min", "60min", "daily"},
		cache:       c,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// GenerateSession picks a random instrument and timeframe for a new round.
func (s *Service) GenerateSession(difficulty int) SessionParams {
	if difficulty < 1 {
		difficulty = 1
	}
	if difficulty > 5 {
		difficulty = 5
	}
	return SessionParams{
		AssetType:  "stock",
		Instrument: s.instruments[s.intn(len(s.instruments))],
		Timeframe:  s.timeframes[s.intn(len(s.timeframes))],
		Difficulty: difficulty,
	}
}

// GenerateRound builds the setup window and continuation options for the
// given session parameters.
func (s *Service) GenerateRound(ctx context.Context, params SessionParams) *Round {
	closes := s.loadCloses(ctx, params)

	setup := closes[:setupCandles]
	actual := closes[setupCandles:]

	correct := s.intn(optionCount)
	options := make([]Option, optionCount)
	for i := range options {
		if i == correct {
			options[i] = Option{ID: i, Data: actual, IsCorrect: true}
			continue
		}
		options[i] = Option{ID: i, Data: s.perturb(actual, params.Difficulty)}
	}

	return &Round{
		Setup:    setup,
		Overlays: s.overlays(ctx, params, setup),
		Options:  options,
	}
}

// CheckAnswer reports whether the chosen option is the real continuation.
func (s *Service) CheckAnswer(answer int, options []Option) bool {
	for _, opt := range options {
		if opt.ID == answer {
			return opt.IsCorrect
		}
	}
	return false
}

// Score awards 100 points per difficulty level plus a speed bonus that decays
// 5 points per second, floored at zero. Wrong answers score nothing.
func (s *Service) Score(correct bool, difficulty int, timeTaken float64) int {
	if !correct {
		return 0
	}
	base := 100 * difficulty
	bonus := int(50 - timeTaken*5)
	if bonus < 0 {
		bonus = 0
	}
	return base + bonus
}

// loadCloses returns setup+continuation closing prices for the instrument,
// preferring cached market data and synthesizing a walk otherwise.
func (s *Service) loadCloses(ctx context.Context, params SessionParams) []float64 {
	need := setupCandles + continuationCandles

	var series etl.Series
	key := cache.MarketDataKey(params.Instrument, params.AssetType, "")
	if s.cache != nil && s.cache.Get(ctx, key, &series) {
		// Bound on the column actually sliced: other writers share the
		// remote store and a series with disagreeing column lengths must
		// degrade to a miss, not panic.
		if n := len(series.Close); n >= need {
			// Random window so repeated rounds on the same symbol differ.
			start := s.intn(n - need + 1)
			return series.Close[start : start+need]
		}
	}
	return s.randomWalk(need)
}

func (s *Service) randomWalk(n int) []float64 {
	out := make([]float64, n)
	price := 100 + s.float64n()*100
	for i := range out {
		price += price * (s.float64n() - 0.5) * 0.02
		out[i] = price
	}
	return out
}

// perturb produces a plausible fake continuation. Lower difficulty distorts
// more, making the real one easier to spot.
func (s *Service) perturb(actual []float64, difficulty int) []float64 {
	scale := 0.06 / float64(difficulty)
	out := make([]float64, len(actual))
	drift := (s.float64n() - 0.5) * scale
	for i, v := range actual {
		noise := (s.float64n() - 0.5) * scale * v
		out[i] = v + v*drift*float64(i)/float64(len(actual)) + noise
	}
	return out
}

func (s *Service) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *Service) float64n() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// overlays attaches cached indicator series trimmed to the setup window, when
// available.
func (s *Service) overlays(ctx context.Context, params SessionParams, setup []float64) map[string][]float64 {
	out := map[string][]float64{}
	if s.cache == nil {
		return out
	}
	var set struct {
		SMA20 []float64 `json:"sma_20"`
		EMA12 []float64 `json:"ema_12"`
	}
	if !s.cache.Get(ctx, cache.IndicatorKey(params.AssetType, params.Instrument), &set) {
		return out
	}
	if len(set.SMA20) >= len(setup) {
		out["sma_20"] = set.SMA20[len(set.SMA20)-len(setup):]
	}
	if len(set.EMA12) >= len(setup) {
		out["ema_12"] = set.EMA12[len(set.EMA12)-len(setup):]
	}
	return out
}
