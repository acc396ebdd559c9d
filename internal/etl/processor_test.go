package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chartpulse/backend/cache"
	"github.com/chartpulse/backend/cache/provider/memory"
	"github.com/chartpulse/backend/internal/indicators"
	"github.com/chartpulse/backend/internal/marketdata"
)

type stubFetcher struct {
	daily      map[string]any
	crypto     map[string]any
	dailyCalls int
	err        error
}

func (f *stubFetcher) DailySeries(context.Context, string, string) (map[string]any, error) {
	f.dailyCalls++
	return f.daily, f.err
}

func (f *stubFetcher) CryptoSeries(context.Context, string, string) (map[string]any, error) {
	return f.crypto, f.err
}

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	// Two in-process tiers stand in for redis+memory; failover behavior is
	// covered by the cache package itself.
	c, err := cache.New(cache.Options{
		Remote:   memory.New(64),
		Fallback: memory.New(64),
	})
	require.NoError(t, err)
	return c
}

func dailyPayload() map[string]any {
	return map[string]any{
		marketdata.DailySeriesKey: map[string]any{
			"2024-03-04": map[string]any{
				"1. open": "102.0", "2. high": "108.0", "3. low": "101.0",
				"4. close": "107.0", "5. volume": "12000",
			},
			"2024-03-01": map[string]any{
				"1. open": "100.0", "2. high": "105.0", "3. low": "95.0",
				"4. close": "102.0", "5. volume": "10000",
			},
		},
	}
}

func TestProcessStock(t *testing.T) {
	cc := newTestCache(t)
	fetcher := &stubFetcher{daily: dailyPayload()}
	p := NewProcessor(cc, fetcher, "", time.Hour, zap.NewNop())

	series, err := p.ProcessStock(context.Background(), "AAPL")
	require.NoError(t, err)

	// Dates come out ascending regardless of map iteration order.
	assert.Equal(t, []string{"2024-03-01", "2024-03-04"}, series.Dates)
	assert.Equal(t, []float64{100, 102}, series.Open)
	assert.Equal(t, []float64{102, 107}, series.Close)
	assert.Equal(t, []float64{10000, 12000}, series.Volume)

	// Processed series landed in the cache under the canonical key.
	var cached Series
	require.True(t, cc.Get(context.Background(), cache.MarketDataKey("AAPL", "stock", ""), &cached))
	assert.Equal(t, series.Dates, cached.Dates)

	// Indicators were computed and cached too.
	var set indicators.Set
	require.True(t, cc.Get(context.Background(), cache.IndicatorKey("stock", "AAPL"), &set))
	assert.Len(t, set.SMA20, series.Len())
}

func TestProcessStockUsesCache(t *testing.T) {
	cc := newTestCache(t)
	fetcher := &stubFetcher{daily: dailyPayload()}
	p := NewProcessor(cc, fetcher, "", time.Hour, zap.NewNop())

	_, err := p.ProcessStock(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = p.ProcessStock(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.dailyCalls, "second run must be served from cache")
}

func TestProcessCrypto(t *testing.T) {
	cc := newTestCache(t)
	fetcher := &stubFetcher{crypto: map[string]any{
		marketdata.CryptoSeriesKey: map[string]any{
			"2024-03-01": map[string]any{
				"1a. open (USD)": "52000.5", "2a. high (USD)": "53000.0",
				"3a. low (USD)": "51000.0", "4a. close (USD)": "52500.25",
				"5. volume": "123.456",
			},
		},
	}}
	p := NewProcessor(cc, fetcher, "", time.Hour, zap.NewNop())

	series, err := p.ProcessCrypto(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, []float64{52000.5}, series.Open)
	assert.Equal(t, []float64{52500.25}, series.Close)
	assert.Equal(t, []float64{123.456}, series.Volume)
}

func TestProcessStockFetchError(t *testing.T) {
	cc := newTestCache(t)
	fetcher := &stubFetcher{err: errors.New("quota exceeded")}
	p := NewProcessor(cc, fetcher, "", time.Hour, zap.NewNop())

	_, err := p.ProcessStock(context.Background(), "AAPL")
	require.Error(t, err)
}

func TestProcessAllSurvivesFailures(t *testing.T) {
	cc := newTestCache(t)
	fetcher := &stubFetcher{err: errors.New("provider down")}
	p := NewProcessor(cc, fetcher, "", time.Hour, zap.NewNop())
	p.StockSymbols = []string{"AAPL", "MSFT"}
	p.CryptoSymbols = []string{"BTC"}

	// Per-symbol failures are logged, not propagated.
	require.NoError(t, p.ProcessAll(context.Background()))
}

func TestSafeFloat(t *testing.T) {
	assert.Equal(t, 123.45, safeFloat("123.45"))
	assert.Equal(t, 7.0, safeFloat(7.0))
	assert.Equal(t, 0.0, safeFloat("not a number"))
	assert.Equal(t, 0.0, safeFloat(nil))
}

func TestNextRun(t *testing.T) {
	loc := time.UTC
	from := time.Date(2024, 3, 1, 0, 30, 0, 0, loc)

	// Later today.
	next := nextRun(from, 1, 0)
	assert.Equal(t, time.Date(2024, 3, 1, 1, 0, 0, 0, loc), next)

	// Already passed: tomorrow.
	next = nextRun(from, 0, 0)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, loc), next)

	// Exactly now: strictly after, so tomorrow.
	at := time.Date(2024, 3, 1, 1, 0, 0, 0, loc)
	next = nextRun(at, 1, 0)
	assert.Equal(t, time.Date(2024, 3, 2, 1, 0, 0, 0, loc), next)
}
