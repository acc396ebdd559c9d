// Package etl extracts raw market data from the provider, transforms it into
// the column-oriented shape the game consumes, and loads it into the cache.
package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chartpulse/backend/cache"
	"github.com/chartpulse/backend/internal/indicators"
	"github.com/chartpulse/backend/internal/marketdata"
)

// Series is processed market data in column-oriented form, dates ascending.
type Series struct {
	Dates  []string  `json:"dates"`
	Open   []float64 `json:"open"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
	Close  []float64 `json:"close"`
	Volume []float64 `json:"volume"`
}

// Len reports the number of candles in the series.
func (s *Series) Len() int { return len(s.Dates) }

// Fetcher is the slice of the market data client the processor needs.
type Fetcher interface {
	DailySeries(ctx context.Context, symbol, outputSize string) (map[string]any, error)
	CryptoSeries(ctx context.Context, symbol, market string) (map[string]any, error)
}

// DefaultStockSymbols and DefaultCryptoSymbols seed the nightly batch when no
// explicit lists are configured.
var (
	DefaultStockSymbols  = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META"}
	DefaultCryptoSymbols = []string{"BTC", "ETH", "SOL", "ADA", "DOT"}
)

type Processor struct {
	cache   cache.Cache
	fetcher Fetcher
	log     *zap.Logger
	dataDir string
	ttl     time.Duration

	StockSymbols  []string
	CryptoSymbols []string
}

func NewProcessor(c cache.Cache, fetcher Fetcher, dataDir string, ttl time.Duration, log *zap.Logger) *Processor {
	return &Processor{
		cache:         c,
		fetcher:       fetcher,
		log:           log,
		dataDir:       dataDir,
		ttl:           ttl,
		StockSymbols:  DefaultStockSymbols,
		CryptoSymbols: DefaultCryptoSymbols,
	}
}

// ProcessAll refreshes every configured symbol. Individual symbol failures
// are logged and do not abort the batch; the returned error aggregates them
// for the caller's visibility.
func (p *Processor) ProcessAll(ctx context.Context) error {
	p.log.Info("starting full data processing")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, symbol := range p.StockSymbols {
		symbol := symbol
		g.Go(func() error {
			if _, err := p.ProcessStock(ctx, symbol); err != nil {
				p.log.Error("stock processing failed", zap.String("symbol", symbol), zap.Error(err))
			}
			return nil
		})
	}
	for _, symbol := range p.CryptoSymbols {
		symbol := symbol
		g.Go(func() error {
			if _, err := p.ProcessCrypto(ctx, symbol); err != nil {
				p.log.Error("crypto processing failed", zap.String("symbol", symbol), zap.Error(err))
			}
			return nil
		})
	}

	err := g.Wait()
	p.log.Info("completed full data processing")
	return err
}

// ProcessStock runs the pipeline for one stock symbol: cache check, fetch on
// miss, transform, cache, snapshot to disk, then compute and cache its
// indicator set.
func (p *Processor) ProcessStock(ctx context.Context, symbol string) (*Series, error) {
	key := cache.MarketDataKey(symbol, "stock", "")

	var series Series
	if p.cache.Get(ctx, key, &series) {
		p.log.Debug("using cached data", zap.String("symbol", symbol))
	} else {
		raw, err := p.fetcher.DailySeries(ctx, symbol, "compact")
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", symbol, err)
		}
		ts, ok := raw[marketdata.DailySeriesKey].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected daily payload shape for %s", symbol)
		}
		series = transform(ts, stockFields)

		p.cache.Set(ctx, key, &series, p.ttl)
		p.saveSnapshot(symbol, "stock", &series)
		p.log.Info("processed and cached data", zap.String("symbol", symbol))
	}

	p.cacheIndicators(ctx, "stock", symbol, &series)
	return &series, nil
}

// ProcessCrypto is the crypto variant of the pipeline.
func (p *Processor) ProcessCrypto(ctx context.Context, symbol string) (*Series, error) {
	key := cache.MarketDataKey(symbol, "crypto", "")

	var series Series
	if p.cache.Get(ctx, key, &series) {
		p.log.Debug("using cached data", zap.String("symbol", symbol))
	} else {
		raw, err := p.fetcher.CryptoSeries(ctx, symbol, "USD")
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", symbol, err)
		}
		ts, ok := raw[marketdata.CryptoSeriesKey].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected crypto payload shape for %s", symbol)
		}
		series = transform(ts, cryptoFields)

		p.cache.Set(ctx, key, &series, p.ttl)
		p.saveSnapshot(symbol, "crypto", &series)
		p.log.Info("processed and cached data", zap.String("symbol", symbol))
	}

	p.cacheIndicators(ctx, "crypto", symbol, &series)
	return &series, nil
}

func (p *Processor) cacheIndicators(ctx context.Context, assetType, symbol string, series *Series) {
	set := indicators.Compute(series.Close).Sanitized()
	key := cache.IndicatorKey(assetType, symbol)
	if !p.cache.Set(ctx, key, set, p.ttl) {
		p.log.Warn("failed to cache indicators", zap.String("symbol", symbol))
		return
	}
	p.log.Debug("cached technical indicators", zap.String("symbol", symbol))
}

// saveSnapshot persists the processed series to the data dir. Best effort:
// the cache tiers are the source the app reads from, snapshots only aid
// debugging and re-seeding.
func (p *Processor) saveSnapshot(symbol, dataType string, series *Series) {
	if p.dataDir == "" {
		return
	}
	if err := os.MkdirAll(p.dataDir, 0o755); err != nil {
		p.log.Warn("cannot create data dir", zap.Error(err))
		return
	}
	path := filepath.Join(p.dataDir, fmt.Sprintf("%s_%s.json", dataType, symbol))
	b, err := json.Marshal(series)
	if err != nil {
		p.log.Warn("snapshot marshal failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		p.log.Warn("snapshot write failed", zap.String("path", path), zap.Error(err))
	}
}

// fieldNames maps the raw per-candle keys for one asset class.
type fieldNames struct {
	open, high, low, close, volume string
}

var (
	stockFields = fieldNames{
		open: "1. open", high: "2. high", low: "3. low",
		close: "4. close", volume: "5. volume",
	}
	cryptoFields = fieldNames{
		open: "1a. open (USD)", high: "2a. high (USD)", low: "3a. low (USD)",
		close: "4a. close (USD)", volume: "5. volume",
	}
)

// transform converts a raw date-keyed time series into column form with
// ascending dates. Unparseable or non-finite numbers become 0 rather than
// poisoning the JSON payload downstream.
func transform(ts map[string]any, fields fieldNames) Series {
	dates := make([]string, 0, len(ts))
	for d := range ts {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	s := Series{
		Dates:  dates,
		Open:   make([]float64, 0, len(dates)),
		High:   make([]float64, 0, len(dates)),
		Low:    make([]float64, 0, len(dates)),
		Close:  make([]float64, 0, len(dates)),
		Volume: make([]float64, 0, len(dates)),
	}
	for _, d := range dates {
		candle, _ := ts[d].(map[string]any)
		s.Open = append(s.Open, safeFloat(candle[fields.open]))
		s.High = append(s.High, safeFloat(candle[fields.high]))
		s.Low = append(s.Low, safeFloat(candle[fields.low]))
		s.Close = append(s.Close, safeFloat(candle[fields.close]))
		s.Volume = append(s.Volume, safeFloat(candle[fields.volume]))
	}
	return s
}

// safeFloat converts a raw provider value to a finite float64; anything
// missing, unparseable, NaN, or infinite becomes 0.
func safeFloat(v any) float64 {
	var f float64
	switch vv := v.(type) {
	case float64:
		f = vv
	case string:
		parsed, err := strconv.ParseFloat(vv, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
