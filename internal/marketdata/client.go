// Package marketdata fetches raw time-series data from an Alpha
// Vantage-compatible provider.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// Raw payload keys the ETL layer transforms from.
const (
	DailySeriesKey  = "Time Series (Daily)"
	CryptoSeriesKey = "Time Series (Digital Currency Daily)"
)

type Config struct {
	APIKey  string
	BaseURL string        // "" => Alpha Vantage
	Timeout time.Duration // 0 => 10s
}

// Client fetches market data over HTTP. Every call is bounded by the client
// timeout; failures are returned as errors, never fatal.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	log        *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.APIKey == "" {
		log.Warn("market data API key not configured; provider calls will be rejected upstream")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		log:        log,
	}
}

// DailySeries fetches daily candles for a stock symbol. outputSize is
// "compact" (last 100 points) or "full".
func (c *Client) DailySeries(ctx context.Context, symbol, outputSize string) (map[string]any, error) {
	if outputSize == "" {
		outputSize = "compact"
	}
	return c.query(ctx, url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {outputSize},
	})
}

// IntradaySeries fetches intraday candles at the given interval
// (1min, 5min, 15min, 30min, 60min).
func (c *Client) IntradaySeries(ctx context.Context, symbol, interval string) (map[string]any, error) {
	if interval == "" {
		interval = "5min"
	}
	return c.query(ctx, url.Values{
		"function": {"TIME_SERIES_INTRADAY"},
		"symbol":   {symbol},
		"interval": {interval},
	})
}

// CryptoSeries fetches daily candles for a cryptocurrency in the given market
// currency (default USD).
func (c *Client) CryptoSeries(ctx context.Context, symbol, market string) (map[string]any, error) {
	if market == "" {
		market = "USD"
	}
	return c.query(ctx, url.Values{
		"function": {"DIGITAL_CURRENCY_DAILY"},
		"symbol":   {symbol},
		"market":   {market},
	})
}

func (c *Client) query(ctx context.Context, params url.Values) (map[string]any, error) {
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("marketdata: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("market data request failed",
			zap.String("function", params.Get("function")),
			zap.String("symbol", params.Get("symbol")),
			zap.Error(err))
		return nil, fmt.Errorf("marketdata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketdata: unexpected status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("marketdata: decode response: %w", err)
	}

	// The provider reports quota/parameter problems inside a 200 response.
	if msg, ok := payload["Error Message"].(string); ok {
		return nil, fmt.Errorf("marketdata: provider error: %s", msg)
	}
	return payload, nil
}
