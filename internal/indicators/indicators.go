// Package indicators computes technical-analysis overlays for the game UI.
// Every function returns a slice the same length as its input; positions
// without enough history hold NaN.
package indicators

import "math"

// SMA calculates the simple moving average over the given period.
func SMA(data []float64, period int) []float64 {
	out := nanSlice(len(data))
	if len(data) < period || period <= 0 {
		return out
	}
	var sum float64
	for i, v := range data {
		sum += v
		if i >= period {
			sum -= data[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA calculates the exponential moving average. The first defined value is
// the SMA of the initial window.
func EMA(data []float64, period int) []float64 {
	out := nanSlice(len(data))
	if len(data) < period || period <= 0 {
		return out
	}
	multiplier := 2 / float64(period+1)

	var sum float64
	for _, v := range data[:period] {
		sum += v
	}
	ema := sum / float64(period)
	out[period-1] = ema

	for i := period; i < len(data); i++ {
		ema = (data[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// RSI calculates the relative strength index over a sliding window of price
// changes. Values range 0-100; an all-gain window reads 100.
func RSI(data []float64, period int) []float64 {
	out := nanSlice(len(data))
	if len(data) < period+1 || period <= 0 {
		return out
	}

	deltas := make([]float64, len(data)-1)
	for i := 1; i < len(data); i++ {
		deltas[i-1] = data[i] - data[i-1]
	}

	for i := period; i < len(deltas); i++ {
		var gain, loss float64
		for _, d := range deltas[i-period+1 : i+1] {
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)

		idx := i + 1 // deltas are offset one from prices
		if avgLoss == 0 {
			out[idx] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[idx] = 100 - 100/(1+rs)
	}
	return out
}

// Bands holds the three Bollinger band series.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// BollingerBands computes bands at numStd standard deviations around the
// period SMA.
func BollingerBands(data []float64, period int, numStd float64) Bands {
	middle := SMA(data, period)
	upper := nanSlice(len(data))
	lower := nanSlice(len(data))

	for i := period - 1; i < len(data); i++ {
		window := data[i-period+1 : i+1]
		std := stddev(window, middle[i])
		upper[i] = middle[i] + numStd*std
		lower[i] = middle[i] - numStd*std
	}
	return Bands{Upper: upper, Middle: middle, Lower: lower}
}

// MACDResult holds the MACD line, its signal line, and the histogram.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes moving average convergence/divergence from fast and slow
// EMAs, with a signal EMA over the MACD line.
func MACD(data []float64, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	fast := EMA(data, fastPeriod)
	slow := EMA(data, slowPeriod)

	macd := nanSlice(len(data))
	for i := range data {
		if !math.IsNaN(fast[i]) && !math.IsNaN(slow[i]) {
			macd[i] = fast[i] - slow[i]
		}
	}

	// The signal EMA runs over the defined suffix of the MACD line; NaN
	// prefixes would otherwise poison the whole series.
	signal := nanSlice(len(data))
	start := firstDefined(macd)
	if start >= 0 {
		tail := EMA(macd[start:], signalPeriod)
		copy(signal[start:], tail)
	}

	hist := nanSlice(len(data))
	for i := range data {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signal[i]) {
			hist[i] = macd[i] - signal[i]
		}
	}
	return MACDResult{MACD: macd, Signal: signal, Histogram: hist}
}

// Set aggregates the indicator series the game caches per symbol. Field names
// match the cached JSON layout consumed by the frontend.
type Set struct {
	SMA20         []float64 `json:"sma_20"`
	SMA50         []float64 `json:"sma_50"`
	SMA200        []float64 `json:"sma_200"`
	EMA12         []float64 `json:"ema_12"`
	EMA26         []float64 `json:"ema_26"`
	RSI           []float64 `json:"rsi"`
	UpperBand     []float64 `json:"upper_band"`
	MiddleBand    []float64 `json:"middle_band"`
	LowerBand     []float64 `json:"lower_band"`
	MACD          []float64 `json:"macd"`
	MACDSignal    []float64 `json:"macd_signal"`
	MACDHistogram []float64 `json:"macd_histogram"`
}

// Compute derives the full indicator set from closing prices.
func Compute(closes []float64) Set {
	bands := BollingerBands(closes, 20, 2)
	macd := MACD(closes, 12, 26, 9)
	return Set{
		SMA20:         SMA(closes, 20),
		SMA50:         SMA(closes, 50),
		SMA200:        SMA(closes, 200),
		EMA12:         EMA(closes, 12),
		EMA26:         EMA(closes, 26),
		RSI:           RSI(closes, 14),
		UpperBand:     bands.Upper,
		MiddleBand:    bands.Middle,
		LowerBand:     bands.Lower,
		MACD:          macd.MACD,
		MACDSignal:    macd.Signal,
		MACDHistogram: macd.Histogram,
	}
}

// Sanitized returns a copy with every NaN/Inf replaced by 0 so the set
// survives JSON encoding on its way into the cache.
func (s Set) Sanitized() Set {
	return Set{
		SMA20:         sanitize(s.SMA20),
		SMA50:         sanitize(s.SMA50),
		SMA200:        sanitize(s.SMA200),
		EMA12:         sanitize(s.EMA12),
		EMA26:         sanitize(s.EMA26),
		RSI:           sanitize(s.RSI),
		UpperBand:     sanitize(s.UpperBand),
		MiddleBand:    sanitize(s.MiddleBand),
		LowerBand:     sanitize(s.LowerBand),
		MACD:          sanitize(s.MACD),
		MACDSignal:    sanitize(s.MACDSignal),
		MACDHistogram: sanitize(s.MACDHistogram),
	}
}

func sanitize(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = 0
			continue
		}
		out[i] = v
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstDefined(vs []float64) int {
	for i, v := range vs {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

func stddev(window []float64, mean float64) float64 {
	var sum float64
	for _, v := range window {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(window)))
}
