package cache

// Key construction is centralized here. Equal logical identifiers must
// produce byte-identical keys in both tiers and in every other process
// sharing the remote store, so collaborators must not build keys by hand.

const (
	marketDataNamespace = "market_data"
	indicatorNamespace  = "indicators"
)

// MarketDataKey builds the canonical key for a symbol's market data:
// "market_data:{symbol}:{dataType}". Intraday data carries its interval as a
// fourth segment when one is supplied.
func MarketDataKey(symbol, dataType, interval string) string {
	if dataType == "intraday" && interval != "" {
		return marketDataNamespace + ":" + symbol + ":" + dataType + ":" + interval
	}
	return marketDataNamespace + ":" + symbol + ":" + dataType
}

// IndicatorKey builds the key for a symbol's computed indicator set:
// "indicators:{assetType}:{symbol}".
func IndicatorKey(assetType, symbol string) string {
	return indicatorNamespace + ":" + assetType + ":" + symbol
}
