package monitor

// DefaultCatalog seeds the endpoint table on first boot. Operators edit the
// rows afterwards; seeding never overwrites existing entries.
func DefaultCatalog() []Endpoint {
	return []Endpoint{
		{Name: "alpaca-market-data", URL: "https://data.alpaca.markets/v2/stocks/SPY/quotes/latest", Category: "market", Source: "alpaca", DataType: "quotes", Enabled: true},
		{Name: "alpaca-trading", URL: "https://paper-api.alpaca.markets/v2/clock", Category: "trading", Source: "alpaca", DataType: "account", Enabled: true},
		{Name: "tiingo-eod", URL: "https://api.tiingo.com/api/test", Category: "market", Source: "tiingo", DataType: "eod", Enabled: true},
		{Name: "tiingo-news", URL: "https://api.tiingo.com/api/test", Category: "news", Source: "tiingo", DataType: "news", Enabled: true},
		{Name: "marketstack-eod", URL: "https://api.marketstack.com/v1/eod", Category: "market", Source: "marketstack", DataType: "eod", Enabled: true},
		{Name: "finnhub-quote", URL: "https://finnhub.io/api/v1/quote", Category: "market", Source: "finnhub", DataType: "quotes", Enabled: true},
		{Name: "finnhub-news", URL: "https://finnhub.io/api/v1/news", Category: "news", Source: "finnhub", DataType: "news", Enabled: true},
	}
}
