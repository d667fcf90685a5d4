package config

// DefaultTickers lists all supported tickers.
var DefaultTickers = []string{
	"SPX", "NDX", "RUT", "SPY", "QQQ", "IWM",
	"VIX", "UVXY", "AAPL", "TSLA", "NVDA", "META",
	"AMZN", "GOOG", "GOOGL", "NFLX", "AMD", "ORCL", "BABA",
}

// ValidTickers is the membership set built from DefaultTickers.
var ValidTickers = func() map[string]bool {
	m := make(map[string]bool, len(DefaultTickers))
	for _, t := range DefaultTickers {
		m[t] = true
	}
	return m
}()
