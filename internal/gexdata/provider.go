package gexdata

import "context"

// Provider is the market-data boundary. Implementations must fail loudly:
// an empty result is an error, never a silent zero, so callers can tell
// "no data" apart from "zero exposure."
type Provider interface {
	// FetchGammaData returns per-expiry open-interest/gamma slices for the
	// nearest `expiries` expirations, nearest first.
	FetchGammaData(ctx context.Context, ticker string, expiries int) ([]ExpirySlice, error)

	// FetchIntradayBars returns up to `limit` bars, oldest first.
	FetchIntradayBars(ctx context.Context, ticker, timeframe string, limit int) ([]Bar, error)

	// FetchSpot returns the current underlying price.
	FetchSpot(ctx context.Context, ticker string) (float64, error)
}
