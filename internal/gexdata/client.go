package gexdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPProvider fetches raw gamma data over HTTP with rate limiting and
// retry/backoff. It normalizes provider payloads into the canonical
// ExpirySlice/Bar shapes at this boundary so nothing downstream branches
// on provider formats.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewHTTPProvider(baseURL, apiKey string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPProvider {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	return &HTTPProvider{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

var _ Provider = (*HTTPProvider)(nil)

// rawGammaResponse is the provider's wire shape for a gamma snapshot.
// Strikes rows are [strike, call_oi, put_oi, call_gex, put_gex].
type rawGammaResponse struct {
	Ticker      string     `json:"ticker"`
	Spot        float64    `json:"spot"`
	Expirations []rawSlice `json:"expirations"`
}

type rawSlice struct {
	Expiry  string      `json:"expiry"`
	Strikes [][]float64 `json:"strikes"`
}

type rawSpotResponse struct {
	Ticker string  `json:"ticker"`
	Spot   float64 `json:"spot"`
}

type rawBar struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

func (p *HTTPProvider) FetchGammaData(ctx context.Context, ticker string, expiries int) ([]ExpirySlice, error) {
	url := fmt.Sprintf("%s/v1/gamma/%s?expiries=%d", p.baseURL, ticker, expiries)

	var resp rawGammaResponse
	if err := p.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("fetching gamma data for %s: %w", ticker, err)
	}

	if len(resp.Expirations) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrDataUnavailable)
	}

	slices := make([]ExpirySlice, 0, len(resp.Expirations))
	for _, raw := range resp.Expirations {
		slice, err := normalizeSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("normalizing expiry %s for %s: %w", raw.Expiry, ticker, err)
		}
		slices = append(slices, slice)
	}

	return slices, nil
}

func (p *HTTPProvider) FetchIntradayBars(ctx context.Context, ticker, timeframe string, limit int) ([]Bar, error) {
	url := fmt.Sprintf("%s/v1/bars/%s?timeframe=%s&limit=%d", p.baseURL, ticker, timeframe, limit)

	var raw []rawBar
	if err := p.getJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", ticker, err)
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("bars for %s: %w", ticker, ErrDataUnavailable)
	}

	bars := make([]Bar, len(raw))
	for i, b := range raw {
		bars[i] = Bar{
			Timestamp: time.UnixMilli(b.Timestamp).UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	return bars, nil
}

func (p *HTTPProvider) FetchSpot(ctx context.Context, ticker string) (float64, error) {
	url := fmt.Sprintf("%s/v1/spot/%s", p.baseURL, ticker)

	var resp rawSpotResponse
	if err := p.getJSON(ctx, url, &resp); err != nil {
		return 0, fmt.Errorf("fetching spot for %s: %w", ticker, err)
	}
	if resp.Spot <= 0 {
		return 0, fmt.Errorf("spot for %s: %w", ticker, ErrDataUnavailable)
	}
	return resp.Spot, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, url string, dest any) error {
	// Wait for rate limiter
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.retryCount; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			p.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrDataUnavailable
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return ErrAuthFailed
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
