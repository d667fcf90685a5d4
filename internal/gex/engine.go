package gex

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbrain/internal/gexdata"
)

// Summary is the canonical cross-expiry gamma exposure read for one ticker.
// A fresh Summary is built on every Analyze call and never mutated after
// return.
type Summary struct {
	Ticker      string                `json:"ticker"`
	Spot        float64               `json:"spot"`
	GeneratedAt time.Time             `json:"generated_at"`
	Expiries    []gexdata.ExpirySlice `json:"expiries"`
	Aggregation Aggregation           `json:"aggregation"`
	Regime      Regime                `json:"regime"`
	Walls       Walls                 `json:"walls"`
	GammaFlip   *float64              `json:"gamma_flip,omitempty"`
	Playbook    []string              `json:"playbook,omitempty"`
}

// Aggregation holds the cross-expiry totals and the clustered strike view.
type Aggregation struct {
	TotalNetGEX    float64           `json:"total_net_gex"`
	ByExpiry       []ExpiryShare     `json:"by_expiry"`
	DominantExpiry time.Time         `json:"dominant_expiry"`
	ByStrike       []ClusteredStrike `json:"by_strike"`
}

// ExpiryShare is one expiry's contribution. AbsShare is the share of the
// absolute (unsigned) total, so a large positive and large negative expiry
// cannot cancel into a false "small" dominance read.
type ExpiryShare struct {
	Expiry   time.Time `json:"expiry"`
	NetGEX   float64   `json:"net_gex"`
	AbsShare float64   `json:"abs_share"`
}

// ClusteredStrike is a strike unioned across expiries. ExpiryCount is the
// number of expirations carrying open interest at this strike.
type ClusteredStrike struct {
	Strike      float64 `json:"strike"`
	CallOI      float64 `json:"call_oi"`
	PutOI       float64 `json:"put_oi"`
	CallGEX     float64 `json:"call_gex"`
	PutGEX      float64 `json:"put_gex"`
	NetGEX      float64 `json:"net_gex"`
	ExpiryCount int     `json:"expiry_count"`
}

// Regime is the all-expiry classification with a confidence score in [0,1].
type Regime struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Warning    string  `json:"warning,omitempty"`
}

// Wall is a high-concentration strike. Stacked walls recur across more than
// one expiration and carry more weight.
type Wall struct {
	Strike      float64 `json:"strike"`
	NetGEX      float64 `json:"net_gex"`
	Stacked     bool    `json:"stacked"`
	ExpiryCount int     `json:"expiry_count"`
}

// Walls holds up to three call walls and three put walls.
type Walls struct {
	CallWalls []Wall `json:"call_walls"`
	PutWalls  []Wall `json:"put_walls"`
}

// Config tunes the classification thresholds. Zero values fall back to the
// defaults below.
type Config struct {
	// DetectionFloor is the |total net GEX| below which the regime is
	// forced to Mixed/Uncertain (default $1M).
	DetectionFloor float64
	// ConfidenceScale is the |total net GEX| that maps to full confidence
	// (default $100M, sized for index names).
	ConfidenceScale float64
	// FlipFarPct / FlipNearPct bound the flip-proximity confidence
	// adjustments (defaults 2.0 and 0.5, in percent of spot).
	FlipFarPct  float64
	FlipNearPct float64
	// IncludeExpiries is the number of expirations fetched per analysis
	// (default 3).
	IncludeExpiries int
}

const (
	defaultDetectionFloor  = 1e6
	defaultConfidenceScale = 1e8
	defaultFlipFarPct      = 2.0
	defaultFlipNearPct     = 0.5
	defaultIncludeExpiries = 3
)

func (c Config) withDefaults() Config {
	if c.DetectionFloor <= 0 {
		c.DetectionFloor = defaultDetectionFloor
	}
	if c.ConfidenceScale <= 0 {
		c.ConfidenceScale = defaultConfidenceScale
	}
	if c.FlipFarPct <= 0 {
		c.FlipFarPct = defaultFlipFarPct
	}
	if c.FlipNearPct <= 0 {
		c.FlipNearPct = defaultFlipNearPct
	}
	if c.IncludeExpiries <= 0 {
		c.IncludeExpiries = defaultIncludeExpiries
	}
	return c
}

// Engine aggregates raw per-expiry gamma data into a Summary.
type Engine struct {
	provider gexdata.Provider
	cfg      Config
	logger   *zap.Logger
}

func NewEngine(provider gexdata.Provider, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		provider: provider,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Options overrides per-call analysis behavior.
type Options struct {
	// IncludeExpiries overrides the configured expiry count when > 0.
	IncludeExpiries int
}

// Analyze fetches raw gamma data for the ticker and produces a Summary.
// It fails with gexdata.ErrDataUnavailable when the fetch fails or returns
// zero expiries; it never fabricates a summary.
func (e *Engine) Analyze(ctx context.Context, ticker string, opts Options) (*Summary, error) {
	includeExpiries := e.cfg.IncludeExpiries
	if opts.IncludeExpiries > 0 {
		includeExpiries = opts.IncludeExpiries
	}

	slices, err := e.provider.FetchGammaData(ctx, ticker, includeExpiries)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", ticker, err)
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("analyze %s: %w", ticker, gexdata.ErrDataUnavailable)
	}

	spot, err := e.provider.FetchSpot(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", ticker, err)
	}

	return e.Build(ticker, spot, slices), nil
}

// Build assembles a Summary from already-fetched data. Split out from
// Analyze so callers holding fresh slices (and tests) can skip the fetch.
func (e *Engine) Build(ticker string, spot float64, slices []gexdata.ExpirySlice) *Summary {
	agg := aggregate(slices)
	regime := e.classify(agg, slices, spot)
	walls := detectWalls(agg.ByStrike)
	flip := clusterFlip(agg.ByStrike)

	summary := &Summary{
		Ticker:      ticker,
		Spot:        spot,
		GeneratedAt: time.Now().UTC(),
		Expiries:    slices,
		Aggregation: agg,
		Regime:      regime,
		Walls:       walls,
		GammaFlip:   flip,
	}
	summary.Playbook = playbook(summary)

	e.logger.Debug("gex summary built",
		zap.String("ticker", ticker),
		zap.Float64("totalNetGEX", agg.TotalNetGEX),
		zap.String("regime", regime.Label),
		zap.Float64("confidence", regime.Confidence),
	)

	return summary
}
