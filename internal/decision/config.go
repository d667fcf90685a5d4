package decision

import (
	"fmt"
	"time"
)

// Config tunes the gate thresholds. Overrides outside the documented bounds
// fail the evaluation call outright rather than clamping silently; the only
// always-clamped value is conviction, which stays in [1,10].
type Config struct {
	// Strategy mode. This engine only emits scalps.
	Strategy string

	// Gate 0.
	MaxSpreadPct float64

	// Gate 2.
	SqueezeShortGammaPct float64 // short-gamma % at or above which squeeze mode arms
	SqueezeNetGEXFloor   float64 // net GEX at or below which squeeze mode arms (negative)
	LowShortGammaPct     float64 // below this, conviction is capped at LowShortGammaCap
	LowShortGammaCap     int

	// Gate 3.
	PriorBarWindow int

	// Gate 4.
	MinConviction int

	// Throttles.
	MaxTradesPerHour       int
	ConsecutiveLossLimit   int
	LossCooldown           time.Duration
	CorrelatedGroups       [][]string
	MaxCorrelatedPositions int

	// Strike validation.
	DeltaMin             float64
	DeltaMax             float64
	MaxStrikeDistancePct float64

	// Risk controls on a pass.
	PremiumStopPct    float64
	TimeStopMinutes   int
	VWAPFailExitCount int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:             "scalp",
		MaxSpreadPct:         8.0,
		SqueezeShortGammaPct: 60,
		SqueezeNetGEXFloor:   -300e6,
		LowShortGammaPct:     50,
		LowShortGammaCap:     5,
		PriorBarWindow:       5,
		MinConviction:        5,
		MaxTradesPerHour:     3,
		ConsecutiveLossLimit: 2,
		LossCooldown:         60 * time.Minute,
		CorrelatedGroups: [][]string{
			{"SPY", "SPX", "QQQ", "NDX", "IWM"},
		},
		MaxCorrelatedPositions: 2,
		DeltaMin:               0.35,
		DeltaMax:               0.55,
		MaxStrikeDistancePct:   1.0,
		PremiumStopPct:         30,
		TimeStopMinutes:        45,
		VWAPFailExitCount:      2,
	}
}

// merge overlays non-zero override fields onto c.
func (c Config) merge(o *Config) Config {
	if o == nil {
		return c
	}
	if o.Strategy != "" {
		c.Strategy = o.Strategy
	}
	if o.MaxSpreadPct > 0 {
		c.MaxSpreadPct = o.MaxSpreadPct
	}
	if o.SqueezeShortGammaPct > 0 {
		c.SqueezeShortGammaPct = o.SqueezeShortGammaPct
	}
	if o.SqueezeNetGEXFloor != 0 {
		c.SqueezeNetGEXFloor = o.SqueezeNetGEXFloor
	}
	if o.LowShortGammaPct > 0 {
		c.LowShortGammaPct = o.LowShortGammaPct
	}
	if o.LowShortGammaCap > 0 {
		c.LowShortGammaCap = o.LowShortGammaCap
	}
	if o.PriorBarWindow > 0 {
		c.PriorBarWindow = o.PriorBarWindow
	}
	if o.MinConviction > 0 {
		c.MinConviction = o.MinConviction
	}
	if o.MaxTradesPerHour > 0 {
		c.MaxTradesPerHour = o.MaxTradesPerHour
	}
	if o.ConsecutiveLossLimit > 0 {
		c.ConsecutiveLossLimit = o.ConsecutiveLossLimit
	}
	if o.LossCooldown > 0 {
		c.LossCooldown = o.LossCooldown
	}
	if len(o.CorrelatedGroups) > 0 {
		c.CorrelatedGroups = o.CorrelatedGroups
	}
	if o.MaxCorrelatedPositions > 0 {
		c.MaxCorrelatedPositions = o.MaxCorrelatedPositions
	}
	if o.DeltaMin > 0 {
		c.DeltaMin = o.DeltaMin
	}
	if o.DeltaMax > 0 {
		c.DeltaMax = o.DeltaMax
	}
	if o.MaxStrikeDistancePct > 0 {
		c.MaxStrikeDistancePct = o.MaxStrikeDistancePct
	}
	if o.PremiumStopPct > 0 {
		c.PremiumStopPct = o.PremiumStopPct
	}
	if o.TimeStopMinutes > 0 {
		c.TimeStopMinutes = o.TimeStopMinutes
	}
	if o.VWAPFailExitCount > 0 {
		c.VWAPFailExitCount = o.VWAPFailExitCount
	}
	return c
}

// Validate rejects out-of-range values. Strategy "swing" is explicitly
// banned: this engine never holds.
func (c Config) Validate() error {
	if c.Strategy != "scalp" {
		return fmt.Errorf("strategy must be \"scalp\", got %q", c.Strategy)
	}
	if c.MaxSpreadPct <= 0 || c.MaxSpreadPct > 100 {
		return fmt.Errorf("max spread pct out of range: %v", c.MaxSpreadPct)
	}
	if c.SqueezeShortGammaPct <= 0 || c.SqueezeShortGammaPct > 100 {
		return fmt.Errorf("squeeze short-gamma pct out of range: %v", c.SqueezeShortGammaPct)
	}
	if c.SqueezeNetGEXFloor >= 0 {
		return fmt.Errorf("squeeze net GEX floor must be negative: %v", c.SqueezeNetGEXFloor)
	}
	if c.MinConviction < 1 || c.MinConviction > 10 {
		return fmt.Errorf("min conviction out of range: %d", c.MinConviction)
	}
	if c.LowShortGammaCap < 1 || c.LowShortGammaCap > 10 {
		return fmt.Errorf("low short-gamma cap out of range: %d", c.LowShortGammaCap)
	}
	if c.DeltaMin <= 0 || c.DeltaMax <= c.DeltaMin || c.DeltaMax >= 1 {
		return fmt.Errorf("delta range invalid: [%v, %v]", c.DeltaMin, c.DeltaMax)
	}
	if c.PriorBarWindow < 2 {
		return fmt.Errorf("prior bar window too small: %d", c.PriorBarWindow)
	}
	if c.MaxTradesPerHour < 1 {
		return fmt.Errorf("max trades per hour must be >= 1")
	}
	if c.MaxCorrelatedPositions < 1 {
		return fmt.Errorf("max correlated positions must be >= 1")
	}
	return nil
}
