// Package regime reconciles conflicting time-horizon gamma signals into the
// single regime used for intraday decisions.
package regime

import (
	"fmt"
	"math"
	"sort"

	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/gexdata"
)

// Horizon selects which expiry window the regime is derived from.
type Horizon string

const (
	// HorizonZeroDTE blends the two nearest expiries and is authoritative
	// for same-day decisions.
	HorizonZeroDTE Horizon = "0DTE"
	// HorizonWeekly uses the second-nearest expiry only.
	HorizonWeekly Horizon = "WEEKLY"
	// HorizonAggregate passes through the engine's all-expiry regime.
	// Context only: callers must not gate a same-day trade on it.
	HorizonAggregate Horizon = "AGGREGATE"
)

// TradingRegime is a horizon-specific regime read. Never persisted.
type TradingRegime struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	NetGEX     float64 `json:"net_gex"`
	Source     Horizon `json:"source"`
	Warning    string  `json:"warning,omitempty"`
}

const (
	nearestWeight   = 0.7
	nextWeight      = 0.3
	confidenceScale = 1e8
)

// Resolve derives the trading regime for the given horizon from an
// already-computed summary. Pure: it never refetches or mutates the summary.
func Resolve(s *gex.Summary, horizon Horizon) (TradingRegime, error) {
	if len(s.Expiries) == 0 {
		return TradingRegime{}, fmt.Errorf("resolve %s: summary has no expiries", horizon)
	}

	sorted := make([]gexdata.ExpirySlice, len(s.Expiries))
	copy(sorted, s.Expiries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Expiry.Before(sorted[j].Expiry) })

	switch horizon {
	case HorizonZeroDTE:
		return resolveZeroDTE(s, sorted), nil
	case HorizonWeekly:
		return resolveWeekly(sorted), nil
	case HorizonAggregate:
		return TradingRegime{
			Label:      s.Regime.Label,
			Confidence: s.Regime.Confidence,
			NetGEX:     s.Aggregation.TotalNetGEX,
			Source:     HorizonAggregate,
			Warning:    s.Regime.Warning,
		}, nil
	default:
		return TradingRegime{}, fmt.Errorf("unknown horizon %q", horizon)
	}
}

// resolveZeroDTE blends the nearest two expiries 0.7/0.3. Agreement between
// them firms up confidence, disagreement cuts it, and a sign conflict with
// the all-expiry aggregate is surfaced as a warning rather than resolved
// silently in either direction.
func resolveZeroDTE(s *gex.Summary, sorted []gexdata.ExpirySlice) TradingRegime {
	nearest := sorted[0].NetGEX
	blended := nearest
	next := nearest

	if len(sorted) > 1 {
		next = sorted[1].NetGEX
		blended = nearest*nearestWeight + next*nextWeight
	}

	confidence := math.Min(math.Abs(blended)/confidenceScale, 1.0)
	if sameSign(nearest, next) {
		confidence = math.Min(confidence*1.2, 1.0)
	} else {
		confidence *= 0.7
	}

	tr := TradingRegime{
		Label:      gexdata.RegimeFromSign(blended),
		Confidence: confidence,
		NetGEX:     blended,
		Source:     HorizonZeroDTE,
	}

	if !sameSign(blended, s.Aggregation.TotalNetGEX) {
		tr.Warning = fmt.Sprintf("0DTE regime %s conflicts with all-expiry aggregate %s; trade the 0DTE read, respect the conflict",
			tr.Label, gexdata.RegimeFromSign(s.Aggregation.TotalNetGEX))
	}

	return tr
}

func resolveWeekly(sorted []gexdata.ExpirySlice) TradingRegime {
	slice := sorted[0]
	if len(sorted) > 1 {
		slice = sorted[1]
	}

	return TradingRegime{
		Label:      gexdata.RegimeFromSign(slice.NetGEX),
		Confidence: math.Min(math.Abs(slice.NetGEX)/confidenceScale, 1.0),
		NetGEX:     slice.NetGEX,
		Source:     HorizonWeekly,
	}
}

func sameSign(a, b float64) bool {
	return (a >= 0) == (b >= 0)
}
