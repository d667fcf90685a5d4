package gex

import (
	"fmt"
	"math"

	"github.com/dgnsrekt/gexbrain/internal/gexdata"
)

// classify derives the all-expiry regime label and confidence.
//
// The label comes from the sign of total net GEX and is never changed by
// the cross-checks below; disagreement halves confidence and attaches a
// warning instead of hiding the conflict. When |total| is under the
// detection floor the label is forced to Mixed/Uncertain with confidence
// capped at 0.2.
func (e *Engine) classify(agg Aggregation, slices []gexdata.ExpirySlice, spot float64) Regime {
	regime := Regime{
		Label:      gexdata.RegimeFromSign(agg.TotalNetGEX),
		Confidence: math.Min(math.Abs(agg.TotalNetGEX)/e.cfg.ConfidenceScale, 1.0),
	}

	// Cross-check against the majority local-regime vote.
	if majority, ok := majorityLocalRegime(slices); ok && majority != regime.Label {
		regime.Confidence *= 0.5
		regime.Warning = fmt.Sprintf("aggregate regime %s disagrees with per-expiry majority %s", regime.Label, majority)
	}

	// Flip proximity: far from any flip the regime read is cleaner, right
	// on top of one it is genuinely ambiguous.
	if spot > 0 {
		if distPct, ok := nearestFlipDistancePct(slices, spot); ok {
			switch {
			case distPct > e.cfg.FlipFarPct:
				regime.Confidence = math.Min(regime.Confidence*1.3, 1.0)
			case distPct < e.cfg.FlipNearPct:
				regime.Confidence *= 0.6
			}
		}
	}

	if math.Abs(agg.TotalNetGEX) < e.cfg.DetectionFloor {
		regime.Label = gexdata.RegimeMixed
		regime.Confidence = math.Min(regime.Confidence, 0.2)
	}

	regime.Confidence = clamp01(regime.Confidence)
	return regime
}

// majorityLocalRegime returns the label held by a strict majority of the
// individual expiries, or ok=false when no strict majority exists.
func majorityLocalRegime(slices []gexdata.ExpirySlice) (string, bool) {
	votes := make(map[string]int, 3)
	for _, s := range slices {
		votes[s.LocalRegime]++
	}
	for label, n := range votes {
		if n*2 > len(slices) {
			return label, true
		}
	}
	return "", false
}

// nearestFlipDistancePct finds the local flip point closest to spot and
// returns its distance as a percent of spot.
func nearestFlipDistancePct(slices []gexdata.ExpirySlice, spot float64) (float64, bool) {
	best := math.MaxFloat64
	found := false
	for _, s := range slices {
		if s.FlipPoint == nil {
			continue
		}
		dist := math.Abs(spot-*s.FlipPoint) / spot * 100
		if dist < best {
			best = dist
			found = true
		}
	}
	return best, found
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
