package squeeze

import "math"

// Signals are the per-tick inputs to the transition function, derived from
// the current snapshot and the bounded series.
type Signals struct {
	DealerShortGamma  bool    `json:"dealer_short_gamma"`
	OIFlowing         bool    `json:"oi_flowing"`
	FastGEXChange     bool    `json:"fast_gex_change"`
	NearFlip          bool    `json:"near_flip"`
	WallBreak         bool    `json:"wall_break"`
	RatioShifting     bool    `json:"ratio_shifting"`
	IVCrushLag        bool    `json:"iv_crush_lag"`
	DealerFlippedLong bool    `json:"dealer_flipped_long"`
	BelowFloor        bool    `json:"below_floor"`
	GEXChangePct      float64 `json:"gex_change_pct"`
	RatioShift        float64 `json:"ratio_shift"`
}

// computeSignals derives all per-tick signals for the ticker whose series
// already contains the current snapshot as its newest entry.
func computeSignals(series *Series, cfg Config) Signals {
	cur := series.Latest()
	if cur == nil {
		return Signals{}
	}

	sig := Signals{
		DealerShortGamma: cur.DealerShortGamma,
		BelowFloor:       math.Abs(cur.NetGEX) < cfg.DetectionFloor,
	}

	if cur.FlipDistancePct != nil {
		sig.NearFlip = *cur.FlipDistancePct < cfg.NearFlipPct
	}

	sig.WallBreak = wallBreak(cur, cfg.WallBreakPct)

	prev := series.Back(1)
	if prev != nil {
		sig.GEXChangePct = percentChange(prev.NetGEX, cur.NetGEX)
		sig.FastGEXChange = math.Abs(sig.GEXChangePct) >= cfg.FastGEXChangePct
		sig.OIFlowing = oiChangeSignificant(prev, cur, cfg)
		sig.DealerFlippedLong = prev.DealerShortGamma && !cur.DealerShortGamma
	}

	if back := series.Back(3); back != nil {
		sig.RatioShift = cur.PutCallOIRatio - back.PutCallOIRatio
		sig.RatioShifting = math.Abs(sig.RatioShift) >= cfg.RatioShiftMin
	}

	sig.IVCrushLag = ivCrushLag(series)

	return sig
}

// wallBreak reports whether spot has moved beyond the call wall or below
// the put wall by more than thresholdPct.
func wallBreak(snap *Snapshot, thresholdPct float64) bool {
	if snap.CallWall != nil && snap.Spot > snap.CallWall.Price {
		if (snap.Spot-snap.CallWall.Price)/snap.CallWall.Price*100 > thresholdPct {
			return true
		}
	}
	if snap.PutWall != nil && snap.Spot < snap.PutWall.Price {
		if (snap.PutWall.Price-snap.Spot)/snap.PutWall.Price*100 > thresholdPct {
			return true
		}
	}
	return false
}

// oiChangeSignificant diffs per-strike open interest against the previous
// poll. Significant when more than cfg.OIChangeStrikeCount strikes moved by
// over cfg.OIChangeStrikePct of their prior OI, or the overall change
// exceeds cfg.OIChangeTotalPct.
func oiChangeSignificant(prev, cur *Snapshot, cfg Config) bool {
	prevOI := make(map[float64]float64, len(prev.StrikeOI))
	var prevTotal float64
	for _, so := range prev.StrikeOI {
		prevOI[so.Strike] = so.OI
		prevTotal += so.OI
	}

	changed := 0
	var curTotal float64
	for _, so := range cur.StrikeOI {
		curTotal += so.OI
		before, ok := prevOI[so.Strike]
		if !ok || before == 0 {
			continue
		}
		if math.Abs(so.OI-before)/before*100 > cfg.OIChangeStrikePct {
			changed++
		}
	}

	if changed > cfg.OIChangeStrikeCount {
		return true
	}
	if prevTotal > 0 && math.Abs(curTotal-prevTotal)/prevTotal*100 > cfg.OIChangeTotalPct {
		return true
	}
	return false
}

// ivCrushLag flags the trap where dealers stayed short gamma over the
// recent window while net GEX drifted less negative: implied-vol crush is
// lagging the positioning unwind.
func ivCrushLag(series *Series) bool {
	window := series.LastN(5)
	if len(window) < 5 {
		return false
	}

	shortTicks := 0
	for _, snap := range window {
		if snap.DealerShortGamma {
			shortTicks++
		}
	}
	if shortTicks < 3 {
		return false
	}

	first, last := window[0].NetGEX, window[len(window)-1].NetGEX
	return last > first && last < 0
}

func percentChange(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / math.Abs(prev) * 100
}
