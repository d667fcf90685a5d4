package decision

import (
	"errors"
	"fmt"
	"math"

	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/indicators"
)

type technicalsState struct {
	snap indicators.Snapshot
	ok   bool
}

// safetyGate (gate 0) refuses to evaluate outside the tradable session
// window or with missing inputs. These are the cheap disqualifiers that
// make everything downstream safe to assume.
func (ev *evaluation) safetyGate() *Result {
	in := ev.input

	if !ev.engine.clock.IsTradableWindow(in.Now) {
		return ev.reject("safety", ReasonMarketClosed, "outside tradable session window (regular hours minus the post-open skip)")
	}

	if in.Spot <= 0 {
		return ev.reject("safety", ReasonMissingSpot, "no spot price supplied")
	}

	if in.Technicals != nil {
		ev.technicals = technicalsState{snap: *in.Technicals, ok: true}
	} else {
		if len(in.Bars) == 0 {
			return ev.reject("safety", ReasonMissingTechnicals, "no bars and no precomputed technicals")
		}
		snap, err := indicators.Compute(in.Bars, ev.cfg.PriorBarWindow)
		if err != nil {
			if errors.Is(err, indicators.ErrInsufficientHistory) {
				return ev.reject("safety", ReasonInsufficientBars, err.Error())
			}
			return ev.reject("safety", ReasonMissingTechnicals, err.Error())
		}
		ev.technicals = technicalsState{snap: *snap, ok: true}
	}

	if in.Contract != nil {
		if code, detail := spreadCheck(in.Contract, ev.cfg.MaxSpreadPct); code != "" {
			return ev.reject("safety", code, detail)
		}
	}

	ev.passGate("safety", "")
	return nil
}

// macroGate (gate 1) blocks entirely on RISK_OFF. RISK_ON and CAUTIOUS both
// allow calls and puts.
func (ev *evaluation) macroGate() *Result {
	macro := ev.input.Macro
	if macro == nil {
		ev.passGate("macro", "no macro read; proceeding cautious")
		return nil
	}
	if macro.Regime == MacroRiskOff {
		return ev.reject("macro", ReasonMacroRiskOff, fmt.Sprintf("macro regime RISK_OFF (score %.2f)", macro.Score))
	}
	ev.passGate("macro", fmt.Sprintf("macro %s (score %.2f)", macro.Regime, macro.Score))
	return nil
}

// gammaGate (gate 2) never rejects on its own; it sets the conviction
// baseline and narrows the allowed direction.
func (ev *evaluation) gammaGate() *Result {
	in := ev.input
	snap := ev.technicals.snap

	shortGammaPct := in.ShortGammaPct
	if shortGammaPct == 0 && in.Summary != nil {
		shortGammaPct = shortGammaShare(in.Summary.Aggregation.ByStrike)
	}
	var netGEX float64
	if in.Summary != nil {
		netGEX = in.Summary.Aggregation.TotalNetGEX
	}

	ev.gammaConviction = 4

	// Direction bias: short gamma trends, long gamma mean-reverts.
	dealerShort := netGEX < 0
	if dealerShort {
		if snap.Close > snap.VWAP {
			ev.gammaBias = DirectionCall
		} else {
			ev.gammaBias = DirectionPut
		}
	} else {
		if snap.Close < snap.VWAP {
			ev.gammaBias = DirectionCall
		} else {
			ev.gammaBias = DirectionPut
		}
	}

	isSqueeze := shortGammaPct >= ev.cfg.SqueezeShortGammaPct && netGEX <= ev.cfg.SqueezeNetGEXFloor
	if isSqueeze {
		ev.gammaConviction = 7
		ev.squeezeOnly = true
		ev.passGate("gamma", fmt.Sprintf("squeeze conditions: short gamma %.0f%%, net GEX $%.0fM; direction restricted to %s",
			shortGammaPct, netGEX/1e6, ev.gammaBias))
	} else {
		ev.passGate("gamma", fmt.Sprintf("short gamma %.0f%%, net GEX $%.0fM, bias %s", shortGammaPct, netGEX/1e6, ev.gammaBias))
	}

	if shortGammaPct < ev.cfg.LowShortGammaPct {
		ev.lowShortGamma = true
		if ev.gammaConviction > ev.cfg.LowShortGammaCap {
			ev.gammaConviction = ev.cfg.LowShortGammaCap
		}
	}

	return nil
}

// triggerGate (gate 3) demands explicit price-action confirmation: a
// primary trigger (VWAP reclaim/loss or a break of the prior bar extreme)
// plus a secondary confirmation (RSI zone or MACD histogram flip).
// Anticipatory entries without a trigger are never allowed.
func (ev *evaluation) triggerGate() *Result {
	snap := ev.technicals.snap

	bullPrimary := vwapReclaim(snap) || snap.Close > snap.PriorHigh
	bearPrimary := vwapLoss(snap) || snap.Close < snap.PriorLow

	bullSecondary := rsiRecovering(snap) || macdFlippedUp(snap)
	bearSecondary := rsiDeclining(snap) || macdFlippedDown(snap)

	bull := bullPrimary && bullSecondary
	bear := bearPrimary && bearSecondary

	switch {
	case bull && bear:
		// Both directions confirmed: fall back to the gamma bias as the
		// tiebreak, otherwise refuse.
		if ev.gammaBias == DirectionNone || ev.gammaBias == "" {
			return ev.reject("trigger", ReasonConflictingTriggers, "bullish and bearish triggers fired with no gamma tiebreak")
		}
		ev.direction = ev.gammaBias
	case bull:
		ev.direction = DirectionCall
	case bear:
		ev.direction = DirectionPut
	default:
		return ev.reject("trigger", ReasonNoTrigger, "no confirmed price-action trigger")
	}

	if ev.squeezeOnly && ev.direction != ev.gammaBias {
		return ev.reject("trigger", ReasonNoTrigger,
			fmt.Sprintf("trigger fired %s but squeeze conditions restrict direction to %s", ev.direction, ev.gammaBias))
	}

	ev.trigConviction = 6
	if (ev.direction == DirectionCall && vwapReclaim(snap) && snap.Close > snap.PriorHigh) ||
		(ev.direction == DirectionPut && vwapLoss(snap) && snap.Close < snap.PriorLow) {
		// Both primary forms confirmed the same way.
		ev.trigConviction = 7
	}

	ev.passGate("trigger", fmt.Sprintf("%s trigger confirmed (close %.2f, VWAP %.2f, prior high/low %.2f/%.2f)",
		ev.direction, snap.Close, snap.VWAP, snap.PriorHigh, snap.PriorLow))
	return nil
}

// advisoryGate (gate 4) applies the optional overlay. The overlay is
// untrusted: it shifts conviction by at most two points and can never flip
// the direction; a conflicting direction reduces conviction by two instead.
func (ev *evaluation) advisoryGate() *Result {
	adv := ev.input.Advisory
	if adv == nil {
		ev.passGate("advisory", "")
		return nil
	}

	if adv.Direction != ev.direction {
		ev.advisoryShift = -2
		ev.passGate("advisory", fmt.Sprintf("advisory disagrees (%s vs %s): conviction -2, direction unchanged", adv.Direction, ev.direction))
	} else {
		switch {
		case adv.Conviction >= 8:
			ev.advisoryShift = 2
		case adv.Conviction >= 6:
			ev.advisoryShift = 1
		case adv.Conviction <= 2:
			ev.advisoryShift = -2
		case adv.Conviction <= 4:
			ev.advisoryShift = -1
		}
		ev.passGate("advisory", fmt.Sprintf("advisory agrees (conviction %d): shift %+d", adv.Conviction, ev.advisoryShift))
	}

	projected := ev.gammaConviction
	if ev.trigConviction > projected {
		projected = ev.trigConviction
	}
	if ev.input.Squeeze != nil {
		projected += ev.input.Squeeze.ConvictionBoost
	}
	if projected+ev.advisoryShift < ev.cfg.MinConviction {
		return ev.reject("advisory", ReasonAILowConviction,
			fmt.Sprintf("conviction %d after advisory shift below minimum %d", projected+ev.advisoryShift, ev.cfg.MinConviction))
	}

	return nil
}

// throttleGate enforces the trade-frequency and exposure limits.
func (ev *evaluation) throttleGate() *Result {
	in := ev.input
	tracker := ev.engine.tracker
	cfg := ev.cfg

	if tracker.TradesInLastHour(in.Ticker, in.Now) >= cfg.MaxTradesPerHour {
		return ev.reject("throttle", ReasonMaxTradesPerHour,
			fmt.Sprintf("already %d trades in the last hour (max %d)", tracker.TradesInLastHour(in.Ticker, in.Now), cfg.MaxTradesPerHour))
	}

	if tracker.InLossCooldown(in.Ticker, cfg.ConsecutiveLossLimit, cfg.LossCooldown, in.Now) {
		return ev.reject("throttle", ReasonConsecutiveLosses,
			fmt.Sprintf("%d consecutive losses; cooling down", cfg.ConsecutiveLossLimit))
	}

	if group := correlatedGroup(cfg.CorrelatedGroups, in.Ticker); group != nil {
		open := 0
		for _, pos := range in.OpenPositions {
			for _, member := range group {
				if pos == member {
					open++
					break
				}
			}
		}
		if open >= cfg.MaxCorrelatedPositions {
			return ev.reject("throttle", ReasonCorrelatedExposure,
				fmt.Sprintf("%d open positions in correlated set (max %d)", open, cfg.MaxCorrelatedPositions))
		}
	}

	ev.passGate("throttle", "")
	return nil
}

// strikeGate validates the candidate contract when quote data is supplied.
func (ev *evaluation) strikeGate() *Result {
	contract := ev.input.Contract
	if contract == nil {
		ev.passGate("strike", "no contract data; validation skipped")
		return nil
	}

	delta := math.Abs(contract.Delta)
	if delta < ev.cfg.DeltaMin || delta > ev.cfg.DeltaMax {
		return ev.reject("strike", ReasonDeltaOutOfRange,
			fmt.Sprintf("|delta| %.2f outside [%.2f, %.2f]", delta, ev.cfg.DeltaMin, ev.cfg.DeltaMax))
	}

	distPct := math.Abs(contract.Strike-ev.input.Spot) / ev.input.Spot * 100
	if distPct > ev.cfg.MaxStrikeDistancePct {
		return ev.reject("strike", ReasonStrikeTooFar,
			fmt.Sprintf("strike %.2f is %.2f%% from spot (max %.2f%%)", contract.Strike, distPct, ev.cfg.MaxStrikeDistancePct))
	}

	if code, detail := spreadCheck(contract, ev.cfg.MaxSpreadPct); code != "" {
		return ev.reject("strike", code, detail)
	}

	ev.passGate("strike", fmt.Sprintf("delta %.2f, strike %.2f validated", contract.Delta, contract.Strike))
	return nil
}

// correlatedGroup returns the configured correlation set containing the
// ticker, or nil when the ticker is uncorrelated.
func correlatedGroup(groups [][]string, ticker string) []string {
	for _, group := range groups {
		for _, member := range group {
			if member == ticker {
				return group
			}
		}
	}
	return nil
}

func spreadCheck(c *ContractInput, maxSpreadPct float64) (ReasonCode, string) {
	mid := (c.Bid + c.Ask) / 2
	if mid <= 0 {
		return ReasonSpreadTooWide, "no usable quote midpoint"
	}
	spreadPct := (c.Ask - c.Bid) / mid * 100
	if spreadPct > maxSpreadPct {
		return ReasonSpreadTooWide, fmt.Sprintf("bid/ask spread %.1f%% exceeds max %.1f%%", spreadPct, maxSpreadPct)
	}
	return "", ""
}

// shortGammaShare estimates the dealer-short share of total gamma as the
// absolute negative strike GEX over total absolute strike GEX, in percent.
func shortGammaShare(clustered []gex.ClusteredStrike) float64 {
	var negative, total float64
	for _, row := range clustered {
		abs := math.Abs(row.NetGEX)
		total += abs
		if row.NetGEX < 0 {
			negative += abs
		}
	}
	if total == 0 {
		return 0
	}
	return negative / total * 100
}

func vwapReclaim(s indicators.Snapshot) bool {
	return s.Close > s.VWAP && s.PrevClose <= s.VWAP
}

func vwapLoss(s indicators.Snapshot) bool {
	return s.Close < s.VWAP && s.PrevClose >= s.VWAP
}

// rsiRecovering: RSI turning up out of the washed-out zone.
func rsiRecovering(s indicators.Snapshot) bool {
	return s.RSI > s.PrevRSI && s.PrevRSI < 50 && s.RSI >= 35
}

// rsiDeclining: RSI rolling over from the stretched zone.
func rsiDeclining(s indicators.Snapshot) bool {
	return s.RSI < s.PrevRSI && s.PrevRSI > 50 && s.RSI <= 65
}

func macdFlippedUp(s indicators.Snapshot) bool {
	return s.PrevMACDHist <= 0 && s.MACDHistogram > 0
}

func macdFlippedDown(s indicators.Snapshot) bool {
	return s.PrevMACDHist >= 0 && s.MACDHistogram < 0
}
