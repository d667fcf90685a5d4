package squeeze

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// describeSignals builds the human-readable reason attached to a committed
// state.
func describeSignals(state State, sig Signals) string {
	var parts []string

	if sig.BelowFloor {
		parts = append(parts, "net GEX below detection floor")
	}
	if sig.DealerShortGamma {
		parts = append(parts, "dealer short gamma")
	}
	if sig.WallBreak {
		parts = append(parts, "spot beyond wall")
	}
	if sig.FastGEXChange {
		parts = append(parts, fmt.Sprintf("GEX moving %.1f%%/tick", sig.GEXChangePct))
	}
	if sig.OIFlowing {
		parts = append(parts, "open interest flowing")
	}
	if sig.NearFlip {
		parts = append(parts, "near gamma flip")
	}
	if sig.RatioShifting {
		parts = append(parts, fmt.Sprintf("put/call ratio shift %+.2f", sig.RatioShift))
	}
	if sig.DealerFlippedLong {
		parts = append(parts, "dealer flipped long gamma")
	}
	if sig.IVCrushLag {
		parts = append(parts, "IV crush lagging positioning")
	}

	if len(parts) == 0 {
		return string(state)
	}
	return fmt.Sprintf("%s: %s", state, strings.Join(parts, ", "))
}

// alertAllowed checks and arms the cooldown for one ticker/kind pair.
// Caller must not hold the mutex.
func (e *Engine) alertAllowed(ticker, kind string, now time.Time) bool {
	key := ticker + "|" + kind

	e.mu.Lock()
	defer e.mu.Unlock()

	if last, ok := e.cooldowns[key]; ok && now.Sub(last) < e.cfg.AlertCooldown {
		return false
	}
	e.cooldowns[key] = now
	return true
}

func (e *Engine) emitTransitionAlert(ctx context.Context, ticker string, from, to State, sig Signals, snap Snapshot, now time.Time) {
	if !e.alertAllowed(ticker, "transition", now) {
		e.logger.Debug("transition alert suppressed by cooldown", zap.String("ticker", ticker))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s -> %s\n", ticker, from, to))
	sb.WriteString(describeSignals(to, sig))
	sb.WriteString(fmt.Sprintf("\nSpot: %.2f | Net GEX: $%.0fM", snap.Spot, snap.NetGEX/1e6))
	if snap.GammaFlip != nil {
		sb.WriteString(fmt.Sprintf("\nGamma flip: %.2f", *snap.GammaFlip))
	}
	if snap.CallWall != nil {
		sb.WriteString(fmt.Sprintf("\nCall wall: %.2f (%+.2f%%)", snap.CallWall.Price, snap.CallWall.DistancePct))
	}
	if snap.PutWall != nil {
		sb.WriteString(fmt.Sprintf("\nPut wall: %.2f (%+.2f%%)", snap.PutWall.Price, snap.PutWall.DistancePct))
	}

	priority := "default"
	if to == StateActiveSqueeze || to == StateKnifeFight {
		priority = "high"
	}

	title := fmt.Sprintf("Squeeze %s: %s", to, ticker)
	if err := e.notifier.Post(ctx, title, sb.String(), priority); err != nil {
		// Fire and forget: a dead sink never stalls the engine.
		e.logger.Warn("transition alert failed", zap.String("ticker", ticker), zap.Error(err))
	}
}

func (e *Engine) emitAccelerationAlert(ctx context.Context, ticker string, state State, series *Series, now time.Time) {
	if !e.alertAllowed(ticker, "acceleration", now) {
		return
	}

	window := series.LastN(3)
	first, last := window[0].Spot, window[len(window)-1].Spot

	msg := fmt.Sprintf("%s accelerating during %s: spot %.2f -> %.2f over last %d polls",
		ticker, state, first, last, len(window))

	if err := e.notifier.Post(ctx, fmt.Sprintf("Momentum acceleration: %s", ticker), msg, "high"); err != nil {
		e.logger.Warn("acceleration alert failed", zap.String("ticker", ticker), zap.Error(err))
	}
}
