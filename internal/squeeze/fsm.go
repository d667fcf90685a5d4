package squeeze

import "time"

// State classifies how actively dealer hedging is amplifying price movement.
type State string

const (
	StateNormal        State = "normal"
	StateBuilding      State = "building"
	StateActiveSqueeze State = "active_squeeze"
	StateKnifeFight    State = "knife_fight"
	StateUnwinding     State = "unwinding"
)

// activeGEXShareOfFast is the fraction of the fast-change threshold that
// still qualifies for active_squeeze when paired with flip proximity.
const activeGEXShareOfFast = 0.7

// Transition proposes the next state from the current state and this tick's
// signals. Pure and deterministic; candidates are checked most severe first
// and exactly one state comes out.
func Transition(current State, sig Signals, cfg Config) State {
	if sig.BelowFloor {
		return StateNormal
	}

	gexRateAbs := sig.GEXChangePct
	if gexRateAbs < 0 {
		gexRateAbs = -gexRateAbs
	}

	switch {
	case sig.DealerShortGamma && sig.WallBreak && sig.FastGEXChange:
		return StateKnifeFight

	case sig.DealerShortGamma &&
		(sig.FastGEXChange || sig.OIFlowing) &&
		(sig.NearFlip || gexRateAbs >= activeGEXShareOfFast*cfg.FastGEXChangePct):
		return StateActiveSqueeze

	case (current == StateActiveSqueeze || current == StateKnifeFight) &&
		(sig.RatioShifting || sig.DealerFlippedLong):
		return StateUnwinding

	case sig.DealerShortGamma && (sig.OIFlowing || sig.NearFlip || sig.IVCrushLag):
		return StateBuilding

	default:
		return StateNormal
	}
}

// TickerState is the persisted per-ticker squeeze record. It is mutated
// only by the state machine's evaluation step.
type TickerState struct {
	State        State     `json:"state"`
	Since        time.Time `json:"since"`
	Reason       string    `json:"reason"`
	Signals      Signals   `json:"signals"`
	GEXChangePct float64   `json:"gex_change_pct"`
	RatioShift   float64   `json:"ratio_shift"`

	// Hysteresis bookkeeping: a proposal must repeat on consecutive ticks
	// before it is committed.
	PendingState State `json:"pending_state,omitempty"`
	PendingTicks int   `json:"pending_ticks"`
}

func newTickerState(now time.Time) *TickerState {
	return &TickerState{
		State:  StateNormal,
		Since:  now,
		Reason: "initial state",
	}
}

// applyProposal runs the hysteresis step: a proposal equal to the current
// state clears any pending change; a new proposal must be seen on
// confirmTicks consecutive ticks before it commits. Returns true when the
// state actually changed this tick.
func (t *TickerState) applyProposal(proposed State, sig Signals, reason string, now time.Time, confirmTicks int) bool {
	t.Signals = sig
	t.GEXChangePct = sig.GEXChangePct
	t.RatioShift = sig.RatioShift

	if proposed == t.State {
		t.PendingState = ""
		t.PendingTicks = 0
		return false
	}

	if proposed == t.PendingState {
		t.PendingTicks++
	} else {
		t.PendingState = proposed
		t.PendingTicks = 1
	}

	if t.PendingTicks < confirmTicks {
		return false
	}

	t.State = proposed
	t.Since = now
	t.Reason = reason
	t.PendingState = ""
	t.PendingTicks = 0
	return true
}
