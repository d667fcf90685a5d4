package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbrain/internal/market"
	"github.com/dgnsrekt/gexbrain/internal/regime"
	"github.com/dgnsrekt/gexbrain/internal/store"
)

// Engine runs the ordered gate hierarchy. Evaluate is a pure computation
// over its input; the only shared state is the throttle tracker, which
// serializes its own access.
type Engine struct {
	clock   *market.Clock
	cfg     Config
	tracker *Tracker
	store   store.Store
	logger  *zap.Logger
}

// NewEngine builds a decision engine. store may be nil when throttle
// history should not survive restarts.
func NewEngine(clock *market.Clock, cfg Config, st store.Store, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("decision config: %w", err)
	}

	e := &Engine{
		clock:   clock,
		cfg:     cfg,
		tracker: NewTracker(),
		store:   st,
		logger:  logger,
	}

	if st != nil {
		if err := e.tracker.Load(context.Background(), st); err != nil {
			logger.Warn("could not load throttle history", zap.Error(err))
		}
	}

	return e, nil
}

// RecordTrade feeds an executed trade's outcome back into the throttles.
func (e *Engine) RecordTrade(ticker string, pnl float64) {
	now := time.Now().UTC()
	e.tracker.RecordTrade(ticker, pnl, now)
	e.logger.Info("trade recorded",
		zap.String("ticker", ticker),
		zap.Float64("pnl", pnl),
	)

	if e.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.tracker.Save(ctx, e.store); err != nil {
			e.logger.Warn("could not persist throttle history", zap.Error(err))
		}
	}
}

// Evaluate runs the full gate hierarchy and returns a verdict. An error is
// returned only for configuration problems; every market condition that
// blocks a trade comes back as a NO_TRADE result with a reason code.
func (e *Engine) Evaluate(input Input, overrides *Config) (*Result, error) {
	cfg := e.cfg.merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config overrides: %w", err)
	}

	ev := &evaluation{
		engine: e,
		cfg:    cfg,
		input:  input,
		result: &Result{
			ID:          uuid.NewString(),
			Ticker:      input.Ticker,
			EvaluatedAt: input.Now,
			Strategy:    cfg.Strategy,
		},
	}

	ev.resolveRegimes()

	gates := []func() *Result{
		ev.safetyGate,
		ev.macroGate,
		ev.gammaGate,
		ev.triggerGate,
		ev.advisoryGate,
		ev.throttleGate,
		ev.strikeGate,
	}
	for _, gate := range gates {
		if rejected := gate(); rejected != nil {
			e.logDecision(rejected)
			return rejected, nil
		}
	}

	result := ev.pass()
	e.logDecision(result)
	return result, nil
}

func (e *Engine) logDecision(r *Result) {
	e.logger.Info("decision",
		zap.String("ticker", r.Ticker),
		zap.String("action", string(r.Action)),
		zap.String("direction", string(r.Direction)),
		zap.Int("conviction", r.Conviction),
		zap.String("reasonCode", string(r.ReasonCode)),
	)
}

// evaluation carries the working state of one Evaluate call.
type evaluation struct {
	engine *Engine
	cfg    Config
	input  Input
	result *Result

	technicals      technicalsState
	gammaConviction int
	gammaBias       Direction
	squeezeOnly     bool
	lowShortGamma   bool
	direction       Direction
	trigConviction  int
	advisoryShift   int
}

func (ev *evaluation) resolveRegimes() {
	if ev.input.Summary == nil {
		return
	}
	if dr, err := regime.Resolve(ev.input.Summary, regime.HorizonZeroDTE); err == nil {
		ev.result.DecisionRegime = dr
	}
	if cr, err := regime.Resolve(ev.input.Summary, regime.HorizonAggregate); err == nil {
		ev.result.ContextRegime = cr
	}
}

// reject closes the evaluation with a NO_TRADE verdict. Every rejection
// carries a non-empty reason code; this is the invariant the whole engine
// is built around.
func (ev *evaluation) reject(gate string, code ReasonCode, detail string) *Result {
	ev.result.Gates = append(ev.result.Gates, GateResult{
		Name:       gate,
		Passed:     false,
		ReasonCode: code,
		Detail:     detail,
	})
	ev.result.Action = ActionNoTrade
	ev.result.Direction = DirectionNone
	ev.result.Conviction = 0
	ev.result.ReasonCode = code
	ev.result.Reasons = append(ev.result.Reasons, detail)
	return ev.result
}

func (ev *evaluation) passGate(gate, detail string) {
	ev.result.Gates = append(ev.result.Gates, GateResult{
		Name:   gate,
		Passed: true,
		Detail: detail,
	})
	if detail != "" {
		ev.result.Reasons = append(ev.result.Reasons, detail)
	}
}

// pass closes the evaluation with a BUY verdict.
func (ev *evaluation) pass() *Result {
	conviction := ev.gammaConviction
	if ev.trigConviction > conviction {
		conviction = ev.trigConviction
	}
	if ev.input.Squeeze != nil {
		conviction += ev.input.Squeeze.ConvictionBoost
	}
	conviction += ev.advisoryShift

	// The low short-gamma cap applies regardless of every other signal.
	if ev.lowShortGamma && conviction > ev.cfg.LowShortGammaCap {
		conviction = ev.cfg.LowShortGammaCap
	}
	ev.result.Conviction = clampConviction(conviction)

	if ev.direction == DirectionCall {
		ev.result.Action = ActionBuyCall
	} else {
		ev.result.Action = ActionBuyPut
	}
	ev.result.Direction = ev.direction
	ev.result.RiskControls = ev.riskControls()
	return ev.result
}

func clampConviction(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// riskControls builds the exit plan: premium and time stops from config,
// price invalidation at the nearest opposing wall (falling back to the
// prior bar extreme).
func (ev *evaluation) riskControls() RiskControls {
	rc := RiskControls{
		PremiumStopPct:    ev.cfg.PremiumStopPct,
		TimeStopMinutes:   ev.cfg.TimeStopMinutes,
		VWAPFailExitCount: ev.cfg.VWAPFailExitCount,
	}

	if ev.direction == DirectionCall {
		rc.PriceInvalidation = ev.nearestSupport()
	} else {
		rc.PriceInvalidation = ev.nearestResistance()
	}
	return rc
}

// nearestSupport is the highest put wall below spot, falling back to the
// prior bar low.
func (ev *evaluation) nearestSupport() float64 {
	best := 0.0
	if ev.input.Summary != nil {
		for _, w := range ev.input.Summary.Walls.PutWalls {
			if w.Strike < ev.input.Spot && w.Strike > best {
				best = w.Strike
			}
		}
	}
	if best == 0 {
		return ev.technicals.snap.PriorLow
	}
	return best
}

// nearestResistance is the lowest call wall above spot, falling back to the
// prior bar high.
func (ev *evaluation) nearestResistance() float64 {
	best := 0.0
	if ev.input.Summary != nil {
		for _, w := range ev.input.Summary.Walls.CallWalls {
			if w.Strike > ev.input.Spot && (best == 0 || w.Strike < best) {
				best = w.Strike
			}
		}
	}
	if best == 0 {
		return ev.technicals.snap.PriorHigh
	}
	return best
}
