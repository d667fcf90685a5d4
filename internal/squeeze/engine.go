package squeeze

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/market"
	"github.com/dgnsrekt/gexbrain/internal/notify"
	"github.com/dgnsrekt/gexbrain/internal/store"
)

const (
	defaultPollInterval   = 180 * time.Second
	defaultSeriesCapacity = 100
	defaultAlertCooldown  = 30 * time.Minute
	defaultConfirmTicks   = 2
	defaultFetchTimeout   = 30 * time.Second
	defaultWorkers        = 4

	stateDocKey = "squeeze:state"
)

// Config tunes polling and signal thresholds. Zero values fall back to the
// defaults above and the threshold defaults in withDefaults.
type Config struct {
	PollInterval   time.Duration
	SeriesCapacity int
	FetchTimeout   time.Duration
	Workers        int

	// DetectionFloor is the |net GEX| below which everything is normal.
	DetectionFloor float64
	// FastGEXChangePct is the per-tick |GEX % change| considered fast.
	FastGEXChangePct float64
	// OIChangeStrikePct / OIChangeStrikeCount / OIChangeTotalPct define a
	// significant open-interest flow between polls.
	OIChangeStrikePct   float64
	OIChangeStrikeCount int
	OIChangeTotalPct    float64
	// NearFlipPct is the spot-to-flip distance treated as "near".
	NearFlipPct float64
	// WallBreakPct is how far beyond a wall spot must move to count as a
	// break.
	WallBreakPct float64
	// RatioShiftMin is the put/call OI ratio shift (vs 3 polls back)
	// treated as significant.
	RatioShiftMin float64

	ConfirmTicks  int
	AlertCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.SeriesCapacity <= 0 {
		c.SeriesCapacity = defaultSeriesCapacity
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.DetectionFloor <= 0 {
		c.DetectionFloor = 1e6
	}
	if c.FastGEXChangePct <= 0 {
		c.FastGEXChangePct = 10
	}
	if c.OIChangeStrikePct <= 0 {
		c.OIChangeStrikePct = 5
	}
	if c.OIChangeStrikeCount <= 0 {
		c.OIChangeStrikeCount = 2
	}
	if c.OIChangeTotalPct <= 0 {
		c.OIChangeTotalPct = 3
	}
	if c.NearFlipPct <= 0 {
		c.NearFlipPct = 0.5
	}
	if c.WallBreakPct <= 0 {
		c.WallBreakPct = 0.3
	}
	if c.RatioShiftMin <= 0 {
		c.RatioShiftMin = 0.15
	}
	if c.ConfirmTicks <= 0 {
		c.ConfirmTicks = defaultConfirmTicks
	}
	if c.AlertCooldown <= 0 {
		c.AlertCooldown = defaultAlertCooldown
	}
	return c
}

// Signal is the conviction overlay exported to the decision engine.
type Signal struct {
	Active          bool   `json:"active"`
	State           State  `json:"state"`
	ConvictionBoost int    `json:"conviction_boost"`
	Direction       string `json:"direction"` // UP, DOWN, or NEUTRAL
}

// Status is the externally visible view of one ticker's squeeze memory.
type Status struct {
	Ticker    string    `json:"ticker"`
	State     State     `json:"state"`
	Since     time.Time `json:"since"`
	Reason    string    `json:"reason"`
	Signals   Signals   `json:"signals"`
	Snapshots int       `json:"snapshots"`
	Latest    *Snapshot `json:"latest,omitempty"`
}

// Engine polls gamma data per watched ticker, evolves the per-ticker state
// machine, publishes alerts on committed transitions, and persists its
// memory across restarts.
//
// All per-ticker maps are owned by the engine and mutated only from within
// the tick step; the mutex exists for external readers (signal export,
// status endpoints) racing the tick.
type Engine struct {
	gexEngine *gex.Engine
	clock     *market.Clock
	store     store.Store
	notifier  notify.Notifier
	cfg       Config
	logger    *zap.Logger

	mu        sync.RWMutex
	watchlist []string
	series    map[string]*Series
	states    map[string]*TickerState
	cooldowns map[string]time.Time

	cancel context.CancelFunc
	done   chan struct{}

	// onTransition, when set, receives every committed state change.
	// Unlike notifier alerts it is not throttled by the cooldown.
	onTransition func(TransitionEvent)

	// now is swappable for tests.
	now func() time.Time
}

// TransitionEvent describes one committed state change.
type TransitionEvent struct {
	Ticker string    `json:"ticker"`
	From   State     `json:"from"`
	To     State     `json:"to"`
	Reason string    `json:"reason"`
	Spot   float64   `json:"spot"`
	NetGEX float64   `json:"net_gex"`
	At     time.Time `json:"at"`
}

// SetTransitionHook registers the committed-transition callback. Must be
// called before Start.
func (e *Engine) SetTransitionHook(fn func(TransitionEvent)) {
	e.onTransition = fn
}

func NewEngine(gexEngine *gex.Engine, clock *market.Clock, st store.Store, notifier notify.Notifier, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		gexEngine: gexEngine,
		clock:     clock,
		store:     st,
		notifier:  notifier,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		series:    make(map[string]*Series),
		states:    make(map[string]*TickerState),
		cooldowns: make(map[string]time.Time),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetWatchlist replaces the set of polled tickers. State for removed
// tickers is kept so re-adding a ticker does not reset its memory.
func (e *Engine) SetWatchlist(tickers []string) {
	e.mu.Lock()
	e.watchlist = append([]string(nil), tickers...)
	e.mu.Unlock()
}

// Start rehydrates persisted state and launches the poll loop. Stop (or
// cancelling ctx) shuts it down after flushing.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.rehydrate(ctx); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("rehydrating squeeze state: %w", err)
		}
		e.logger.Info("no persisted squeeze state, starting fresh")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.run(runCtx)
	return nil
}

// Stop halts the poll loop and waits for the final flush.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	e.logger.Info("squeeze engine started",
		zap.Duration("interval", e.cfg.PollInterval),
		zap.Int("capacity", e.cfg.SeriesCapacity),
	)

	for {
		select {
		case <-ctx.Done():
			// Flush with a fresh context: the loop context is already
			// cancelled during shutdown.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := e.Flush(flushCtx); err != nil {
				e.logger.Error("final flush failed", zap.Error(err))
			}
			cancel()
			e.logger.Info("squeeze engine stopped")
			return

		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one full poll cycle: fan out fetches, join, evaluate serially,
// then flush. The next tick cannot start until this one returns, so
// persistence is always sequenced behind evaluation.
func (e *Engine) tick(ctx context.Context) {
	now := e.now()
	if !e.clock.IsRegularSession(now) {
		return
	}

	e.mu.RLock()
	tickers := append([]string(nil), e.watchlist...)
	e.mu.RUnlock()

	if len(tickers) == 0 {
		return
	}

	for _, res := range e.fetchAll(ctx, tickers) {
		if res.err != nil {
			// Skip this tick for this ticker; the rest proceed.
			e.logger.Warn("skipping ticker this tick",
				zap.String("ticker", res.ticker),
				zap.Error(res.err),
			)
			continue
		}
		e.evaluate(ctx, res.ticker, res.summary, now)
	}

	if err := e.Flush(ctx); err != nil {
		e.logger.Error("flush failed", zap.Error(err))
	}
}

type fetchResult struct {
	ticker  string
	summary *gex.Summary
	err     error
}

// fetchAll fans analysis fetches out across a bounded worker pool and joins
// before returning. A failure for one ticker never blocks the others.
func (e *Engine) fetchAll(ctx context.Context, tickers []string) []fetchResult {
	jobs := make(chan string, len(tickers))
	results := make(chan fetchResult, len(tickers))

	workers := e.cfg.Workers
	if workers > len(tickers) {
		workers = len(tickers)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
				summary, err := e.gexEngine.Analyze(fetchCtx, ticker, gex.Options{})
				cancel()
				results <- fetchResult{ticker: ticker, summary: summary, err: err}
			}
		}()
	}

	for _, t := range tickers {
		jobs <- t
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]fetchResult, 0, len(tickers))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// evaluate appends the snapshot, derives signals, runs the transition with
// hysteresis, and emits alerts on committed changes.
func (e *Engine) evaluate(ctx context.Context, ticker string, summary *gex.Summary, now time.Time) {
	e.mu.Lock()

	series, ok := e.series[ticker]
	if !ok {
		series = NewSeries(e.cfg.SeriesCapacity)
		e.series[ticker] = series
	}
	state, ok := e.states[ticker]
	if !ok {
		state = newTickerState(now)
		e.states[ticker] = state
	}

	series.Append(newSnapshot(summary, now))
	sig := computeSignals(series, e.cfg)
	proposed := Transition(state.State, sig, e.cfg)
	prior := state.State
	changed := state.applyProposal(proposed, sig, describeSignals(proposed, sig), now, e.cfg.ConfirmTicks)

	accelerating := false
	if state.State == StateActiveSqueeze || state.State == StateKnifeFight {
		accelerating = spotAccelerating(series)
	}
	snapshot := *series.Latest()
	committed := state.State
	reason := state.Reason

	e.mu.Unlock()

	e.logger.Debug("squeeze evaluated",
		zap.String("ticker", ticker),
		zap.String("state", string(committed)),
		zap.String("proposed", string(proposed)),
		zap.Bool("changed", changed),
	)

	if changed {
		e.emitTransitionAlert(ctx, ticker, prior, committed, sig, snapshot, now)
		if e.onTransition != nil {
			e.onTransition(TransitionEvent{
				Ticker: ticker,
				From:   prior,
				To:     committed,
				Reason: reason,
				Spot:   snapshot.Spot,
				NetGEX: snapshot.NetGEX,
				At:     now,
			})
		}
	}
	if accelerating {
		e.emitAccelerationAlert(ctx, ticker, committed, series, now)
	}
}

// GetSqueezeSignal returns the conviction overlay for one ticker. Unknown
// tickers report an inactive, zero-boost signal.
func (e *Engine) GetSqueezeSignal(ticker string) Signal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state, ok := e.states[ticker]
	if !ok {
		return Signal{State: StateNormal, Direction: "NEUTRAL"}
	}

	sig := Signal{
		State:     state.State,
		Direction: spotDirection(e.series[ticker]),
	}

	switch state.State {
	case StateBuilding:
		sig.ConvictionBoost = 1
	case StateActiveSqueeze:
		sig.ConvictionBoost = 2
	case StateKnifeFight:
		sig.ConvictionBoost = 3
	case StateUnwinding:
		sig.ConvictionBoost = -1
	}

	sig.Active = state.State == StateBuilding || state.State == StateActiveSqueeze || state.State == StateKnifeFight
	return sig
}

// GetSqueezeStatus returns one ticker's status, or every watched ticker's
// when ticker is empty.
func (e *Engine) GetSqueezeStatus(ticker string) []Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if ticker != "" {
		if st, ok := e.states[ticker]; ok {
			return []Status{e.statusLocked(ticker, st)}
		}
		return nil
	}

	out := make([]Status, 0, len(e.states))
	for t, st := range e.states {
		out = append(out, e.statusLocked(t, st))
	}
	return out
}

func (e *Engine) statusLocked(ticker string, st *TickerState) Status {
	status := Status{
		Ticker:  ticker,
		State:   st.State,
		Since:   st.Since,
		Reason:  st.Reason,
		Signals: st.Signals,
	}
	if series, ok := e.series[ticker]; ok {
		status.Snapshots = series.Len()
		status.Latest = series.Latest()
	}
	return status
}

// spotDirection reads recent spot momentum: the sign of the move over the
// last three snapshots.
func spotDirection(series *Series) string {
	if series == nil {
		return "NEUTRAL"
	}
	back := series.Back(2)
	cur := series.Latest()
	if back == nil || cur == nil || cur.Spot == back.Spot {
		return "NEUTRAL"
	}
	if cur.Spot > back.Spot {
		return "UP"
	}
	return "DOWN"
}

// spotAccelerating reports whether the last two spot moves point the same
// way with growing magnitude.
func spotAccelerating(series *Series) bool {
	s0, s1, s2 := series.Back(2), series.Back(1), series.Latest()
	if s0 == nil || s1 == nil || s2 == nil {
		return false
	}
	m0 := s1.Spot - s0.Spot
	m1 := s2.Spot - s1.Spot
	if m0 == 0 || (m0 > 0) != (m1 > 0) {
		return false
	}
	return abs(m1) > abs(m0)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
