package decision

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgnsrekt/gexbrain/internal/store"
)

const throttleDocKey = "decision:throttle"

// Tracker is the process-wide trade-history state behind the throttle gate.
// RecordTrade writes and the throttle checks read under one mutex; both are
// cheap.
type Tracker struct {
	mu sync.Mutex

	// tradeTimes holds the recent trade timestamps per ticker.
	tradeTimes map[string][]time.Time
	// lossStreak counts consecutive losses per ticker; a win clears it.
	lossStreak map[string]int
	// lastLoss is the time the streak last grew, anchoring the cooldown.
	lastLoss map[string]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		tradeTimes: make(map[string][]time.Time),
		lossStreak: make(map[string]int),
		lastLoss:   make(map[string]time.Time),
	}
}

// RecordTrade registers an executed trade's outcome. A loss extends the
// ticker's consecutive-loss window; a win clears it.
func (t *Tracker) RecordTrade(ticker string, pnl float64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tradeTimes[ticker] = append(t.pruneLocked(ticker, now), now)

	if pnl < 0 {
		t.lossStreak[ticker]++
		t.lastLoss[ticker] = now
	} else {
		t.lossStreak[ticker] = 0
		delete(t.lastLoss, ticker)
	}
}

// TradesInLastHour returns how many trades this ticker has in the rolling
// hour ending at now.
func (t *Tracker) TradesInLastHour(ticker string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	pruned := t.pruneLocked(ticker, now)
	t.tradeTimes[ticker] = pruned
	return len(pruned)
}

// InLossCooldown reports whether the ticker has hit the consecutive-loss
// limit and the cooldown window is still open.
func (t *Tracker) InLossCooldown(ticker string, limit int, cooldown time.Duration, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lossStreak[ticker] < limit {
		return false
	}
	last, ok := t.lastLoss[ticker]
	if !ok {
		return false
	}
	return now.Sub(last) < cooldown
}

func (t *Tracker) pruneLocked(ticker string, now time.Time) []time.Time {
	cutoff := now.Add(-time.Hour)
	var kept []time.Time
	for _, ts := range t.tradeTimes[ticker] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

// persistedThrottle is the keyed document for throttle history.
type persistedThrottle struct {
	TradeTimes map[string][]time.Time `json:"trade_times"`
	LossStreak map[string]int         `json:"loss_streak"`
	LastLoss   map[string]time.Time   `json:"last_loss"`
}

// Save persists the throttle history.
func (t *Tracker) Save(ctx context.Context, st store.Store) error {
	t.mu.Lock()
	doc := persistedThrottle{
		TradeTimes: t.tradeTimes,
		LossStreak: t.lossStreak,
		LastLoss:   t.lastLoss,
	}
	err := st.Set(ctx, throttleDocKey, doc)
	t.mu.Unlock()
	return err
}

// Load rehydrates throttle history; a missing document is not an error.
func (t *Tracker) Load(ctx context.Context, st store.Store) error {
	var doc persistedThrottle
	err := st.Get(ctx, throttleDocKey, &doc)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	t.mu.Lock()
	if doc.TradeTimes != nil {
		t.tradeTimes = doc.TradeTimes
	}
	if doc.LossStreak != nil {
		t.lossStreak = doc.LossStreak
	}
	if doc.LastLoss != nil {
		t.lastLoss = doc.LastLoss
	}
	t.mu.Unlock()
	return nil
}
