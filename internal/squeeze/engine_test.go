package squeeze

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/market"
	"github.com/dgnsrekt/gexbrain/internal/notify"
	"github.com/dgnsrekt/gexbrain/internal/store"
)

func testSqueezeEngine(st store.Store) *Engine {
	clock := market.NewClock("America/New_York", 15*time.Minute)
	return NewEngine(nil, clock, st, &notify.NoopNotifier{}, Config{}, zap.NewNop())
}

// squeezeSummary builds a dealer-short summary near its gamma flip with a
// large tick-over-tick GEX change baked in by the caller.
func squeezeSummary(spot, netGEX float64) *gex.Summary {
	flip := spot + 0.5
	return &gex.Summary{
		Ticker:      "SPY",
		Spot:        spot,
		GeneratedAt: time.Now().UTC(),
		Aggregation: gex.Aggregation{TotalNetGEX: netGEX},
		GammaFlip:   &flip,
	}
}

func TestEngine_EscalationRequiresConfirmation(t *testing.T) {
	e := testSqueezeEngine(store.NewMemory())
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 18, 30, 0, 0, time.UTC)

	// Seed one calm short-gamma snapshot.
	e.evaluate(ctx, "SPY", squeezeSummary(590, -200e6), now)
	assert.Equal(t, StateNormal, e.GetSqueezeStatus("SPY")[0].State)

	// GEX collapsing fast near the flip: active_squeeze proposed, but the
	// first tick only arms the pending state.
	e.evaluate(ctx, "SPY", squeezeSummary(590.5, -250e6), now.Add(3*time.Minute))
	assert.Equal(t, StateNormal, e.GetSqueezeStatus("SPY")[0].State)

	// Second consecutive tick commits.
	e.evaluate(ctx, "SPY", squeezeSummary(591, -310e6), now.Add(6*time.Minute))
	st := e.GetSqueezeStatus("SPY")[0]
	assert.Equal(t, StateActiveSqueeze, st.State)
	assert.NotEmpty(t, st.Reason)
}

func TestEngine_SignalExport(t *testing.T) {
	e := testSqueezeEngine(store.NewMemory())
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 18, 30, 0, 0, time.UTC)

	// Unknown ticker reports inactive.
	sig := e.GetSqueezeSignal("QQQ")
	assert.False(t, sig.Active)
	assert.Equal(t, StateNormal, sig.State)
	assert.Equal(t, 0, sig.ConvictionBoost)

	for i := 0; i < 3; i++ {
		e.evaluate(ctx, "SPY",
			squeezeSummary(590+float64(i), -200e6*float64(i+1)),
			now.Add(time.Duration(i)*3*time.Minute))
	}

	sig = e.GetSqueezeSignal("SPY")
	assert.True(t, sig.Active)
	assert.Equal(t, StateActiveSqueeze, sig.State)
	assert.Equal(t, 2, sig.ConvictionBoost)
	assert.Equal(t, "UP", sig.Direction)
}

func TestEngine_TransitionHookFires(t *testing.T) {
	e := testSqueezeEngine(store.NewMemory())
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 18, 30, 0, 0, time.UTC)

	var events []TransitionEvent
	e.SetTransitionHook(func(ev TransitionEvent) {
		events = append(events, ev)
	})

	for i := 0; i < 3; i++ {
		e.evaluate(ctx, "SPY",
			squeezeSummary(590, -200e6*float64(i+1)),
			now.Add(time.Duration(i)*3*time.Minute))
	}

	require.Len(t, events, 1)
	assert.Equal(t, "SPY", events[0].Ticker)
	assert.Equal(t, StateNormal, events[0].From)
	assert.Equal(t, StateActiveSqueeze, events[0].To)
}

func TestEngine_PersistenceRoundtrip(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 18, 30, 0, 0, time.UTC)

	e := testSqueezeEngine(st)
	for i := 0; i < 3; i++ {
		e.evaluate(ctx, "SPY",
			squeezeSummary(590+float64(i), -200e6*float64(i+1)),
			now.Add(time.Duration(i)*3*time.Minute))
	}
	require.NoError(t, e.Flush(ctx))

	restored := testSqueezeEngine(st)
	require.NoError(t, restored.rehydrate(ctx))

	status := restored.GetSqueezeStatus("SPY")
	require.Len(t, status, 1)
	assert.Equal(t, StateActiveSqueeze, status[0].State)
	assert.Equal(t, 3, status[0].Snapshots)
}

func TestEngine_BelowFloorResetsImmediatelyProposal(t *testing.T) {
	e := testSqueezeEngine(store.NewMemory())
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 18, 30, 0, 0, time.UTC)

	// Drive to active_squeeze first.
	for i := 0; i < 3; i++ {
		e.evaluate(ctx, "SPY",
			squeezeSummary(590, -200e6*float64(i+1)),
			now.Add(time.Duration(i)*3*time.Minute))
	}
	require.Equal(t, StateActiveSqueeze, e.GetSqueezeStatus("SPY")[0].State)

	// GEX drops under the floor: normal is proposed but still needs two
	// ticks, the hysteresis applies symmetrically.
	e.evaluate(ctx, "SPY", squeezeSummary(590, 0.2e6), now.Add(9*time.Minute))
	assert.Equal(t, StateActiveSqueeze, e.GetSqueezeStatus("SPY")[0].State)
	e.evaluate(ctx, "SPY", squeezeSummary(590, 0.2e6), now.Add(12*time.Minute))
	assert.Equal(t, StateNormal, e.GetSqueezeStatus("SPY")[0].State)
}

func TestSpotDirection(t *testing.T) {
	assert.Equal(t, "NEUTRAL", spotDirection(nil))

	up := seriesOf(snapAt(0, 590, -1e8), snapAt(3, 591, -1e8), snapAt(6, 592, -1e8))
	assert.Equal(t, "UP", spotDirection(up))

	down := seriesOf(snapAt(0, 592, -1e8), snapAt(3, 591, -1e8), snapAt(6, 590, -1e8))
	assert.Equal(t, "DOWN", spotDirection(down))

	short := seriesOf(snapAt(0, 590, -1e8))
	assert.Equal(t, "NEUTRAL", spotDirection(short))
}

func TestAlertCooldown(t *testing.T) {
	e := testSqueezeEngine(store.NewMemory())
	now := time.Date(2026, 8, 31, 18, 30, 0, 0, time.UTC)

	assert.True(t, e.alertAllowed("SPY", "transition", now))
	assert.False(t, e.alertAllowed("SPY", "transition", now.Add(10*time.Minute)))
	// Different kind and different ticker have independent cooldowns.
	assert.True(t, e.alertAllowed("SPY", "acceleration", now.Add(10*time.Minute)))
	assert.True(t, e.alertAllowed("QQQ", "transition", now.Add(10*time.Minute)))
	// Cooldown expires after 30 minutes.
	assert.True(t, e.alertAllowed("SPY", "transition", now.Add(31*time.Minute)))
}
