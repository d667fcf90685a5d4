package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/gexdata"
	"github.com/dgnsrekt/gexbrain/internal/indicators"
	"github.com/dgnsrekt/gexbrain/internal/market"
	"github.com/dgnsrekt/gexbrain/internal/regime"
	"github.com/dgnsrekt/gexbrain/internal/squeeze"
)

var nyLoc, _ = time.LoadLocation("America/New_York")

func testDecisionEngine(t *testing.T) *Engine {
	t.Helper()
	clock := market.NewClock("America/New_York", 15*time.Minute)
	e, err := NewEngine(clock, DefaultConfig(), nil, zap.NewNop())
	require.NoError(t, err)
	return e
}

// tradableNow is a Monday afternoon well inside the regular session.
func tradableNow() time.Time {
	return time.Date(2026, 8, 31, 14, 30, 0, 0, nyLoc)
}

// bullishTechnicals is a VWAP reclaim with MACD histogram flipping positive
// and RSI turning up out of the washed-out zone.
func bullishTechnicals() *indicators.Snapshot {
	return &indicators.Snapshot{
		RSI:           46,
		PrevRSI:       44,
		MACDHistogram: 0.2,
		PrevMACDHist:  -0.1,
		VWAP:          590.0,
		Close:         590.6,
		PrevClose:     589.8,
		PriorHigh:     591.5,
		PriorLow:      588.0,
		Bars:          60,
	}
}

// flatTechnicals sits above VWAP with nothing triggering.
func flatTechnicals() *indicators.Snapshot {
	return &indicators.Snapshot{
		RSI:           52,
		PrevRSI:       52,
		MACDHistogram: 0.1,
		PrevMACDHist:  0.1,
		VWAP:          589.0,
		Close:         590.0,
		PrevClose:     590.1,
		PriorHigh:     591.5,
		PriorLow:      588.0,
		Bars:          60,
	}
}

func shortGammaSummary(netGEX float64) *gex.Summary {
	return &gex.Summary{
		Ticker: "SPY",
		Spot:   590,
		Aggregation: gex.Aggregation{
			TotalNetGEX: netGEX,
		},
		Walls: gex.Walls{
			CallWalls: []gex.Wall{{Strike: 595, NetGEX: 80e6}},
			PutWalls:  []gex.Wall{{Strike: 585, NetGEX: -60e6}},
		},
	}
}

func baseInput() Input {
	return Input{
		Ticker:        "SPY",
		Now:           tradableNow(),
		Spot:          590,
		Technicals:    bullishTechnicals(),
		Summary:       shortGammaSummary(-100e6),
		ShortGammaPct: 55,
	}
}

func TestEvaluate_BullishTriggerBuysCall(t *testing.T) {
	e := testDecisionEngine(t)

	res, err := e.Evaluate(baseInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, ActionBuyCall, res.Action)
	assert.Equal(t, DirectionCall, res.Direction)
	assert.Equal(t, 6, res.Conviction)
	assert.Equal(t, "scalp", res.Strategy)
	assert.Empty(t, res.ReasonCode)
	assert.NotEmpty(t, res.ID)

	// Price invalidation for a call sits at the put wall below spot.
	assert.Equal(t, 585.0, res.RiskControls.PriceInvalidation)
	assert.Equal(t, 30.0, res.RiskControls.PremiumStopPct)
	assert.Equal(t, 45, res.RiskControls.TimeStopMinutes)
}

func TestEvaluate_MarketClosed(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	in.Now = time.Date(2026, 8, 29, 14, 30, 0, 0, nyLoc) // Saturday
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionNoTrade, res.Action)
	assert.Equal(t, ReasonMarketClosed, res.ReasonCode)

	in.Now = time.Date(2026, 8, 31, 9, 40, 0, 0, nyLoc) // inside open skip
	res, err = e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonMarketClosed, res.ReasonCode)
}

func TestEvaluate_MissingSpot(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	in.Spot = 0
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonMissingSpot, res.ReasonCode)
}

func TestEvaluate_InsufficientBars(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	in.Technicals = nil
	in.Bars = makeBars(10, 590)
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonInsufficientBars, res.ReasonCode)
}

func TestEvaluate_NoTrigger(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	in.Technicals = flatTechnicals()
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionNoTrade, res.Action)
	assert.Equal(t, ReasonNoTrigger, res.ReasonCode)
}

func TestEvaluate_MacroRiskOff(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	in.Macro = &MacroInput{Regime: MacroRiskOff, Score: -0.8}
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonMacroRiskOff, res.ReasonCode)

	in.Macro = &MacroInput{Regime: MacroCautious, Score: 0.1}
	res, err = e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionBuyCall, res.Action)
}

func TestEvaluate_SqueezeConditionsRaiseConviction(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	in.ShortGammaPct = 65
	in.Summary = shortGammaSummary(-350e6)
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)

	assert.Equal(t, ActionBuyCall, res.Action)
	assert.Equal(t, 7, res.Conviction)
}

func TestEvaluate_LowShortGammaCapsConviction(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	in.ShortGammaPct = 40
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)

	assert.Equal(t, ActionBuyCall, res.Action)
	assert.LessOrEqual(t, res.Conviction, 5)
}

func TestEvaluate_SqueezeSignalBoost(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	in.Squeeze = &squeeze.Signal{Active: true, State: squeeze.StateActiveSqueeze, ConvictionBoost: 2, Direction: "UP"}
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)

	assert.Equal(t, 8, res.Conviction)
}

func TestEvaluate_AdvisoryShiftsButNeverFlips(t *testing.T) {
	e := testDecisionEngine(t)

	// Strong agreement adds two.
	in := baseInput()
	in.Advisory = &AdvisoryInput{Direction: DirectionCall, Conviction: 9}
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionBuyCall, res.Action)
	assert.Equal(t, 8, res.Conviction)

	// Disagreement costs two but the direction holds. Squeeze conditions
	// keep the base high enough to survive the minimum.
	in = baseInput()
	in.ShortGammaPct = 65
	in.Summary = shortGammaSummary(-350e6)
	in.Advisory = &AdvisoryInput{Direction: DirectionPut, Conviction: 9}
	res, err = e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionBuyCall, res.Action)
	assert.Equal(t, 5, res.Conviction)
}

func TestEvaluate_AdvisoryLowConviction(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	in.Advisory = &AdvisoryInput{Direction: DirectionCall, Conviction: 1}
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionNoTrade, res.Action)
	assert.Equal(t, ReasonAILowConviction, res.ReasonCode)
}

func TestEvaluate_Throttles(t *testing.T) {
	e := testDecisionEngine(t)
	now := tradableNow()

	// Three trades already this hour.
	for i := 0; i < 3; i++ {
		e.tracker.RecordTrade("SPY", 10, now.Add(-time.Duration(i+1)*10*time.Minute))
	}
	res, err := e.Evaluate(baseInput(), nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonMaxTradesPerHour, res.ReasonCode)
}

func TestEvaluate_LossCooldown(t *testing.T) {
	e := testDecisionEngine(t)
	now := tradableNow()

	e.tracker.RecordTrade("SPY", -50, now.Add(-30*time.Minute))
	e.tracker.RecordTrade("SPY", -40, now.Add(-20*time.Minute))

	res, err := e.Evaluate(baseInput(), nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonConsecutiveLosses, res.ReasonCode)
}

func TestEvaluate_CorrelatedExposure(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	in.OpenPositions = []string{"SPX", "QQQ"}
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonCorrelatedExposure, res.ReasonCode)

	in.OpenPositions = []string{"SPX", "AAPL"}
	res, err = e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionBuyCall, res.Action)
}

func TestEvaluate_StrikeValidation(t *testing.T) {
	e := testDecisionEngine(t)

	// Delta too low.
	in := baseInput()
	in.Contract = &ContractInput{Strike: 590, Delta: 0.20, Bid: 1.00, Ask: 1.05}
	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonDeltaOutOfRange, res.ReasonCode)

	// Strike too far from spot.
	in.Contract = &ContractInput{Strike: 598, Delta: 0.42, Bid: 1.00, Ask: 1.05}
	res, err = e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonStrikeTooFar, res.ReasonCode)

	// Spread too wide rejects at the safety gate.
	in.Contract = &ContractInput{Strike: 590, Delta: 0.42, Bid: 1.00, Ask: 1.10}
	res, err = e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonSpreadTooWide, res.ReasonCode)

	// A clean contract passes.
	in.Contract = &ContractInput{Strike: 590, Delta: 0.42, Bid: 1.00, Ask: 1.05}
	res, err = e.Evaluate(in, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionBuyCall, res.Action)
}

func TestEvaluate_NoTradeAlwaysHasReasonCode(t *testing.T) {
	e := testDecisionEngine(t)

	inputs := []Input{
		func() Input { in := baseInput(); in.Spot = 0; return in }(),
		func() Input { in := baseInput(); in.Technicals = flatTechnicals(); return in }(),
		func() Input {
			in := baseInput()
			in.Macro = &MacroInput{Regime: MacroRiskOff}
			return in
		}(),
	}

	for _, in := range inputs {
		res, err := e.Evaluate(in, nil)
		require.NoError(t, err)
		if res.Action == ActionNoTrade {
			assert.NotEmpty(t, res.ReasonCode)
		}
		assert.Equal(t, "scalp", res.Strategy)
	}
}

func TestEvaluate_InvalidOverridesFailTheCall(t *testing.T) {
	e := testDecisionEngine(t)

	_, err := e.Evaluate(baseInput(), &Config{Strategy: "swing"})
	assert.Error(t, err)
}

func TestEvaluate_CarriesBothRegimes(t *testing.T) {
	e := testDecisionEngine(t)

	in := baseInput()
	base := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	in.Summary.Expiries = []gexdata.ExpirySlice{
		{Expiry: base, NetGEX: -120e6, LocalRegime: gexdata.RegimeShortGamma},
		{Expiry: base.AddDate(0, 0, 4), NetGEX: 20e6, LocalRegime: gexdata.RegimeLongGamma},
	}
	in.Summary.Regime = gex.Regime{Label: gexdata.RegimeShortGamma, Confidence: 0.6}

	res, err := e.Evaluate(in, nil)
	require.NoError(t, err)

	assert.Equal(t, gexdata.RegimeShortGamma, res.DecisionRegime.Label)
	assert.Equal(t, regime.HorizonZeroDTE, res.DecisionRegime.Source)
	assert.Equal(t, gexdata.RegimeShortGamma, res.ContextRegime.Label)
	assert.Equal(t, regime.HorizonAggregate, res.ContextRegime.Source)
}

func makeBars(n int, around float64) []gexdata.Bar {
	start := time.Date(2026, 8, 31, 13, 30, 0, 0, time.UTC)
	bars := make([]gexdata.Bar, n)
	for i := range bars {
		bars[i] = gexdata.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      around,
			High:      around + 0.5,
			Low:       around - 0.5,
			Close:     around,
			Volume:    1000,
		}
	}
	return bars
}
