package squeeze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func seriesOf(snaps ...Snapshot) *Series {
	s := NewSeries(100)
	for _, snap := range snaps {
		s.Append(snap)
	}
	return s
}

func snapAt(minute int, spot, netGEX float64) Snapshot {
	return Snapshot{
		Timestamp:        time.Date(2026, 8, 31, 14, minute, 0, 0, time.UTC),
		Spot:             spot,
		NetGEX:           netGEX,
		DealerShortGamma: netGEX < 0,
	}
}

func TestComputeSignals_FastGEXChange(t *testing.T) {
	cfg := Config{}.withDefaults()

	series := seriesOf(
		snapAt(0, 590, -200e6),
		snapAt(3, 589, -230e6), // -15% in one tick
	)

	sig := computeSignals(series, cfg)
	assert.True(t, sig.DealerShortGamma)
	assert.True(t, sig.FastGEXChange)
	assert.InDelta(t, -15, sig.GEXChangePct, 0.01)
	assert.False(t, sig.BelowFloor)
}

func TestComputeSignals_SlowChange(t *testing.T) {
	cfg := Config{}.withDefaults()

	series := seriesOf(
		snapAt(0, 590, -200e6),
		snapAt(3, 590, -210e6), // -5%
	)

	sig := computeSignals(series, cfg)
	assert.False(t, sig.FastGEXChange)
}

func TestComputeSignals_BelowFloor(t *testing.T) {
	cfg := Config{}.withDefaults()

	series := seriesOf(snapAt(0, 590, 0.5e6))
	sig := computeSignals(series, cfg)
	assert.True(t, sig.BelowFloor)
}

func TestComputeSignals_NearFlip(t *testing.T) {
	cfg := Config{}.withDefaults()

	near := snapAt(0, 590, -50e6)
	dist := 0.2
	near.FlipDistancePct = &dist

	sig := computeSignals(seriesOf(near), cfg)
	assert.True(t, sig.NearFlip)

	far := snapAt(0, 590, -50e6)
	farDist := 1.5
	far.FlipDistancePct = &farDist

	sig = computeSignals(seriesOf(far), cfg)
	assert.False(t, sig.NearFlip)
}

func TestComputeSignals_DealerFlippedLong(t *testing.T) {
	cfg := Config{}.withDefaults()

	series := seriesOf(
		snapAt(0, 590, -50e6),
		snapAt(3, 591, 20e6),
	)

	sig := computeSignals(series, cfg)
	assert.True(t, sig.DealerFlippedLong)
	assert.False(t, sig.DealerShortGamma)
}

func TestComputeSignals_RatioShift(t *testing.T) {
	cfg := Config{}.withDefaults()

	a := snapAt(0, 590, -50e6)
	a.PutCallOIRatio = 1.2
	b := snapAt(3, 590, -50e6)
	b.PutCallOIRatio = 1.15
	c := snapAt(6, 590, -50e6)
	c.PutCallOIRatio = 1.1
	d := snapAt(9, 590, -50e6)
	d.PutCallOIRatio = 0.95 // -0.25 vs three polls back

	sig := computeSignals(seriesOf(a, b, c, d), cfg)
	assert.True(t, sig.RatioShifting)
	assert.InDelta(t, -0.25, sig.RatioShift, 1e-9)
}

func TestWallBreak(t *testing.T) {
	snap := snapAt(0, 592.5, -50e6)
	snap.CallWall = &WallLevel{Price: 590}
	assert.True(t, wallBreak(&snap, 0.3)) // 0.42% beyond the wall

	snap.Spot = 590.5 // 0.08% beyond, inside the threshold
	assert.False(t, wallBreak(&snap, 0.3))

	snap = snapAt(0, 586, -50e6)
	snap.PutWall = &WallLevel{Price: 588}
	assert.True(t, wallBreak(&snap, 0.3))
}

func TestOIChangeSignificant(t *testing.T) {
	cfg := Config{}.withDefaults()

	prev := snapAt(0, 590, -50e6)
	prev.StrikeOI = []StrikeOI{
		{Strike: 585, OI: 1000},
		{Strike: 590, OI: 2000},
		{Strike: 595, OI: 1500},
	}

	// Three strikes each moving over 5%: significant.
	cur := snapAt(3, 590, -50e6)
	cur.StrikeOI = []StrikeOI{
		{Strike: 585, OI: 1100},
		{Strike: 590, OI: 2200},
		{Strike: 595, OI: 1650},
	}
	assert.True(t, oiChangeSignificant(&prev, &cur, cfg))

	// Tiny moves everywhere: not significant.
	calm := snapAt(3, 590, -50e6)
	calm.StrikeOI = []StrikeOI{
		{Strike: 585, OI: 1010},
		{Strike: 590, OI: 2010},
		{Strike: 595, OI: 1505},
	}
	assert.False(t, oiChangeSignificant(&prev, &calm, cfg))
}

func TestIVCrushLag(t *testing.T) {
	// Five polls, mostly dealer short, net GEX drifting less negative.
	series := seriesOf(
		snapAt(0, 590, -100e6),
		snapAt(3, 590, -90e6),
		snapAt(6, 590, -70e6),
		snapAt(9, 590, -50e6),
		snapAt(12, 590, -30e6),
	)
	assert.True(t, ivCrushLag(series))

	// Still short but deepening: not a lag.
	deepening := seriesOf(
		snapAt(0, 590, -30e6),
		snapAt(3, 590, -50e6),
		snapAt(6, 590, -70e6),
		snapAt(9, 590, -90e6),
		snapAt(12, 590, -100e6),
	)
	assert.False(t, ivCrushLag(deepening))

	// Too little history.
	assert.False(t, ivCrushLag(seriesOf(snapAt(0, 590, -100e6))))
}

func TestSeries_BoundedFIFO(t *testing.T) {
	s := NewSeries(3)
	for i := 0; i < 5; i++ {
		s.Append(snapAt(i, 590+float64(i), -50e6))
	}

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 594.0, s.Latest().Spot)
	assert.Equal(t, 592.0, s.Back(2).Spot)
	assert.Nil(t, s.Back(3))

	last2 := s.LastN(2)
	assert.Len(t, last2, 2)
	assert.Equal(t, 593.0, last2[0].Spot)
}
