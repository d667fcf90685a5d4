package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/gexdata"
)

func summaryWith(netGEXs ...float64) *gex.Summary {
	base := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	s := &gex.Summary{}
	for i, g := range netGEXs {
		s.Expiries = append(s.Expiries, gexdata.ExpirySlice{
			Expiry:      base.AddDate(0, 0, i*7),
			NetGEX:      g,
			LocalRegime: gexdata.RegimeFromSign(g),
		})
		s.Aggregation.TotalNetGEX += g
	}
	s.Regime = gex.Regime{
		Label:      gexdata.RegimeFromSign(s.Aggregation.TotalNetGEX),
		Confidence: 0.8,
	}
	return s
}

func TestResolve_ZeroDTEBlend(t *testing.T) {
	s := summaryWith(-50e6, 100e6, 200e6)

	tr, err := Resolve(s, HorizonZeroDTE)
	require.NoError(t, err)

	// 0.7*(-50M) + 0.3*(100M) = -5M: short gamma despite the positive
	// aggregate.
	assert.InDelta(t, -5e6, tr.NetGEX, 1)
	assert.Equal(t, gexdata.RegimeShortGamma, tr.Label)
	assert.Equal(t, HorizonZeroDTE, tr.Source)
	assert.NotEmpty(t, tr.Warning, "sign conflict with aggregate must be surfaced")
}

func TestResolve_ZeroDTEAgreementBoostsConfidence(t *testing.T) {
	agree := summaryWith(-50e6, -30e6)
	disagree := summaryWith(-50e6, 30e6)

	trAgree, err := Resolve(agree, HorizonZeroDTE)
	require.NoError(t, err)
	trDisagree, err := Resolve(disagree, HorizonZeroDTE)
	require.NoError(t, err)

	assert.Greater(t, trAgree.Confidence, trDisagree.Confidence)
	assert.Empty(t, trAgree.Warning)
}

func TestResolve_ZeroDTESingleExpiry(t *testing.T) {
	s := summaryWith(80e6)

	tr, err := Resolve(s, HorizonZeroDTE)
	require.NoError(t, err)

	assert.InDelta(t, 80e6, tr.NetGEX, 1)
	assert.Equal(t, gexdata.RegimeLongGamma, tr.Label)
}

func TestResolve_Weekly(t *testing.T) {
	s := summaryWith(-50e6, 100e6, 200e6)

	tr, err := Resolve(s, HorizonWeekly)
	require.NoError(t, err)

	assert.InDelta(t, 100e6, tr.NetGEX, 1)
	assert.Equal(t, gexdata.RegimeLongGamma, tr.Label)
	assert.Equal(t, HorizonWeekly, tr.Source)
}

func TestResolve_WeeklyFallsBackToNearest(t *testing.T) {
	s := summaryWith(-50e6)

	tr, err := Resolve(s, HorizonWeekly)
	require.NoError(t, err)
	assert.InDelta(t, -50e6, tr.NetGEX, 1)
}

func TestResolve_AggregatePassthrough(t *testing.T) {
	s := summaryWith(-50e6, 100e6)
	s.Regime.Warning = "check"

	tr, err := Resolve(s, HorizonAggregate)
	require.NoError(t, err)

	assert.Equal(t, s.Regime.Label, tr.Label)
	assert.Equal(t, s.Regime.Confidence, tr.Confidence)
	assert.Equal(t, "check", tr.Warning)
	assert.InDelta(t, s.Aggregation.TotalNetGEX, tr.NetGEX, 1)
}

func TestResolve_ExpiryOrderIndependent(t *testing.T) {
	// Same expiries supplied out of order resolve identically.
	ordered := summaryWith(-50e6, 100e6)
	shuffled := summaryWith(-50e6, 100e6)
	shuffled.Expiries[0], shuffled.Expiries[1] = shuffled.Expiries[1], shuffled.Expiries[0]

	a, err := Resolve(ordered, HorizonZeroDTE)
	require.NoError(t, err)
	b, err := Resolve(shuffled, HorizonZeroDTE)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestResolve_NoExpiriesFails(t *testing.T) {
	_, err := Resolve(&gex.Summary{}, HorizonZeroDTE)
	assert.Error(t, err)
}
