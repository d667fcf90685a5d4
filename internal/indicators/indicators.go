// Package indicators computes the technical inputs consumed by the trigger
// gate: RSI, MACD histogram, session VWAP, and prior-bar extremes.
package indicators

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/dgnsrekt/gexbrain/internal/gexdata"
)

// ErrInsufficientHistory means there are not enough bars to evaluate an
// indicator. Callers surface this as a reason code, never a best-effort
// guess.
var ErrInsufficientHistory = errors.New("insufficient bar history")

const (
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// Snapshot is one bar window's computed technicals. Bars are oldest first;
// every value refers to the most recent bar.
type Snapshot struct {
	RSI           float64
	PrevRSI       float64
	MACDHistogram float64
	PrevMACDHist  float64
	VWAP          float64
	Close         float64
	PrevClose     float64
	PriorHigh     float64 // highest high of the prior N bars, current excluded
	PriorLow      float64
	Bars          int
}

// Compute builds a Snapshot from intraday bars. priorWindow is the lookback
// for the prior high/low break levels (typically 5).
func Compute(bars []gexdata.Bar, priorWindow int) (*Snapshot, error) {
	need := macdSlow + macdSignal
	if len(bars) < need {
		return nil, fmt.Errorf("need %d bars, got %d: %w", need, len(bars), ErrInsufficientHistory)
	}
	if priorWindow <= 0 || len(bars) < priorWindow+1 {
		return nil, fmt.Errorf("need %d bars for prior window, got %d: %w", priorWindow+1, len(bars), ErrInsufficientHistory)
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	rsi := talib.Rsi(closes, rsiPeriod)
	_, _, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)

	last := len(bars) - 1
	snap := &Snapshot{
		RSI:           rsi[last],
		PrevRSI:       rsi[last-1],
		MACDHistogram: hist[last],
		PrevMACDHist:  hist[last-1],
		VWAP:          VWAP(bars),
		Close:         closes[last],
		PrevClose:     closes[last-1],
		Bars:          len(bars),
	}

	prior := bars[last-priorWindow : last]
	snap.PriorHigh = prior[0].High
	snap.PriorLow = prior[0].Low
	for _, b := range prior[1:] {
		if b.High > snap.PriorHigh {
			snap.PriorHigh = b.High
		}
		if b.Low < snap.PriorLow {
			snap.PriorLow = b.Low
		}
	}

	return snap, nil
}

// VWAP is the volume weighted average of the typical price across the
// window. Zero-volume windows fall back to the last close.
func VWAP(bars []gexdata.Bar) float64 {
	var cumPV, cumVol float64
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		cumPV += typical * b.Volume
		cumVol += b.Volume
	}
	if cumVol == 0 {
		return bars[len(bars)-1].Close
	}
	return cumPV / cumVol
}
