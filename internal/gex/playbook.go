package gex

import (
	"fmt"
	"math"

	"github.com/dgnsrekt/gexbrain/internal/gexdata"
)

// playbook derives up to three short advisory strings from the regime and
// wall positions. These are descriptive context for humans, not a trade
// signal.
func playbook(s *Summary) []string {
	var plays []string

	add := func(msg string) {
		if len(plays) < 3 {
			plays = append(plays, msg)
		}
	}

	switch s.Regime.Label {
	case gexdata.RegimeLongGamma:
		if wall, ok := nearestCallWallAbove(s); ok {
			add(fmt.Sprintf("below call wall %.0f in long gamma: dealer hedging dampens moves, expect mean reversion toward the wall", wall.Strike))
		} else {
			add("long gamma: dealer hedging dampens moves, fades favored over breakouts")
		}
	case gexdata.RegimeShortGamma:
		add("short gamma: dealer hedging amplifies moves, momentum carries further than usual")
		if wall, ok := nearestPutWallBelow(s); ok {
			add(fmt.Sprintf("put wall %.0f below is the likely acceleration level if lost", wall.Strike))
		}
	default:
		add("mixed regime: no dominant dealer positioning, expect choppy two-way tape")
	}

	if s.GammaFlip != nil && s.Spot > 0 {
		distPct := math.Abs(s.Spot-*s.GammaFlip) / s.Spot * 100
		if distPct < 1.0 {
			add(fmt.Sprintf("spot within %.1f%% of gamma flip %.0f: regime character changes if crossed", distPct, *s.GammaFlip))
		}
	}

	for _, wall := range s.Walls.CallWalls {
		if wall.Stacked {
			add(fmt.Sprintf("call wall %.0f is stacked across %d expirations: stronger resistance", wall.Strike, wall.ExpiryCount))
			break
		}
	}

	return plays
}

func nearestCallWallAbove(s *Summary) (Wall, bool) {
	var best Wall
	found := false
	for _, w := range s.Walls.CallWalls {
		if w.Strike > s.Spot && (!found || w.Strike < best.Strike) {
			best = w
			found = true
		}
	}
	return best, found
}

func nearestPutWallBelow(s *Summary) (Wall, bool) {
	var best Wall
	found := false
	for _, w := range s.Walls.PutWalls {
		if w.Strike < s.Spot && (!found || w.Strike > best.Strike) {
			best = w
			found = true
		}
	}
	return best, found
}
