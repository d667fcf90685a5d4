package squeeze

import (
	"math"
	"time"

	"github.com/dgnsrekt/gexbrain/internal/gex"
)

// WallLevel is one wall's price, distance from spot, and dollar GEX at the
// time of a poll.
type WallLevel struct {
	Price       float64 `json:"price"`
	DistancePct float64 `json:"distance_pct"`
	GEX         float64 `json:"gex"`
}

// StrikeOI is the total open interest at one strike, kept per snapshot so
// the next poll can diff it.
type StrikeOI struct {
	Strike float64 `json:"strike"`
	OI     float64 `json:"oi"`
}

// Snapshot captures one ticker's dealer-positioning read at one poll.
type Snapshot struct {
	Timestamp        time.Time  `json:"timestamp"`
	Spot             float64    `json:"spot"`
	NetGEX           float64    `json:"net_gex"`
	RegimeLabel      string     `json:"regime_label"`
	RegimeConfidence float64    `json:"regime_confidence"`
	GammaFlip        *float64   `json:"gamma_flip,omitempty"`
	FlipDistancePct  *float64   `json:"flip_distance_pct,omitempty"`
	CallWall         *WallLevel `json:"call_wall,omitempty"`
	PutWall          *WallLevel `json:"put_wall,omitempty"`
	PutCallOIRatio   float64    `json:"put_call_oi_ratio"`
	DealerShortGamma bool       `json:"dealer_short_gamma"`
	StrikeOI         []StrikeOI `json:"strike_oi"`
}

// newSnapshot flattens a Summary into the per-poll record the state machine
// diffs against.
func newSnapshot(s *gex.Summary, now time.Time) Snapshot {
	snap := Snapshot{
		Timestamp:        now,
		Spot:             s.Spot,
		NetGEX:           s.Aggregation.TotalNetGEX,
		RegimeLabel:      s.Regime.Label,
		RegimeConfidence: s.Regime.Confidence,
		GammaFlip:        s.GammaFlip,
		DealerShortGamma: s.Aggregation.TotalNetGEX < 0,
	}

	if s.GammaFlip != nil && s.Spot > 0 {
		dist := math.Abs(s.Spot-*s.GammaFlip) / s.Spot * 100
		snap.FlipDistancePct = &dist
	}

	if len(s.Walls.CallWalls) > 0 {
		snap.CallWall = wallLevel(s.Walls.CallWalls[0], s.Spot)
	}
	if len(s.Walls.PutWalls) > 0 {
		snap.PutWall = wallLevel(s.Walls.PutWalls[0], s.Spot)
	}

	var callOI, putOI float64
	snap.StrikeOI = make([]StrikeOI, 0, len(s.Aggregation.ByStrike))
	for _, cs := range s.Aggregation.ByStrike {
		callOI += cs.CallOI
		putOI += cs.PutOI
		snap.StrikeOI = append(snap.StrikeOI, StrikeOI{Strike: cs.Strike, OI: cs.CallOI + cs.PutOI})
	}
	if callOI > 0 {
		snap.PutCallOIRatio = putOI / callOI
	}

	return snap
}

func wallLevel(w gex.Wall, spot float64) *WallLevel {
	wl := &WallLevel{Price: w.Strike, GEX: w.NetGEX}
	if spot > 0 {
		wl.DistancePct = (w.Strike - spot) / spot * 100
	}
	return wl
}

// Series is a bounded FIFO of snapshots, newest last. The oldest entry is
// evicted once capacity is reached.
type Series struct {
	Capacity  int        `json:"capacity"`
	Snapshots []Snapshot `json:"snapshots"`
}

func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = defaultSeriesCapacity
	}
	return &Series{Capacity: capacity}
}

// Append adds a snapshot, evicting the oldest when full.
func (s *Series) Append(snap Snapshot) {
	s.Snapshots = append(s.Snapshots, snap)
	if len(s.Snapshots) > s.Capacity {
		s.Snapshots = s.Snapshots[len(s.Snapshots)-s.Capacity:]
	}
}

// Len returns the number of stored snapshots.
func (s *Series) Len() int {
	return len(s.Snapshots)
}

// Latest returns the newest snapshot, or nil when empty.
func (s *Series) Latest() *Snapshot {
	if len(s.Snapshots) == 0 {
		return nil
	}
	return &s.Snapshots[len(s.Snapshots)-1]
}

// Back returns the snapshot n entries before the newest (Back(0) == Latest),
// or nil when the series is too short.
func (s *Series) Back(n int) *Snapshot {
	idx := len(s.Snapshots) - 1 - n
	if idx < 0 {
		return nil
	}
	return &s.Snapshots[idx]
}

// LastN returns up to n newest snapshots, oldest first.
func (s *Series) LastN(n int) []Snapshot {
	if n >= len(s.Snapshots) {
		return s.Snapshots
	}
	return s.Snapshots[len(s.Snapshots)-n:]
}
