package gex

import (
	"math"
	"sort"

	"github.com/dgnsrekt/gexbrain/internal/gexdata"
)

// aggregate sums net dollar gamma across expiries and unions strikes into
// the clustered per-strike view. Expiry shares are computed against the
// absolute total so opposing expiries don't cancel each other's weight.
func aggregate(slices []gexdata.ExpirySlice) Aggregation {
	agg := Aggregation{
		ByExpiry: make([]ExpiryShare, 0, len(slices)),
	}

	var absTotal float64
	for _, s := range slices {
		agg.TotalNetGEX += s.NetGEX
		absTotal += math.Abs(s.NetGEX)
		agg.ByExpiry = append(agg.ByExpiry, ExpiryShare{
			Expiry: s.Expiry,
			NetGEX: s.NetGEX,
		})
	}

	var dominantShare float64
	for i := range agg.ByExpiry {
		if absTotal > 0 {
			agg.ByExpiry[i].AbsShare = math.Abs(agg.ByExpiry[i].NetGEX) / absTotal
		}
		if agg.ByExpiry[i].AbsShare >= dominantShare {
			dominantShare = agg.ByExpiry[i].AbsShare
			agg.DominantExpiry = agg.ByExpiry[i].Expiry
		}
	}

	agg.ByStrike = clusterStrikes(slices)
	return agg
}

// clusterStrikes unions strikes across expiries, summing OI and dollar GEX
// per strike and counting how many expirations touch each strike. The
// expiry count is what later tags a wall as stacked.
func clusterStrikes(slices []gexdata.ExpirySlice) []ClusteredStrike {
	byStrike := make(map[float64]*ClusteredStrike)

	for _, s := range slices {
		for _, row := range s.Strikes {
			cs, ok := byStrike[row.Strike]
			if !ok {
				cs = &ClusteredStrike{Strike: row.Strike}
				byStrike[row.Strike] = cs
			}
			cs.CallOI += row.CallOI
			cs.PutOI += row.PutOI
			cs.CallGEX += row.CallGEX
			cs.PutGEX += row.PutGEX
			cs.NetGEX += row.NetGEX
			cs.ExpiryCount++
		}
	}

	clustered := make([]ClusteredStrike, 0, len(byStrike))
	for _, cs := range byStrike {
		clustered = append(clustered, *cs)
	}
	sort.Slice(clustered, func(i, j int) bool { return clustered[i].Strike < clustered[j].Strike })

	return clustered
}

// clusterFlip returns the gamma flip price implied by the clustered strike
// view, or nil when the cumulative sum never changes sign.
func clusterFlip(clustered []ClusteredStrike) *float64 {
	rows := make([]gexdata.StrikeRow, len(clustered))
	for i, cs := range clustered {
		rows[i] = gexdata.StrikeRow{Strike: cs.Strike, NetGEX: cs.NetGEX}
	}
	return gexdata.FlipPoint(rows)
}
