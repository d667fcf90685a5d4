package gex

import "sort"

const maxWalls = 3

// detectWalls picks the top-3 strikes by positive net GEX as call walls and
// the top-3 most negative as put walls. A wall present in more than one
// expiration is stacked.
func detectWalls(clustered []ClusteredStrike) Walls {
	positive := make([]ClusteredStrike, 0, len(clustered))
	negative := make([]ClusteredStrike, 0, len(clustered))
	for _, cs := range clustered {
		switch {
		case cs.NetGEX > 0:
			positive = append(positive, cs)
		case cs.NetGEX < 0:
			negative = append(negative, cs)
		}
	}

	sort.Slice(positive, func(i, j int) bool { return positive[i].NetGEX > positive[j].NetGEX })
	sort.Slice(negative, func(i, j int) bool { return negative[i].NetGEX < negative[j].NetGEX })

	return Walls{
		CallWalls: toWalls(positive),
		PutWalls:  toWalls(negative),
	}
}

func toWalls(ranked []ClusteredStrike) []Wall {
	if len(ranked) > maxWalls {
		ranked = ranked[:maxWalls]
	}
	walls := make([]Wall, 0, len(ranked))
	for _, cs := range ranked {
		walls = append(walls, Wall{
			Strike:      cs.Strike,
			NetGEX:      cs.NetGEX,
			Stacked:     cs.ExpiryCount > 1,
			ExpiryCount: cs.ExpiryCount,
		})
	}
	return walls
}
