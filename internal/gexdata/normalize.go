package gexdata

import (
	"fmt"
	"sort"
	"time"
)

// Regime labels shared across the module. The sign of net dollar gamma is
// the only thing that ever decides between Long and Short.
const (
	RegimeLongGamma  = "Long Gamma"
	RegimeShortGamma = "Short Gamma"
	RegimeMixed      = "Mixed/Uncertain"
)

const expiryDateFormat = "2006-01-02"

// normalizeSlice converts one provider expiry payload into the canonical
// ExpirySlice: strikes sorted ascending, NetGEX derived per row, expiry
// total summed, and the local flip point and regime computed here so the
// slice carries everything an analysis call needs.
func normalizeSlice(raw rawSlice) (ExpirySlice, error) {
	expiry, err := time.Parse(expiryDateFormat, raw.Expiry)
	if err != nil {
		return ExpirySlice{}, fmt.Errorf("parsing expiry date: %w", err)
	}

	if len(raw.Strikes) == 0 {
		return ExpirySlice{}, ErrDataUnavailable
	}

	rows := make([]StrikeRow, 0, len(raw.Strikes))
	var total float64
	for i, r := range raw.Strikes {
		if len(r) != 5 {
			return ExpirySlice{}, fmt.Errorf("strike row %d: expected 5 fields, got %d", i, len(r))
		}
		row := StrikeRow{
			Strike:  r[0],
			CallOI:  r[1],
			PutOI:   r[2],
			CallGEX: r[3],
			PutGEX:  r[4],
		}
		row.NetGEX = row.CallGEX + row.PutGEX
		rows = append(rows, row)
		total += row.NetGEX
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Strike < rows[j].Strike })

	return ExpirySlice{
		Expiry:      expiry,
		NetGEX:      total,
		Strikes:     rows,
		FlipPoint:   FlipPoint(rows),
		LocalRegime: RegimeFromSign(total),
	}, nil
}

// RegimeFromSign maps a net dollar gamma figure to its raw regime label.
func RegimeFromSign(netGEX float64) string {
	switch {
	case netGEX > 0:
		return RegimeLongGamma
	case netGEX < 0:
		return RegimeShortGamma
	default:
		return RegimeMixed
	}
}

// FlipPoint walks the strike-sorted cumulative net GEX and returns the
// linearly interpolated price where it changes sign, or nil if the
// cumulative sum never crosses zero. Rows must be sorted by strike.
func FlipPoint(rows []StrikeRow) *float64 {
	if len(rows) < 2 {
		return nil
	}

	cum := rows[0].NetGEX
	for i := 1; i < len(rows); i++ {
		prev := cum
		cum += rows[i].NetGEX
		if prev == 0 {
			if cum != 0 {
				flip := rows[i-1].Strike
				return &flip
			}
			continue
		}
		if (prev < 0) == (cum < 0) {
			continue
		}

		// Interpolate between the strike before and after the sign change.
		lo, hi := rows[i-1].Strike, rows[i].Strike
		span := cum - prev
		if span == 0 {
			flip := lo
			return &flip
		}
		flip := lo + (hi-lo)*(-prev/span)
		return &flip
	}
	return nil
}
