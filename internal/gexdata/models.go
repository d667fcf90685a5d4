package gexdata

import "time"

// StrikeRow is one strike's open interest and dollar gamma for a single
// expiration. NetGEX is always CallGEX + PutGEX; providers that report only
// a net figure are rejected at normalization.
type StrikeRow struct {
	Strike  float64 `json:"strike"`
	CallOI  float64 `json:"call_oi"`
	PutOI   float64 `json:"put_oi"`
	CallGEX float64 `json:"call_gex"`
	PutGEX  float64 `json:"put_gex"`
	NetGEX  float64 `json:"net_gex"`
}

// ExpirySlice is one expiration's raw gamma data. Immutable once fetched;
// it lives for a single analysis call.
type ExpirySlice struct {
	Expiry      time.Time   `json:"expiry"`
	NetGEX      float64     `json:"net_gex"`
	Strikes     []StrikeRow `json:"strikes"`
	FlipPoint   *float64    `json:"flip_point,omitempty"`
	LocalRegime string      `json:"local_regime"`
}

// TotalOI returns the summed call+put open interest across all strikes.
func (e *ExpirySlice) TotalOI() float64 {
	var total float64
	for _, s := range e.Strikes {
		total += s.CallOI + s.PutOI
	}
	return total
}

// Bar is one intraday OHLCV bar.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}
