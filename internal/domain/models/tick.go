package models

import "time"

// Quote is one raw observation fetched from a market-data provider.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	PrevClose float64   `json:"prevClose"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// RawTick is one per-minute sample of an instrument with derived fields.
// Ticks are keyed by symbol + minute-floored timestamp; repeated writes for
// the same minute overwrite rather than duplicate.
type RawTick struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"` // floored to the minute
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`

	ChangePct1m float64 `json:"changePct1m"`
	ChangePct5m float64 `json:"changePct5m"`
	ChangePct1h float64 `json:"changePct1h"`
	VolumeSpike bool    `json:"volumeSpike"`
	AvgVolume20 float64 `json:"avgVolume20"`
}

// WatchItem is one enabled watch-list entry for a tenant.
type WatchItem struct {
	Tenant  string `json:"tenant"`
	Symbol  string `json:"symbol"`
	Enabled bool   `json:"enabled"`
}
