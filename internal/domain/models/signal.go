package models

import "time"

// Anomaly signal types emitted by the market detector.
const (
	SignalPriceSpike  = "price_spike"
	SignalVolumeSpike = "volume_spike"
	SignalVolatility  = "volatility"
)

// SignalDisclaimer is attached to every market signal record.
const SignalDisclaimer = "Automated signal. Not investment advice."

// MarketSignal is the domain-specific record written alongside the generic
// market DomainEvent, carrying risk-control hints.
type MarketSignal struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Type           string    `json:"type"`
	Severity       int       `json:"severity"`
	Confidence     float64   `json:"confidence"`
	Direction      string    `json:"direction"`
	Rationale      string    `json:"rationale"`
	Price          float64   `json:"price"`
	StopLoss       float64   `json:"stopLoss"`       // 5% below price
	MaxPositionPct float64   `json:"maxPositionPct"` // suggested position cap
	Disclaimer     string    `json:"disclaimer"`
	Timestamp      time.Time `json:"timestamp"`
}

// AnomalyConfig holds the fixed detection thresholds, loaded once at startup.
type AnomalyConfig struct {
	PriceSpike5mPct       float64 // |5m change %| at or above fires price_spike
	VolumeSpikeMultiplier float64 // volume vs 20-period average
	VolatilityRangePct    float64 // 5-tick high-low range as % of price
	MinHistory            int     // ticks required before any detection
}

// StreamerResult summarizes one collector+detector cycle.
type StreamerResult struct {
	Processed int      `json:"processed"`
	Signals   int      `json:"signals"`
	Errors    []string `json:"errors"`
}

// FusionResult summarizes one fusion cycle.
type FusionResult struct {
	Success   bool      `json:"success"`
	Processed int       `json:"processed"`
	Fused     int       `json:"fused"`
	Errors    []string  `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}
