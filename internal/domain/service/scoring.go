package service

// SeverityScorer maps raw signal magnitudes to severity scores and a cycle
// confidence. The detector depends on this interface so the deterministic
// default can be swapped for an external scoring strategy.
type SeverityScorer interface {
	// PriceSpike scores an absolute 5-minute percent change.
	PriceSpike(absPct5m float64) int
	// VolumeSpike scores a volume multiple over the 20-period average.
	VolumeSpike(multiple float64) int
	// VolatilityRange scores a 5-tick high-low range as a percent of price.
	VolatilityRange(rangePct float64) int
	// Confidence maps the number of simultaneously firing candidates to a
	// confidence value, capped below certainty.
	Confidence(firing int) float64
}
