package scoring

import (
	"math"

	dservice "SignalFuse/internal/domain/service"
)

// FixedScorer is the deterministic default scorer. Severity grows linearly
// with magnitude and is clamped to [0,100].
type FixedScorer struct{}

// New returns the default fixed-formula scorer.
func New() dservice.SeverityScorer { return FixedScorer{} }

func (FixedScorer) PriceSpike(absPct5m float64) int {
	return clamp(absPct5m * 20)
}

func (FixedScorer) VolumeSpike(multiple float64) int {
	return clamp(multiple * 25)
}

func (FixedScorer) VolatilityRange(rangePct float64) int {
	return clamp(rangePct * 20)
}

func (FixedScorer) Confidence(firing int) float64 {
	return math.Min(0.95, 0.5+0.15*float64(firing))
}

func clamp(v float64) int {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return int(math.Round(v))
}
