package usecase

import (
	"fmt"
	"math"
	"strings"
	"time"

	"SignalFuse/internal/domain/models"
	dservice "SignalFuse/internal/domain/service"

	"github.com/google/uuid"
)

// AnomalyDetector evaluates a symbol's rolling tick history and classifies
// price, volume and volatility deviations.
type AnomalyDetector struct {
	cfg    models.AnomalyConfig
	scorer dservice.SeverityScorer
}

// NewAnomalyDetector creates a detector with the given thresholds and scorer.
func NewAnomalyDetector(cfg models.AnomalyConfig, scorer dservice.SeverityScorer) *AnomalyDetector {
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = 5
	}
	return &AnomalyDetector{cfg: cfg, scorer: scorer}
}

type candidate struct {
	signalType string
	severity   int
	rationale  string
}

// Evaluate inspects the history (most recent first, history[0] is the fresh
// tick) and returns the market event and signal record to emit, or nil when
// there is no signal. Fewer than MinHistory ticks is the cold-start case and
// never a signal.
func (d *AnomalyDetector) Evaluate(symbol string, history []*models.RawTick) (*models.DomainEvent, *models.MarketSignal) {
	if len(history) < d.cfg.MinHistory {
		return nil, nil
	}
	latest := history[0]

	var candidates []candidate

	if absPct := math.Abs(latest.ChangePct5m); absPct >= d.cfg.PriceSpike5mPct {
		candidates = append(candidates, candidate{
			signalType: models.SignalPriceSpike,
			severity:   d.scorer.PriceSpike(absPct),
			rationale:  fmt.Sprintf("price moved %.2f%% in 5m", latest.ChangePct5m),
		})
	}

	if latest.VolumeSpike && latest.AvgVolume20 > 0 {
		multiple := latest.Volume / latest.AvgVolume20
		candidates = append(candidates, candidate{
			signalType: models.SignalVolumeSpike,
			severity:   d.scorer.VolumeSpike(multiple),
			rationale:  fmt.Sprintf("volume %.1fx the 20-period average", multiple),
		})
	}

	if rangePct := rangePercent(history, latest.Price); rangePct >= d.cfg.VolatilityRangePct {
		candidates = append(candidates, candidate{
			signalType: models.SignalVolatility,
			severity:   d.scorer.VolatilityRange(rangePct),
			rationale:  fmt.Sprintf("high-low range %.2f%% of price over 5 ticks", rangePct),
		})
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	// The highest-severity candidate names the signal; the rationale carries
	// every firing reason.
	winner := candidates[0]
	rationales := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.severity > winner.severity {
			winner = c
		}
		rationales = append(rationales, c.rationale)
	}
	rationale := strings.Join(rationales, "; ")

	direction := models.DirectionNeutral
	switch {
	case latest.ChangePct5m > 0:
		direction = models.DirectionPositive
	case latest.ChangePct5m < 0:
		direction = models.DirectionNegative
	}

	confidence := d.scorer.Confidence(len(candidates))

	event := &models.DomainEvent{
		ID:        uuid.NewString(),
		Domain:    models.DomainMarket,
		Type:      winner.signalType,
		Title:     fmt.Sprintf("%s %s detected", symbol, strings.ReplaceAll(winner.signalType, "_", " ")),
		Severity:  winner.severity,
		Direction: direction,
		Sentiment: direction,
		Keywords:  []string{strings.ToLower(symbol), winner.signalType, "anomaly"},
		Entities:  []models.Entity{{Type: "ticker", Value: symbol}},
		Rationale: rationale,
		Timestamp: latest.Timestamp,
	}

	signal := &models.MarketSignal{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		Type:           winner.signalType,
		Severity:       winner.severity,
		Confidence:     confidence,
		Direction:      direction,
		Rationale:      rationale,
		Price:          latest.Price,
		StopLoss:       latest.Price * 0.95,
		MaxPositionPct: 5,
		Disclaimer:     models.SignalDisclaimer,
		Timestamp:      latest.Timestamp,
	}

	return event, signal
}

// rangePercent computes the high-low range across the 5 most recent ticks as
// a percentage of the current price.
func rangePercent(history []*models.RawTick, price float64) float64 {
	if price <= 0 {
		return 0
	}
	n := 5
	if len(history) < n {
		n = len(history)
	}
	high := math.Inf(-1)
	low := math.Inf(1)
	for _, t := range history[:n] {
		h, l := t.High, t.Low
		if h <= 0 {
			h = t.Price
		}
		if l <= 0 {
			l = t.Price
		}
		if h > high {
			high = h
		}
		if l < low {
			low = l
		}
	}
	return (high - low) / price * 100
}

// HistoryWindowFor returns the lookback start for a detection at now.
func HistoryWindowFor(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = 60 * time.Minute
	}
	return now.Add(-window)
}
