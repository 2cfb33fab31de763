package usecase

import (
	"strings"
	"testing"
	"time"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/service/scoring"
)

func defaultAnomalyConfig() models.AnomalyConfig {
	return models.AnomalyConfig{
		PriceSpike5mPct:       3.0,
		VolumeSpikeMultiplier: 2.0,
		VolatilityRangePct:    2.0,
		MinHistory:            5,
	}
}

// flatTicks returns n quiet ticks at the given price, most recent first.
func flatTicks(n int, price float64) []*models.RawTick {
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	ticks := make([]*models.RawTick, 0, n)
	for i := 0; i < n; i++ {
		ticks = append(ticks, &models.RawTick{
			Symbol:      "AAPL",
			Timestamp:   base.Add(-time.Duration(i) * time.Minute),
			Price:       price,
			High:        price,
			Low:         price,
			Close:       price,
			Volume:      1000,
			AvgVolume20: 1000,
		})
	}
	return ticks
}

func TestDetectorColdStart(t *testing.T) {
	d := NewAnomalyDetector(defaultAnomalyConfig(), scoring.New())

	for n := 0; n < 5; n++ {
		ticks := flatTicks(n, 190)
		if n > 0 {
			ticks[0].ChangePct5m = 9.9 // would fire with enough history
		}
		event, signal := d.Evaluate("AAPL", ticks)
		if event != nil || signal != nil {
			t.Fatalf("expected no signal with %d ticks", n)
		}
	}
}

func TestDetectorPriceSpike(t *testing.T) {
	d := NewAnomalyDetector(defaultAnomalyConfig(), scoring.New())

	// 190 -> 200 over five minutes is a 5.26% rise; severity clamps to 100.
	ticks := flatTicks(6, 200)
	ticks[0].ChangePct5m = 5.26

	event, signal := d.Evaluate("AAPL", ticks)
	if event == nil || signal == nil {
		t.Fatal("expected a signal")
	}
	if event.Type != models.SignalPriceSpike {
		t.Fatalf("type = %s, want %s", event.Type, models.SignalPriceSpike)
	}
	if event.Severity != 100 {
		t.Fatalf("severity = %d, want 100 (clamped)", event.Severity)
	}
	if event.Direction != models.DirectionPositive {
		t.Fatalf("direction = %s, want positive", event.Direction)
	}
	if signal.StopLoss != 200*0.95 {
		t.Fatalf("stop loss = %v, want %v", signal.StopLoss, 200*0.95)
	}
	if signal.Disclaimer != models.SignalDisclaimer {
		t.Fatalf("missing disclaimer")
	}
}

func TestDetectorSeverityFormulas(t *testing.T) {
	d := NewAnomalyDetector(defaultAnomalyConfig(), scoring.New())

	tests := []struct {
		name         string
		mutate       func([]*models.RawTick)
		wantType     string
		wantSeverity int
	}{
		{
			name:         "price spike below clamp",
			mutate:       func(ts []*models.RawTick) { ts[0].ChangePct5m = -4.0 },
			wantType:     models.SignalPriceSpike,
			wantSeverity: 80,
		},
		{
			name: "volume spike 3x",
			mutate: func(ts []*models.RawTick) {
				ts[0].Volume = 3000
				ts[0].AvgVolume20 = 1000
				ts[0].VolumeSpike = true
			},
			wantType:     models.SignalVolumeSpike,
			wantSeverity: 75,
		},
		{
			name: "volatility range",
			mutate: func(ts []*models.RawTick) {
				ts[0].High = 104
				ts[1].Low = 100
				for _, tk := range ts {
					tk.Price = 100
				}
				ts[0].Price = 100
			},
			wantType:     models.SignalVolatility,
			wantSeverity: 80, // 4% range * 20
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticks := flatTicks(6, 100)
			tt.mutate(ticks)

			event, _ := d.Evaluate("AAPL", ticks)
			if event == nil {
				t.Fatal("expected a signal")
			}
			if event.Type != tt.wantType {
				t.Fatalf("type = %s, want %s", event.Type, tt.wantType)
			}
			if event.Severity != tt.wantSeverity {
				t.Fatalf("severity = %d, want %d", event.Severity, tt.wantSeverity)
			}
		})
	}
}

func TestDetectorRationaleJoinsAllFiring(t *testing.T) {
	d := NewAnomalyDetector(defaultAnomalyConfig(), scoring.New())

	ticks := flatTicks(6, 100)
	ticks[0].ChangePct5m = -4.0
	ticks[0].Volume = 3000
	ticks[0].AvgVolume20 = 1000
	ticks[0].VolumeSpike = true

	event, signal := d.Evaluate("AAPL", ticks)
	if event == nil {
		t.Fatal("expected a signal")
	}
	// price wins on severity (80 vs 75) but both reasons are kept
	if event.Type != models.SignalPriceSpike {
		t.Fatalf("winner = %s, want price_spike", event.Type)
	}
	if !strings.Contains(event.Rationale, "; ") {
		t.Fatalf("rationale should join firing reasons, got %q", event.Rationale)
	}
	if !strings.Contains(event.Rationale, "volume") {
		t.Fatalf("rationale should mention the volume candidate, got %q", event.Rationale)
	}
	if event.Direction != models.DirectionNegative {
		t.Fatalf("direction = %s, want negative", event.Direction)
	}
	if signal.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want 0.8 for two candidates", signal.Confidence)
	}
}

func TestDetectorConfidenceCap(t *testing.T) {
	d := NewAnomalyDetector(defaultAnomalyConfig(), scoring.New())

	ticks := flatTicks(6, 100)
	ticks[0].ChangePct5m = 6.0
	ticks[0].Volume = 5000
	ticks[0].AvgVolume20 = 1000
	ticks[0].VolumeSpike = true
	ticks[0].High = 110
	ticks[0].Low = 98

	_, signal := d.Evaluate("AAPL", ticks)
	if signal == nil {
		t.Fatal("expected a signal")
	}
	if signal.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want cap 0.95", signal.Confidence)
	}
}

func TestDetectorNoCandidateNoSignal(t *testing.T) {
	d := NewAnomalyDetector(defaultAnomalyConfig(), scoring.New())

	event, signal := d.Evaluate("AAPL", flatTicks(10, 100))
	if event != nil || signal != nil {
		t.Fatal("expected no signal on a quiet market")
	}
}
