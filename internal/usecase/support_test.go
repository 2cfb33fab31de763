package usecase

import (
	"context"
	"sync"
	"testing"

	"SignalFuse/internal/domain/models"
	"SignalFuse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type nopMetrics struct{}

func (nopMetrics) RecordQuoteProcessed(string)   {}
func (nopMetrics) RecordSignal(string)           {}
func (nopMetrics) RecordFusionRun()              {}
func (nopMetrics) RecordFusedEvent(string)       {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

type nopAudit struct{}

func (nopAudit) RecordRun(string, string, int, int, int) {}

// recordingAlertSink captures published fused events.
type recordingAlertSink struct {
	mu        sync.Mutex
	published []*models.FusedEvent
}

func (s *recordingAlertSink) Publish(_ context.Context, e *models.FusedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, e)
	return nil
}

func (s *recordingAlertSink) Close() error { return nil }
