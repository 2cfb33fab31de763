package repository

import (
	"context"
	"fmt"
	"strings"

	"SignalFuse/internal/domain/models"
	"SignalFuse/pkg/logger"
	"SignalFuse/pkg/queue"
)

// AlertDispatchJob delivers fused-event alerts enqueued by the alert sink.
// Delivery here is the operator log channel; webhook and chat targets hang off
// the same job.
type AlertDispatchJob struct {
	log *logger.Logger
}

// NewAlertDispatchJob creates the dispatch job.
func NewAlertDispatchJob(log *logger.Logger) *AlertDispatchJob {
	return &AlertDispatchJob{log: log}
}

func (j *AlertDispatchJob) Name() string { return "alert-dispatcher" }

func (j *AlertDispatchJob) Type() string { return AlertDispatchJobType }

// Handle formats and emits one alert.
func (j *AlertDispatchJob) Handle(_ context.Context, payload interface{}) error {
	e, err := queue.ParsePayload[models.FusedEvent](payload)
	if err != nil {
		return fmt.Errorf("alert payload: %w", err)
	}

	j.log.Info("ALERT "+e.Title,
		logger.String("id", e.ID),
		logger.String("match", e.MatchedBy.Value),
		logger.String("match_type", e.MatchedBy.Type),
		logger.Int("severity", e.Severity),
		logger.String("direction", e.Direction),
		logger.String("impact", e.ImpactHint),
		logger.String("domains", strings.Join(e.Domains, ",")),
	)
	return nil
}
