package repository

import (
	"context"
	"fmt"

	"SignalFuse/internal/domain/models"
	pkgkafka "SignalFuse/pkg/kafka"
	"SignalFuse/pkg/queue"
)

// KafkaAlertSink publishes fused events to the alert topic and, when a queue
// is configured, enqueues an alert-dispatch job for the external dispatcher.
type KafkaAlertSink struct {
	producer *pkgkafka.Producer
	topic    string
	queue    queue.QueueService
}

// AlertDispatchJobType is the queue message type consumed by the dispatcher.
const AlertDispatchJobType = "alert.dispatch"

// NewKafkaAlertSink creates the sink. queue may be nil.
func NewKafkaAlertSink(producer *pkgkafka.Producer, topic string, q queue.QueueService) *KafkaAlertSink {
	return &KafkaAlertSink{producer: producer, topic: topic, queue: q}
}

// Publish writes the fused event to Kafka keyed by its match value so alerts
// for one instrument stay ordered, then enqueues a dispatch job.
func (s *KafkaAlertSink) Publish(ctx context.Context, e *models.FusedEvent) error {
	if err := s.producer.Publish(ctx, s.topic, []byte(e.MatchedBy.Value), e); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	if s.queue != nil {
		if err := s.queue.PublishMessage(ctx, AlertDispatchJobType, e); err != nil {
			return fmt.Errorf("enqueue alert dispatch: %w", err)
		}
	}
	return nil
}

// Close closes the underlying producer.
func (s *KafkaAlertSink) Close() error {
	return s.producer.Close()
}

// NopAlertSink discards alerts. Used when Kafka is disabled.
type NopAlertSink struct{}

func (NopAlertSink) Publish(context.Context, *models.FusedEvent) error { return nil }
func (NopAlertSink) Close() error                                      { return nil }
