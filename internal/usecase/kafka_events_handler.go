package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"

	"github.com/google/uuid"
)

// KafkaEventsHandler ingests domain events published by upstream collectors
// (news, social) into the event store. Implements pkg/kafka.MessageHandler.
type KafkaEventsHandler struct {
	topic   string
	store   drepo.EventStore
	metrics drepo.Metrics
}

// NewKafkaEventsHandler creates the handler for the given topic.
func NewKafkaEventsHandler(topic string, store drepo.EventStore, metrics drepo.Metrics) *KafkaEventsHandler {
	return &KafkaEventsHandler{topic: topic, store: store, metrics: metrics}
}

// Topic returns the subscribed topic.
func (h *KafkaEventsHandler) Topic() string { return h.topic }

// Handle validates and stores one inbound event.
func (h *KafkaEventsHandler) Handle(ctx context.Context, data []byte) error {
	var e models.DomainEvent
	if err := json.Unmarshal(data, &e); err != nil {
		h.metrics.RecordError("event_decode")
		return fmt.Errorf("decode event: %w", err)
	}

	e.Domain = models.NormalizeDomain(e.Domain)
	if !models.IsValidDomain(e.Domain) {
		h.metrics.RecordError("event_invalid")
		return fmt.Errorf("invalid domain %q", e.Domain)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Severity < 1 {
		e.Severity = 1
	}
	if e.Severity > 100 {
		e.Severity = 100
	}

	if err := h.store.SaveEvent(ctx, &e); err != nil {
		h.metrics.RecordError("event_save")
		return fmt.Errorf("store event: %w", err)
	}
	return nil
}
