package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/repository"
)

func TestEventsHandlerStoresValidEvent(t *testing.T) {
	store := repository.NewMemoryStore()
	h := NewKafkaEventsHandler("events", store, nopMetrics{})

	payload, _ := json.Marshal(&models.DomainEvent{
		ID:        "n1",
		Domain:    "News", // normalized to lower case
		Type:      "headline",
		Severity:  42,
		Keywords:  []string{"fed", "rates"},
		Timestamp: time.Now(),
	})
	if err := h.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}

	events, err := store.EventsSince(context.Background(), time.Time{}, []string{models.DomainNews})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(events) != 1 || events[0].Domain != models.DomainNews {
		t.Fatalf("stored = %+v", events)
	}
}

func TestEventsHandlerRejectsUnknownDomain(t *testing.T) {
	store := repository.NewMemoryStore()
	h := NewKafkaEventsHandler("events", store, nopMetrics{})

	payload, _ := json.Marshal(&models.DomainEvent{ID: "x1", Domain: "weather"})
	if err := h.Handle(context.Background(), payload); err == nil {
		t.Fatal("expected an error for an unknown domain")
	}
}

func TestEventsHandlerFillsDefaultsAndClamps(t *testing.T) {
	store := repository.NewMemoryStore()
	h := NewKafkaEventsHandler("events", store, nopMetrics{})

	payload, _ := json.Marshal(&models.DomainEvent{Domain: models.DomainSocial, Severity: 250})
	if err := h.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}

	events, err := store.EventsSince(context.Background(), time.Time{}, []string{models.DomainSocial})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("stored = %d events", len(events))
	}
	e := events[0]
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("defaults not applied: %+v", e)
	}
	if e.Severity != 100 {
		t.Fatalf("severity = %d, want clamped 100", e.Severity)
	}
}

func TestEventsHandlerRejectsBadPayload(t *testing.T) {
	h := NewKafkaEventsHandler("events", repository.NewMemoryStore(), nopMetrics{})
	if err := h.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("expected a decode error")
	}
}
