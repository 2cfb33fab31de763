package repository

import (
	"context"
	"time"

	"SignalFuse/internal/domain/models"
)

// EventStore persists and queries domain and fused events.
type EventStore interface {
	SaveEvent(ctx context.Context, e *models.DomainEvent) error
	SaveFused(ctx context.Context, e *models.FusedEvent) error
	// EventsSince returns events from the given domains with timestamp >= since,
	// oldest first.
	EventsSince(ctx context.Context, since time.Time, domains []string) ([]*models.DomainEvent, error)
	Query(ctx context.Context, domain string, from, to time.Time, limit int) ([]*models.DomainEvent, error)
	Health(ctx context.Context) error
	Close() error
}

// TickStore persists per-minute ticks and market signals.
type TickStore interface {
	// UpsertTick writes a tick keyed by symbol + minute; repeated writes for
	// the same minute overwrite.
	UpsertTick(ctx context.Context, t *models.RawTick) error
	// History returns ticks for symbol with timestamp >= from, most recent first.
	History(ctx context.Context, symbol string, from time.Time) ([]*models.RawTick, error)
	SaveSignal(ctx context.Context, s *models.MarketSignal) error
}

// Watchlist lists currently enabled watch targets across tenants.
type Watchlist interface {
	Enabled(ctx context.Context) ([]*models.WatchItem, error)
}

// QuoteProvider fetches the current observation for one instrument.
type QuoteProvider interface {
	Fetch(ctx context.Context, symbol string) (*models.Quote, error)
	Close() error
}

// AlertSink is the write point for outgoing fused-event alerts.
type AlertSink interface {
	Publish(ctx context.Context, e *models.FusedEvent) error
	Close() error
}

// AuditLog records one entry per job cycle.
type AuditLog interface {
	RecordRun(job, trigger string, processed, emitted, errors int)
}

// Metrics records operational counters for the pipeline.
type Metrics interface {
	RecordQuoteProcessed(symbol string)
	RecordSignal(signalType string)
	RecordFusionRun()
	RecordFusedEvent(matchType string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
