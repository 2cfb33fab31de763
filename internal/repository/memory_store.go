package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"SignalFuse/internal/domain/models"
)

// MemoryStore is an in-process EventStore, TickStore and Watchlist. It backs
// the "memory" storage type and is substituted for ClickHouse in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	events  []*models.DomainEvent
	fused   []*models.FusedEvent
	signals []*models.MarketSignal
	ticks   map[string]map[int64]*models.RawTick // symbol -> unix minute -> tick
	watch   []*models.WatchItem
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ticks: make(map[string]map[int64]*models.RawTick)}
}

func (s *MemoryStore) SaveEvent(_ context.Context, e *models.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

func (s *MemoryStore) SaveFused(_ context.Context, e *models.FusedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.fused = append(s.fused, &cp)
	return nil
}

func (s *MemoryStore) EventsSince(_ context.Context, since time.Time, domains []string) ([]*models.DomainEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[string]bool, len(domains))
	for _, d := range domains {
		allowed[d] = true
	}

	var out []*models.DomainEvent
	for _, e := range s.events {
		if !e.Timestamp.Before(since) && allowed[e.Domain] {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) Query(_ context.Context, domain string, from, to time.Time, limit int) ([]*models.DomainEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	var out []*models.DomainEvent
	for _, e := range s.events {
		if domain != "" && e.Domain != domain {
			continue
		}
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpsertTick(_ context.Context, t *models.RawTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	minute := t.Timestamp.Truncate(time.Minute).Unix()
	if s.ticks[t.Symbol] == nil {
		s.ticks[t.Symbol] = make(map[int64]*models.RawTick)
	}
	cp := *t
	s.ticks[t.Symbol][minute] = &cp
	return nil
}

func (s *MemoryStore) History(_ context.Context, symbol string, from time.Time) ([]*models.RawTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.RawTick
	for _, t := range s.ticks[symbol] {
		if !t.Timestamp.Before(from) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) SaveSignal(_ context.Context, sig *models.MarketSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sig
	s.signals = append(s.signals, &cp)
	return nil
}

// SetWatchlist replaces the watch-list entries (test/seed helper).
func (s *MemoryStore) SetWatchlist(items []*models.WatchItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watch = items
}

func (s *MemoryStore) Enabled(_ context.Context) ([]*models.WatchItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.WatchItem
	for _, it := range s.watch {
		if it.Enabled {
			out = append(out, it)
		}
	}
	return out, nil
}

// FusedEvents returns all stored fused events (test helper).
func (s *MemoryStore) FusedEvents() []*models.FusedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.FusedEvent(nil), s.fused...)
}

// Signals returns all stored market signals (test helper).
func (s *MemoryStore) Signals() []*models.MarketSignal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.MarketSignal(nil), s.signals...)
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
