package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/repository"
	"SignalFuse/internal/service/scoring"
)

var streamerNow = time.Date(2025, 6, 2, 14, 30, 12, 0, time.UTC)

// fakeQuotes serves canned quotes and counts fetches per symbol.
type fakeQuotes struct {
	mu      sync.Mutex
	quotes  map[string]*models.Quote
	fail    map[string]bool
	fetches map[string]int
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{
		quotes:  make(map[string]*models.Quote),
		fail:    make(map[string]bool),
		fetches: make(map[string]int),
	}
}

func (f *fakeQuotes) set(symbol string, price, volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[symbol] = &models.Quote{
		Symbol:    symbol,
		Price:     price,
		Open:      price,
		High:      price,
		Low:       price,
		Volume:    volume,
		Timestamp: streamerNow,
	}
}

func (f *fakeQuotes) Fetch(_ context.Context, symbol string) (*models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[symbol]++
	if f.fail[symbol] {
		return nil, errors.New("provider unavailable")
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuotes) Close() error { return nil }

func (f *fakeQuotes) fetchCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[symbol]
}

func newTestStreamer(t *testing.T, store *repository.MemoryStore, quotes *fakeQuotes) *MarketStreamer {
	t.Helper()
	detector := NewAnomalyDetector(defaultAnomalyConfig(), scoring.New())
	return NewMarketStreamer(store, quotes, store, store, detector, nopMetrics{}, nopAudit{}, testLogger(t),
		WithMaxRPS(1000),
		WithClock(func() time.Time { return streamerNow }),
	)
}

// seedFlatHistory stores quiet per-minute ticks ending one minute before the
// current cycle.
func seedFlatHistory(t *testing.T, store *repository.MemoryStore, symbol string, n int, price float64) {
	t.Helper()
	minute := streamerNow.Truncate(time.Minute)
	for i := 1; i <= n; i++ {
		err := store.UpsertTick(context.Background(), &models.RawTick{
			Symbol:      symbol,
			Timestamp:   minute.Add(-time.Duration(i) * time.Minute),
			Price:       price,
			High:        price,
			Low:         price,
			Close:       price,
			Volume:      1000,
			AvgVolume20: 1000,
		})
		if err != nil {
			t.Fatalf("seed tick: %v", err)
		}
	}
}

func TestStreamerEmitsPriceSpikeSignal(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SetWatchlist([]*models.WatchItem{{Tenant: "t1", Symbol: "AAPL", Enabled: true}})
	quotes := newFakeQuotes()
	quotes.set("AAPL", 200, 1000)
	seedFlatHistory(t, store, "AAPL", 6, 190) // 190 -> 200 is a 5.26% 5m move

	s := newTestStreamer(t, store, quotes)
	res, err := s.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Processed != 1 || res.Signals != 1 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v, want 1 processed / 1 signal", res)
	}

	events, err := store.Query(context.Background(), models.DomainMarket, streamerNow.Add(-time.Hour), streamerNow.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("stored events = %d, want 1", len(events))
	}
	if events[0].Type != models.SignalPriceSpike {
		t.Fatalf("event type = %s", events[0].Type)
	}

	signals := store.Signals()
	if len(signals) != 1 {
		t.Fatalf("stored signals = %d, want 1", len(signals))
	}
	if signals[0].StopLoss != 200*0.95 {
		t.Fatalf("stop loss = %v", signals[0].StopLoss)
	}
}

func TestStreamerQuietMarketNoSignal(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SetWatchlist([]*models.WatchItem{{Tenant: "t1", Symbol: "AAPL", Enabled: true}})
	quotes := newFakeQuotes()
	quotes.set("AAPL", 190, 1000)
	seedFlatHistory(t, store, "AAPL", 6, 190)

	s := newTestStreamer(t, store, quotes)
	res, err := s.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Processed != 1 || res.Signals != 0 {
		t.Fatalf("result = %+v, want 1 processed / 0 signals", res)
	}
}

func TestStreamerColdStartSuppressed(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SetWatchlist([]*models.WatchItem{{Tenant: "t1", Symbol: "AAPL", Enabled: true}})
	quotes := newFakeQuotes()
	quotes.set("AAPL", 200, 1000)
	// only two prior ticks: not enough history to evaluate
	seedFlatHistory(t, store, "AAPL", 2, 190)

	s := newTestStreamer(t, store, quotes)
	res, err := s.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Signals != 0 {
		t.Fatalf("signals = %d, want 0 during warm-up", res.Signals)
	}
}

func TestStreamerPerSymbolFailureContinues(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SetWatchlist([]*models.WatchItem{
		{Tenant: "t1", Symbol: "AAPL", Enabled: true},
		{Tenant: "t1", Symbol: "BROKEN", Enabled: true},
	})
	quotes := newFakeQuotes()
	quotes.set("AAPL", 190, 1000)
	quotes.fail["BROKEN"] = true
	seedFlatHistory(t, store, "AAPL", 6, 190)

	s := newTestStreamer(t, store, quotes)
	res, err := s.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Processed != 1 {
		t.Fatalf("processed = %d, want 1", res.Processed)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want one entry for BROKEN", res.Errors)
	}
}

func TestStreamerDedupesAcrossTenants(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SetWatchlist([]*models.WatchItem{
		{Tenant: "t1", Symbol: "AAPL", Enabled: true},
		{Tenant: "t2", Symbol: "AAPL", Enabled: true},
	})
	quotes := newFakeQuotes()
	quotes.set("AAPL", 190, 1000)

	s := newTestStreamer(t, store, quotes)
	res, err := s.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Processed != 1 {
		t.Fatalf("processed = %d, want 1 after tenant dedupe", res.Processed)
	}
	if got := quotes.fetchCount("AAPL"); got != 1 {
		t.Fatalf("fetches = %d, want 1", got)
	}
}

func TestStreamerSameMinuteRerunReplacesTick(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SetWatchlist([]*models.WatchItem{{Tenant: "t1", Symbol: "AAPL", Enabled: true}})
	quotes := newFakeQuotes()
	quotes.set("AAPL", 190, 1000)

	s := newTestStreamer(t, store, quotes)
	if _, err := s.Run(context.Background(), "test"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	quotes.set("AAPL", 191, 1200)
	if _, err := s.Run(context.Background(), "test"); err != nil {
		t.Fatalf("second run: %v", err)
	}

	history, err := store.History(context.Background(), "AAPL", streamerNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("ticks stored = %d, want the minute upserted once", len(history))
	}
	if history[0].Price != 191 {
		t.Fatalf("tick price = %v, want the re-run value 191", history[0].Price)
	}
}

type failingWatchlist struct{}

func (failingWatchlist) Enabled(context.Context) ([]*models.WatchItem, error) {
	return nil, errors.New("watchlist down")
}

func TestStreamerWatchlistFailureIsFatal(t *testing.T) {
	store := repository.NewMemoryStore()
	quotes := newFakeQuotes()
	detector := NewAnomalyDetector(defaultAnomalyConfig(), scoring.New())
	s := NewMarketStreamer(failingWatchlist{}, quotes, store, store, detector, nopMetrics{}, nopAudit{}, testLogger(t),
		WithClock(func() time.Time { return streamerNow }),
	)

	if _, err := s.Run(context.Background(), "test"); err == nil {
		t.Fatal("expected an error when the watch-list read fails")
	}
}
