package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/repository"
)

var fusionNow = time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

func newFusionEngine(t *testing.T, store *repository.MemoryStore) (*FusionEngine, *recordingAlertSink) {
	t.Helper()
	sink := &recordingAlertSink{}
	engine := NewFusionEngine(store, sink, nopMetrics{}, nopAudit{}, testLogger(t),
		WithFusionWindow(10*time.Minute),
		WithFusionClock(func() time.Time { return fusionNow }),
	)
	return engine, sink
}

func seedEvent(t *testing.T, store *repository.MemoryStore, e *models.DomainEvent) {
	t.Helper()
	if e.Timestamp.IsZero() {
		e.Timestamp = fusionNow.Add(-2 * time.Minute)
	}
	if e.Severity == 0 {
		e.Severity = 50
	}
	if err := store.SaveEvent(context.Background(), e); err != nil {
		t.Fatalf("seed event: %v", err)
	}
}

func tickerEvent(id, domain, ticker string) *models.DomainEvent {
	return &models.DomainEvent{
		ID:       id,
		Domain:   domain,
		Type:     "test",
		Entities: []models.Entity{{Type: "ticker", Value: ticker}},
	}
}

func TestFusionEntityMatch(t *testing.T) {
	store := repository.NewMemoryStore()
	engine, sink := newFusionEngine(t, store)

	a := tickerEvent("m1", models.DomainMarket, "NVDA")
	a.Severity = 60
	a.Direction = models.DirectionPositive
	b := tickerEvent("n1", models.DomainNews, "NVDA")
	b.Severity = 40
	b.Direction = models.DirectionNeutral
	seedEvent(t, store, a)
	seedEvent(t, store, b)

	res := engine.Run(context.Background(), "test")
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}
	if res.Processed != 2 || res.Fused != 1 {
		t.Fatalf("processed=%d fused=%d, want 2/1", res.Processed, res.Fused)
	}

	fused := store.FusedEvents()
	if len(fused) != 1 {
		t.Fatalf("stored fused = %d, want 1", len(fused))
	}
	f := fused[0]
	if f.MatchedBy.Type != models.MatchTypeSymbol || f.MatchedBy.Value != "NVDA" {
		t.Fatalf("matchedBy = %+v", f.MatchedBy)
	}
	if len(f.Domains) != 2 || f.Domains[0] != models.DomainMarket || f.Domains[1] != models.DomainNews {
		t.Fatalf("domains = %v", f.Domains)
	}
	if f.Severity != 70 { // max(60,40) + 10*(2-1)
		t.Fatalf("severity = %d, want 70", f.Severity)
	}
	if f.Direction != models.DirectionPositive {
		t.Fatalf("direction = %s, want positive", f.Direction)
	}
	if f.ImpactHint != models.ImpactHighAttention {
		t.Fatalf("impact = %s, want %s", f.ImpactHint, models.ImpactHighAttention)
	}
	if len(sink.published) != 1 {
		t.Fatalf("published alerts = %d, want 1", len(sink.published))
	}
}

func TestFusionSeverityCap(t *testing.T) {
	store := repository.NewMemoryStore()
	engine, _ := newFusionEngine(t, store)

	a := tickerEvent("m1", models.DomainMarket, "TSLA")
	a.Severity = 95
	b := tickerEvent("n1", models.DomainNews, "TSLA")
	b.Severity = 80
	c := tickerEvent("s1", models.DomainSocial, "TSLA")
	c.Severity = 70
	seedEvent(t, store, a)
	seedEvent(t, store, b)
	seedEvent(t, store, c)

	res := engine.Run(context.Background(), "test")
	if res.Fused != 1 {
		t.Fatalf("fused = %d, want 1", res.Fused)
	}
	f := store.FusedEvents()[0]
	if f.Severity != 100 { // 95 + 10*2 = 115 capped
		t.Fatalf("severity = %d, want 100", f.Severity)
	}
	if len(f.SourceIDs) != 3 {
		t.Fatalf("sources = %v", f.SourceIDs)
	}
}

func TestFusionKeywordOverlap(t *testing.T) {
	store := repository.NewMemoryStore()
	engine, _ := newFusionEngine(t, store)

	a := &models.DomainEvent{ID: "s1", Domain: models.DomainSocial, Keywords: []string{"Fed", "rates", "inflation"}}
	b := &models.DomainEvent{ID: "n1", Domain: models.DomainNews, Keywords: []string{"fed", "RATES", "bonds"}}
	seedEvent(t, store, a)
	seedEvent(t, store, b)

	res := engine.Run(context.Background(), "test")
	if res.Fused != 1 {
		t.Fatalf("fused = %d, want 1", res.Fused)
	}
	f := store.FusedEvents()[0]
	if f.MatchedBy.Type != models.MatchTypeKeyword {
		t.Fatalf("matchedBy = %+v", f.MatchedBy)
	}
	if f.MatchedBy.Value != "fed,rates" {
		t.Fatalf("match value = %q", f.MatchedBy.Value)
	}
}

func TestFusionSingleSharedKeywordDoesNotFuse(t *testing.T) {
	store := repository.NewMemoryStore()
	engine, _ := newFusionEngine(t, store)

	seedEvent(t, store, &models.DomainEvent{ID: "s1", Domain: models.DomainSocial, Keywords: []string{"fed", "crypto"}})
	seedEvent(t, store, &models.DomainEvent{ID: "m1", Domain: models.DomainMarket, Keywords: []string{"fed", "equities"}})

	res := engine.Run(context.Background(), "test")
	if res.Fused != 0 {
		t.Fatalf("fused = %d, want 0 with a single shared keyword", res.Fused)
	}
}

func TestFusionSameDomainNeverFuses(t *testing.T) {
	store := repository.NewMemoryStore()
	engine, _ := newFusionEngine(t, store)

	seedEvent(t, store, tickerEvent("n1", models.DomainNews, "AMD"))
	seedEvent(t, store, tickerEvent("n2", models.DomainNews, "AMD"))

	res := engine.Run(context.Background(), "test")
	if res.Fused != 0 {
		t.Fatalf("fused = %d, want 0 for single-domain group", res.Fused)
	}
}

func TestFusionEntityPassTakesPriority(t *testing.T) {
	store := repository.NewMemoryStore()
	engine, _ := newFusionEngine(t, store)

	// a correlates with b by ticker and would also pair with c by keywords
	a := tickerEvent("m1", models.DomainMarket, "NVDA")
	a.Keywords = []string{"gpu", "ai"}
	b := tickerEvent("n1", models.DomainNews, "NVDA")
	c := &models.DomainEvent{ID: "s1", Domain: models.DomainSocial, Keywords: []string{"gpu", "ai"}}
	seedEvent(t, store, a)
	seedEvent(t, store, b)
	seedEvent(t, store, c)

	res := engine.Run(context.Background(), "test")
	if res.Fused != 1 {
		t.Fatalf("fused = %d, want 1", res.Fused)
	}
	f := store.FusedEvents()[0]
	if f.MatchedBy.Type != models.MatchTypeSymbol {
		t.Fatalf("entity match should win, got %+v", f.MatchedBy)
	}

	// no source id may appear in more than one fused event
	seen := make(map[string]bool)
	for _, fe := range store.FusedEvents() {
		for _, id := range fe.SourceIDs {
			if seen[id] {
				t.Fatalf("source %s claimed twice", id)
			}
			seen[id] = true
		}
	}
}

func TestFusionDeterministicOnSameInput(t *testing.T) {
	seed := func(store *repository.MemoryStore) {
		a := tickerEvent("m1", models.DomainMarket, "NVDA")
		a.Severity = 62
		b := tickerEvent("n1", models.DomainNews, "NVDA")
		b.Severity = 44
		seedEvent(t, store, a)
		seedEvent(t, store, b)
		seedEvent(t, store, &models.DomainEvent{ID: "s1", Domain: models.DomainSocial, Keywords: []string{"chips", "exports"}})
		seedEvent(t, store, &models.DomainEvent{ID: "n2", Domain: models.DomainNews, Keywords: []string{"chips", "exports"}})
	}

	storeA := repository.NewMemoryStore()
	seed(storeA)
	engineA, _ := newFusionEngine(t, storeA)
	resA := engineA.Run(context.Background(), "test")

	storeB := repository.NewMemoryStore()
	seed(storeB)
	engineB, _ := newFusionEngine(t, storeB)
	resB := engineB.Run(context.Background(), "test")

	if resA.Fused != 2 || resB.Fused != resA.Fused {
		t.Fatalf("fused counts differ: %d vs %d", resA.Fused, resB.Fused)
	}
	fa, fb := storeA.FusedEvents(), storeB.FusedEvents()
	for i := range fa {
		if fa[i].MatchedBy != fb[i].MatchedBy || fa[i].Severity != fb[i].Severity {
			t.Fatalf("run outputs differ at %d: %+v vs %+v", i, fa[i].MatchedBy, fb[i].MatchedBy)
		}
	}
}

func TestFusionTooFewCandidates(t *testing.T) {
	store := repository.NewMemoryStore()
	engine, _ := newFusionEngine(t, store)

	seedEvent(t, store, tickerEvent("m1", models.DomainMarket, "NVDA"))

	res := engine.Run(context.Background(), "test")
	if !res.Success || res.Processed != 1 || res.Fused != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestFusionWindowExcludesOldEvents(t *testing.T) {
	store := repository.NewMemoryStore()
	engine, _ := newFusionEngine(t, store)

	a := tickerEvent("m1", models.DomainMarket, "NVDA")
	b := tickerEvent("n1", models.DomainNews, "NVDA")
	b.Timestamp = fusionNow.Add(-11 * time.Minute) // outside 10m window
	seedEvent(t, store, a)
	seedEvent(t, store, b)

	res := engine.Run(context.Background(), "test")
	if res.Processed != 1 || res.Fused != 0 {
		t.Fatalf("processed=%d fused=%d, want 1/0", res.Processed, res.Fused)
	}
}

type failingEventStore struct {
	*repository.MemoryStore
}

func (failingEventStore) EventsSince(context.Context, time.Time, []string) ([]*models.DomainEvent, error) {
	return nil, errors.New("store down")
}

func TestFusionFatalReadIsStructuredFailure(t *testing.T) {
	store := failingEventStore{repository.NewMemoryStore()}
	sink := &recordingAlertSink{}
	engine := NewFusionEngine(store, sink, nopMetrics{}, nopAudit{}, testLogger(t))

	res := engine.Run(context.Background(), "test")
	if res.Success {
		t.Fatal("expected success=false")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v", res.Errors)
	}
	if res.Fused != 0 || len(sink.published) != 0 {
		t.Fatal("nothing should be fused or published on fatal read")
	}
}
