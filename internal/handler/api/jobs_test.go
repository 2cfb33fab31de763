package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/repository"
	"SignalFuse/internal/service/scoring"
	"SignalFuse/internal/usecase"
	"SignalFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type staticQuotes struct{}

func (staticQuotes) Fetch(_ context.Context, symbol string) (*models.Quote, error) {
	return &models.Quote{Symbol: symbol, Price: 100, Volume: 1000, Timestamp: time.Now()}, nil
}

func (staticQuotes) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordQuoteProcessed(string)   {}
func (nopMetrics) RecordSignal(string)           {}
func (nopMetrics) RecordFusionRun()              {}
func (nopMetrics) RecordFusedEvent(string)       {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

type nopAudit struct{}

func (nopAudit) RecordRun(string, string, int, int, int) {}

type nopSink struct{}

func (nopSink) Publish(context.Context, *models.FusedEvent) error { return nil }
func (nopSink) Close() error                                      { return nil }

func newTestServer(t *testing.T, store *repository.MemoryStore) *echo.Echo {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	detector := usecase.NewAnomalyDetector(models.AnomalyConfig{
		PriceSpike5mPct:       3.0,
		VolumeSpikeMultiplier: 2.0,
		VolatilityRangePct:    2.0,
		MinHistory:            5,
	}, scoring.New())
	streamer := usecase.NewMarketStreamer(store, staticQuotes{}, store, store, detector, nopMetrics{}, nopAudit{}, l)
	fusion := usecase.NewFusionEngine(store, nopSink{}, nopMetrics{}, nopAudit{}, l)

	e := echo.New()
	NewJobsHandler(streamer, fusion, store, l).RegisterRoutes(e)
	return e
}

func TestRunStreamerEndpoint(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SetWatchlist([]*models.WatchItem{{Tenant: "t1", Symbol: "AAPL", Enabled: true}})
	e := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodPost, "/market-streamer/run", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result models.StreamerResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("processed = %d, want 1", result.Processed)
	}
}

func TestRunFusionEndpoint(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Now()
	for _, e := range []*models.DomainEvent{
		{ID: "m1", Domain: models.DomainMarket, Severity: 60, Timestamp: now,
			Entities: []models.Entity{{Type: "ticker", Value: "NVDA"}}},
		{ID: "n1", Domain: models.DomainNews, Severity: 40, Timestamp: now,
			Entities: []models.Entity{{Type: "ticker", Value: "NVDA"}}},
	} {
		if err := store.SaveEvent(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	e := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodPost, "/fusion-engine/run", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result models.FusionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.Fused != 1 {
		t.Fatalf("result = %+v, want success with 1 fused", result)
	}
}

func TestQueryEventsRejectsBadLimit(t *testing.T) {
	e := newTestServer(t, repository.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=5000", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// response envelope carries the 400 status
	var resp struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("envelope status = %d, want 400", resp.Status)
	}
}

func TestQueryEventsFiltersByDomain(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Now()
	for _, e := range []*models.DomainEvent{
		{ID: "m1", Domain: models.DomainMarket, Severity: 10, Timestamp: now},
		{ID: "n1", Domain: models.DomainNews, Severity: 10, Timestamp: now},
	} {
		if err := store.SaveEvent(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	e := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/events?domain=news", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Rows  []*models.DomainEvent `json:"rows"`
			Total int64                 `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 1 || len(resp.Data.Rows) != 1 || resp.Data.Rows[0].Domain != models.DomainNews {
		t.Fatalf("unexpected rows: %+v", resp.Data)
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestServer(t, repository.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
