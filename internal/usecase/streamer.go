package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"
	"SignalFuse/internal/service/ratelimit"
	"SignalFuse/pkg/logger"
	"SignalFuse/pkg/util"
)

// MarketStreamer runs one collector+detector cycle: read the watch-list,
// fetch one quote per unique instrument, store the derived tick, and evaluate
// the anomaly detector over the refreshed history.
type MarketStreamer struct {
	watchlist drepo.Watchlist
	quotes    drepo.QuoteProvider
	ticks     drepo.TickStore
	events    drepo.EventStore
	detector  *AnomalyDetector
	metrics   drepo.Metrics
	audit     drepo.AuditLog
	log       *logger.Logger
	limiter   *ratelimit.Limiter

	concurrency      int
	maxRPS           float64
	historyWindow    time.Duration
	volumeMultiplier float64

	now func() time.Time
}

// StreamerOption configures MarketStreamer.
type StreamerOption func(*MarketStreamer)

// WithConcurrency bounds parallel per-instrument fetches.
func WithConcurrency(n int) StreamerOption {
	return func(s *MarketStreamer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxRPS caps quote-provider request rate.
func WithMaxRPS(rps float64) StreamerOption {
	return func(s *MarketStreamer) {
		if rps > 0 {
			s.maxRPS = rps
		}
	}
}

// WithHistoryWindow sets the detector lookback.
func WithHistoryWindow(d time.Duration) StreamerOption {
	return func(s *MarketStreamer) {
		if d > 0 {
			s.historyWindow = d
		}
	}
}

// WithVolumeSpikeMultiplier sets the volume-spike pre-flag threshold.
func WithVolumeSpikeMultiplier(m float64) StreamerOption {
	return func(s *MarketStreamer) {
		if m > 0 {
			s.volumeMultiplier = m
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) StreamerOption {
	return func(s *MarketStreamer) { s.now = now }
}

// NewMarketStreamer creates the streamer use case.
func NewMarketStreamer(
	watchlist drepo.Watchlist,
	quotes drepo.QuoteProvider,
	ticks drepo.TickStore,
	events drepo.EventStore,
	detector *AnomalyDetector,
	metrics drepo.Metrics,
	audit drepo.AuditLog,
	log *logger.Logger,
	opts ...StreamerOption,
) *MarketStreamer {
	s := &MarketStreamer{
		watchlist:        watchlist,
		quotes:           quotes,
		ticks:            ticks,
		events:           events,
		detector:         detector,
		metrics:          metrics,
		audit:            audit,
		log:              log,
		limiter:          ratelimit.New(),
		concurrency:      8,
		maxRPS:           20,
		historyWindow:    60 * time.Minute,
		volumeMultiplier: 2.0,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one cycle. A watch-list read failure is cycle-fatal and
// returned as an error; per-instrument failures are collected in the result.
func (s *MarketStreamer) Run(ctx context.Context, trigger string) (*models.StreamerResult, error) {
	start := s.now()

	items, err := s.watchlist.Enabled(ctx)
	if err != nil {
		s.metrics.RecordError("watchlist_read")
		return nil, fmt.Errorf("read watchlist: %w", err)
	}

	symbols := dedupeSymbols(items)
	result := &models.StreamerResult{Errors: []string{}}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)

	for _, symbol := range symbols {
		symbol := symbol
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			emitted, err := s.processSymbol(ctx, symbol)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", symbol, err))
				return
			}
			result.Processed++
			if emitted {
				result.Signals++
			}
		}()
	}
	wg.Wait()

	s.metrics.RecordLatency("market_streamer", s.now().Sub(start).Seconds())
	if s.audit != nil {
		s.audit.RecordRun("market-streamer", trigger, result.Processed, result.Signals, len(result.Errors))
	}
	s.log.Info("streamer cycle complete",
		logger.Int("symbols", len(symbols)),
		logger.Int("processed", result.Processed),
		logger.Int("signals", result.Signals),
		logger.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *MarketStreamer) processSymbol(ctx context.Context, symbol string) (bool, error) {
	if err := s.limiter.Wait(ctx, "quotes", s.maxRPS, s.maxRPS); err != nil {
		return false, fmt.Errorf("rate limit wait: %w", err)
	}

	quote, err := s.quotes.Fetch(ctx, symbol)
	if err != nil {
		s.metrics.RecordError("quote_fetch")
		s.log.Warn("quote fetch failed", logger.String("symbol", symbol), logger.Error(err))
		return false, fmt.Errorf("fetch quote: %w", err)
	}

	ts := quote.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	minute := util.FloorMinute(ts)

	history, err := s.ticks.History(ctx, symbol, minute.Add(-s.historyWindow))
	if err != nil {
		s.metrics.RecordError("tick_history")
		return false, fmt.Errorf("read history: %w", err)
	}
	// a re-run inside the same minute replaces that minute's tick
	history = dropMinute(history, minute)

	tick := s.buildTick(symbol, quote, minute, history)
	if err := s.ticks.UpsertTick(ctx, tick); err != nil {
		s.metrics.RecordError("tick_upsert")
		return false, fmt.Errorf("store tick: %w", err)
	}
	s.metrics.RecordQuoteProcessed(symbol)

	withLatest := append([]*models.RawTick{tick}, history...)
	event, signal := s.detector.Evaluate(symbol, withLatest)
	if event == nil {
		return false, nil
	}

	if err := s.events.SaveEvent(ctx, event); err != nil {
		s.metrics.RecordError("event_save")
		return false, fmt.Errorf("store event: %w", err)
	}
	if err := s.ticks.SaveSignal(ctx, signal); err != nil {
		s.metrics.RecordError("signal_save")
		return false, fmt.Errorf("store signal: %w", err)
	}
	s.metrics.RecordSignal(signal.Type)
	return true, nil
}

// buildTick derives the per-minute tick from the quote and prior history
// (most recent first).
func (s *MarketStreamer) buildTick(symbol string, q *models.Quote, minute time.Time, history []*models.RawTick) *models.RawTick {
	tick := &models.RawTick{
		Symbol:    symbol,
		Timestamp: minute,
		Price:     q.Price,
		Open:      q.Open,
		High:      q.High,
		Low:       q.Low,
		Close:     q.Price,
		Volume:    q.Volume,
	}

	tick.ChangePct1m = changeSince(history, minute, time.Minute, q.Price)
	tick.ChangePct5m = changeSince(history, minute, 5*time.Minute, q.Price)
	tick.ChangePct1h = changeSince(history, minute, time.Hour, q.Price)

	n := 20
	if len(history) < n {
		n = len(history)
	}
	if n > 0 {
		var sum float64
		for _, t := range history[:n] {
			sum += t.Volume
		}
		tick.AvgVolume20 = sum / float64(n)
		tick.VolumeSpike = tick.AvgVolume20 > 0 && q.Volume > s.volumeMultiplier*tick.AvgVolume20
	}
	return tick
}

// changeSince returns the percent change of price against the most recent
// tick at or before ts-window. Zero when no such tick exists.
func changeSince(history []*models.RawTick, ts time.Time, window time.Duration, price float64) float64 {
	boundary := ts.Add(-window)
	for _, t := range history {
		if !t.Timestamp.After(boundary) {
			if t.Price == 0 {
				return 0
			}
			return (price - t.Price) / t.Price * 100
		}
	}
	return 0
}

// dedupeSymbols flattens tenant watch entries to unique symbols, preserving
// first-seen order.
func dedupeSymbols(items []*models.WatchItem) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if it.Symbol == "" || seen[it.Symbol] {
			continue
		}
		seen[it.Symbol] = true
		out = append(out, it.Symbol)
	}
	return out
}

func dropMinute(history []*models.RawTick, minute time.Time) []*models.RawTick {
	out := history[:0]
	for _, t := range history {
		if !t.Timestamp.Equal(minute) {
			out = append(out, t)
		}
	}
	return out
}
