package quotes

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"SignalFuse/internal/domain/models"
)

// Synthetic is the reference QuoteProvider. It walks each symbol's price
// randomly from a seed derived from the symbol so runs are plausible without
// any external market-data dependency.
type Synthetic struct {
	mu   sync.Mutex
	last map[string]*models.Quote
	rng  *rand.Rand
}

// NewSynthetic creates the synthetic provider.
func NewSynthetic() *Synthetic {
	return &Synthetic{
		last: make(map[string]*models.Quote),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch returns the next step of the symbol's random walk.
func (s *Synthetic) Fetch(_ context.Context, symbol string) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.last[symbol]
	if !ok {
		prev = &models.Quote{
			Symbol: symbol,
			Price:  basePrice(symbol),
			Volume: 10000,
		}
	}

	// step within +-1%, occasional larger jump
	step := (s.rng.Float64()*2 - 1) / 100
	if s.rng.Float64() < 0.02 {
		step *= 5
	}
	price := prev.Price * (1 + step)
	volume := prev.Volume * (0.7 + s.rng.Float64()*0.6)

	q := &models.Quote{
		Symbol:    symbol,
		Price:     price,
		Open:      prev.Price,
		High:      maxf(price, prev.Price),
		Low:       minf(price, prev.Price),
		PrevClose: prev.Price,
		Volume:    volume,
		Timestamp: time.Now(),
	}
	s.last[symbol] = q
	return q, nil
}

func (s *Synthetic) Close() error { return nil }

// basePrice derives a stable starting price in [20, 520) from the symbol name.
func basePrice(symbol string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return 20 + float64(h.Sum32()%500)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
