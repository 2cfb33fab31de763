package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SignalFuse/internal/domain/models"
	"SignalFuse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream is a QuoteProvider backed by a trade WebSocket feed. It keeps a
// last-quote snapshot per symbol; Fetch serves from that snapshot.
type Stream struct {
	apiKey       string
	websocketURL string
	symbols      []string
	pingInterval time.Duration
	log          *logger.Logger

	mu   sync.RWMutex
	last map[string]*models.Quote

	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewStream creates the streaming provider. Start must be called before Fetch.
func NewStream(apiKey, websocketURL string, symbols []string, pingInterval time.Duration, log *logger.Logger) *Stream {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Stream{
		apiKey:       apiKey,
		websocketURL: websocketURL,
		symbols:      symbols,
		pingInterval: pingInterval,
		log:          log,
		last:         make(map[string]*models.Quote),
	}
}

// Start connects, subscribes to the configured symbols, and begins updating
// the snapshot in the background.
func (s *Stream) Start(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.websocketURL, s.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("quote stream connect: %w", err)
	}
	s.conn = conn

	for _, sym := range s.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": sym}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.pingLoop(runCtx)
	go s.readLoop(runCtx)

	s.log.Info("quote stream started", logger.Strings("symbols", s.symbols))
	return nil
}

type wsTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsFrame struct {
	Type string    `json:"type"`
	Data []wsTrade `json:"data"`
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.conn != nil {
				_ = s.conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (s *Stream) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, b, err := s.conn.ReadMessage()
			if err != nil {
				s.log.Warn("quote stream read failed", logger.Error(err))
				return
			}
			var frame wsFrame
			if err := json.Unmarshal(b, &frame); err != nil || frame.Type != "trade" {
				continue
			}
			for _, t := range frame.Data {
				s.apply(t)
			}
		}
	}
}

func (s *Stream) apply(t wsTrade) {
	ts := time.Unix(t.T/1000, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.last[t.S]
	q := &models.Quote{
		Symbol:    t.S,
		Price:     t.P,
		Volume:    t.V,
		Timestamp: ts,
	}
	if prev != nil {
		q.Open = prev.Price
		q.PrevClose = prev.Price
		q.High = maxf(t.P, prev.High)
		q.Low = minf(t.P, prev.Low)
		q.Volume += prev.Volume
		// reset the running OHLC window each minute
		if !prev.Timestamp.Truncate(time.Minute).Equal(ts.Truncate(time.Minute)) {
			q.High = t.P
			q.Low = t.P
			q.Volume = t.V
		}
	} else {
		q.Open = t.P
		q.High = t.P
		q.Low = t.P
		q.PrevClose = t.P
	}
	s.last[t.S] = q
}

// Fetch returns the latest observed quote for the symbol.
func (s *Stream) Fetch(_ context.Context, symbol string) (*models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.last[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote observed yet for %s", symbol)
	}
	cp := *q
	return &cp, nil
}

// Close stops the background loops and closes the connection.
func (s *Stream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
