package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SignalFuse/internal/domain/models"
	"SignalFuse/pkg/logger"
)

// Schema statements for the pipeline tables. Executed at startup, idempotent.
// Ticks use ReplacingMergeTree keyed by (symbol, minute) so re-writing the
// same minute overwrites instead of duplicating.
func SchemaStatements(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ticks (
			symbol String,
			minute DateTime,
			price Float64,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			change_1m Float64,
			change_5m Float64,
			change_1h Float64,
			volume_spike UInt8,
			avg_volume_20 Float64
		) ENGINE=ReplacingMergeTree ORDER BY (symbol, minute)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.events (
			id String,
			tenant String,
			domain String,
			type String,
			title String,
			severity Int32,
			direction String,
			sentiment String,
			keywords String,
			entities String,
			rationale String,
			ts DateTime
		) ENGINE=MergeTree ORDER BY (domain, ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.fused_events (
			id String,
			tenant String,
			type String,
			title String,
			severity Int32,
			direction String,
			sentiment String,
			keywords String,
			entities String,
			match_type String,
			match_value String,
			domains String,
			source_ids String,
			impact_hint String,
			ts DateTime
		) ENGINE=MergeTree ORDER BY ts`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signals (
			id String,
			symbol String,
			type String,
			severity Int32,
			confidence Float64,
			direction String,
			rationale String,
			price Float64,
			stop_loss Float64,
			max_position_pct Float64,
			disclaimer String,
			ts DateTime
		) ENGINE=MergeTree ORDER BY (symbol, ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.watchlist (
			tenant String,
			symbol String,
			enabled UInt8,
			updated_at DateTime
		) ENGINE=ReplacingMergeTree(updated_at) ORDER BY (tenant, symbol)`, database),
	}
}

// ClickHouseStore implements EventStore and TickStore over ClickHouse.
type ClickHouseStore struct {
	db       *sql.DB
	database string
	log      *logger.Logger
}

// NewClickHouseStore creates a store bound to the given database.
func NewClickHouseStore(db *sql.DB, database string) *ClickHouseStore {
	return &ClickHouseStore{db: db, database: database}
}

// SetLogger attaches an optional logger.
func (s *ClickHouseStore) SetLogger(l *logger.Logger) { s.log = l }

func (s *ClickHouseStore) table(name string) string {
	return s.database + "." + name
}

// SaveEvent persists one domain event.
func (s *ClickHouseStore) SaveEvent(ctx context.Context, e *models.DomainEvent) error {
	keywords, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	entities, err := json.Marshal(e.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s
		(id, tenant, domain, type, title, severity, direction, sentiment, keywords, entities, rationale, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("events"))
	if _, err := s.db.ExecContext(ctx, q,
		e.ID, e.Tenant, e.Domain, e.Type, e.Title, int32(e.Severity), e.Direction,
		e.Sentiment, string(keywords), string(entities), e.Rationale, e.Timestamp,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// SaveFused persists one fused event with its match metadata.
func (s *ClickHouseStore) SaveFused(ctx context.Context, e *models.FusedEvent) error {
	keywords, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	entities, err := json.Marshal(e.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	domains, err := json.Marshal(e.Domains)
	if err != nil {
		return fmt.Errorf("marshal domains: %w", err)
	}
	sourceIDs, err := json.Marshal(e.SourceIDs)
	if err != nil {
		return fmt.Errorf("marshal source ids: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s
		(id, tenant, type, title, severity, direction, sentiment, keywords, entities,
		 match_type, match_value, domains, source_ids, impact_hint, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("fused_events"))
	if _, err := s.db.ExecContext(ctx, q,
		e.ID, e.Tenant, e.Type, e.Title, int32(e.Severity), e.Direction, e.Sentiment,
		string(keywords), string(entities),
		e.MatchedBy.Type, e.MatchedBy.Value, string(domains), string(sourceIDs),
		e.ImpactHint, e.Timestamp,
	); err != nil {
		return fmt.Errorf("insert fused event: %w", err)
	}
	return nil
}

// EventsSince returns events from the given domains with ts >= since, oldest first.
func (s *ClickHouseStore) EventsSince(ctx context.Context, since time.Time, domains []string) ([]*models.DomainEvent, error) {
	if len(domains) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(domains)), ",")
	q := fmt.Sprintf(`SELECT id, tenant, domain, type, title, severity, direction, sentiment,
		keywords, entities, rationale, ts
		FROM %s WHERE ts >= ? AND domain IN (%s) ORDER BY ts ASC`, s.table("events"), placeholders)

	args := make([]interface{}, 0, len(domains)+1)
	args = append(args, since)
	for _, d := range domains {
		args = append(args, d)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// Query returns events filtered by domain and time range, newest first.
func (s *ClickHouseStore) Query(ctx context.Context, domain string, from, to time.Time, limit int) ([]*models.DomainEvent, error) {
	var (
		conds []string
		args  []interface{}
	)
	if domain != "" {
		conds = append(conds, "domain = ?")
		args = append(args, domain)
	}
	conds = append(conds, "ts >= ?", "ts <= ?")
	args = append(args, from, to)

	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT id, tenant, domain, type, title, severity, direction, sentiment,
		keywords, entities, rationale, ts
		FROM %s WHERE %s ORDER BY ts DESC LIMIT %d`,
		s.table("events"), strings.Join(conds, " AND "), limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *ClickHouseStore) scanEvents(rows *sql.Rows) ([]*models.DomainEvent, error) {
	var out []*models.DomainEvent
	for rows.Next() {
		var (
			e                  models.DomainEvent
			severity           int32
			keywords, entities string
		)
		if err := rows.Scan(&e.ID, &e.Tenant, &e.Domain, &e.Type, &e.Title, &severity,
			&e.Direction, &e.Sentiment, &keywords, &entities, &e.Rationale, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Severity = int(severity)
		if keywords != "" {
			if err := json.Unmarshal([]byte(keywords), &e.Keywords); err != nil && s.log != nil {
				s.log.Warn("bad keywords payload", logger.String("id", e.ID), logger.Error(err))
			}
		}
		if entities != "" {
			if err := json.Unmarshal([]byte(entities), &e.Entities); err != nil && s.log != nil {
				s.log.Warn("bad entities payload", logger.String("id", e.ID), logger.Error(err))
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// UpsertTick writes one per-minute tick. The ReplacingMergeTree key makes
// repeated writes for the same symbol+minute collapse to the latest row.
func (s *ClickHouseStore) UpsertTick(ctx context.Context, t *models.RawTick) error {
	spike := uint8(0)
	if t.VolumeSpike {
		spike = 1
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(symbol, minute, price, open, high, low, close, volume,
		 change_1m, change_5m, change_1h, volume_spike, avg_volume_20)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("ticks"))
	if _, err := s.db.ExecContext(ctx, q,
		t.Symbol, t.Timestamp, t.Price, t.Open, t.High, t.Low, t.Close, t.Volume,
		t.ChangePct1m, t.ChangePct5m, t.ChangePct1h, spike, t.AvgVolume20,
	); err != nil {
		return fmt.Errorf("upsert tick: %w", err)
	}
	return nil
}

// History returns ticks for symbol with minute >= from, most recent first.
func (s *ClickHouseStore) History(ctx context.Context, symbol string, from time.Time) ([]*models.RawTick, error) {
	q := fmt.Sprintf(`SELECT symbol, minute, price, open, high, low, close, volume,
		change_1m, change_5m, change_1h, volume_spike, avg_volume_20
		FROM %s FINAL WHERE symbol = ? AND minute >= ? ORDER BY minute DESC`, s.table("ticks"))

	rows, err := s.db.QueryContext(ctx, q, symbol, from)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var out []*models.RawTick
	for rows.Next() {
		var (
			t     models.RawTick
			spike uint8
		)
		if err := rows.Scan(&t.Symbol, &t.Timestamp, &t.Price, &t.Open, &t.High, &t.Low,
			&t.Close, &t.Volume, &t.ChangePct1m, &t.ChangePct5m, &t.ChangePct1h,
			&spike, &t.AvgVolume20); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		t.VolumeSpike = spike == 1
		out = append(out, &t)
	}
	return out, rows.Err()
}

// SaveSignal persists one market signal record.
func (s *ClickHouseStore) SaveSignal(ctx context.Context, sig *models.MarketSignal) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(id, symbol, type, severity, confidence, direction, rationale, price,
		 stop_loss, max_position_pct, disclaimer, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("signals"))
	if _, err := s.db.ExecContext(ctx, q,
		sig.ID, sig.Symbol, sig.Type, int32(sig.Severity), sig.Confidence, sig.Direction,
		sig.Rationale, sig.Price, sig.StopLoss, sig.MaxPositionPct, sig.Disclaimer, sig.Timestamp,
	); err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// Health pings the database.
func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; pool lifetime is owned by the client.
func (s *ClickHouseStore) Close() error { return nil }
