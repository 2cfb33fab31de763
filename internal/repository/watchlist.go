package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"
	"SignalFuse/pkg/cache"
	"SignalFuse/pkg/logger"
)

// ClickHouseWatchlist reads enabled watch-list entries.
type ClickHouseWatchlist struct {
	db       *sql.DB
	database string
}

// NewClickHouseWatchlist creates a watchlist provider bound to a database.
func NewClickHouseWatchlist(db *sql.DB, database string) *ClickHouseWatchlist {
	return &ClickHouseWatchlist{db: db, database: database}
}

// Enabled returns all enabled entries across tenants.
func (w *ClickHouseWatchlist) Enabled(ctx context.Context) ([]*models.WatchItem, error) {
	q := fmt.Sprintf(`SELECT tenant, symbol FROM %s.watchlist FINAL
		WHERE enabled = 1 ORDER BY tenant, symbol`, w.database)

	rows, err := w.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []*models.WatchItem
	for rows.Next() {
		item := &models.WatchItem{Enabled: true}
		if err := rows.Scan(&item.Tenant, &item.Symbol); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

const watchlistCacheKey = "watchlist:enabled"

// CachedWatchlist wraps a Watchlist with a TTL cache. Misses and cache
// failures fall through to the inner provider.
type CachedWatchlist struct {
	inner drepo.Watchlist
	cache cache.Service
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedWatchlist creates the caching wrapper.
func NewCachedWatchlist(inner drepo.Watchlist, c cache.Service, ttl time.Duration, log *logger.Logger) *CachedWatchlist {
	return &CachedWatchlist{inner: inner, cache: c, ttl: ttl, log: log}
}

func (w *CachedWatchlist) Enabled(ctx context.Context) ([]*models.WatchItem, error) {
	var cached []*models.WatchItem
	err := w.cache.Get(ctx, watchlistCacheKey, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) && w.log != nil {
		w.log.Warn("watchlist cache read failed", logger.Error(err))
	}

	items, err := w.inner.Enabled(ctx)
	if err != nil {
		return nil, err
	}

	if err := w.cache.Set(ctx, watchlistCacheKey, items, w.ttl); err != nil && w.log != nil {
		w.log.Warn("watchlist cache write failed", logger.Error(err))
	}
	return items, nil
}
