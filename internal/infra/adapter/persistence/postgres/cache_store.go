// Package postgres provides PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"threatwatch/internal/repository"
	"threatwatch/internal/resilience/circuitbreaker"
	"threatwatch/internal/resilience/retry"
	"threatwatch/pkg/clock"
)

// CacheStore is the durable feed cache backed by the feed_cache table.
// Every operation runs through a circuit breaker and short retries, so a sick
// database degrades to cache misses instead of stalling the poll loop.
type CacheStore struct {
	db       *sql.DB
	clock    clock.Clock
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
}

// NewCacheStore creates a CacheStore. clk defaults to the system clock.
func NewCacheStore(db *sql.DB, clk clock.Clock) repository.CacheStore {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	return &CacheStore{
		db:       db,
		clock:    clk,
		breaker:  circuitbreaker.New(circuitbreaker.StoreConfig()),
		retryCfg: retry.StoreConfig(),
	}
}

// Get returns the unexpired value for key, or (nil, nil) on a miss.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `
SELECT value
FROM feed_cache
WHERE key = $1 AND expires_at > $2
LIMIT 1`

	var value []byte
	err := s.execute(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, key, s.clock.Now())
		if err := row.Scan(&value); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				value = nil
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Get %q: %w", key, err)
	}
	return value, nil
}

// Set upserts the value for key with the given TTL.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const query = `
INSERT INTO feed_cache (key, value, expires_at, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`

	now := s.clock.Now()
	err := s.execute(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, key, value, now.Add(ttl), now)
		return err
	})
	if err != nil {
		return fmt.Errorf("Set %q: %w", key, err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *CacheStore) Purge(ctx context.Context) (int64, error) {
	const query = `DELETE FROM feed_cache WHERE expires_at <= $1`

	var removed int64
	err := s.execute(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, s.clock.Now())
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("Purge: %w", err)
	}
	return removed, nil
}

// execute runs op through the circuit breaker with short retries.
func (s *CacheStore) execute(ctx context.Context, op func() error) error {
	return retry.WithBackoff(ctx, s.retryCfg, func() error {
		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, op()
		})
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("cache store circuit breaker open, request rejected",
				slog.String("service", "cache-store"),
				slog.String("state", s.breaker.State().String()))
			return fmt.Errorf("cache store unavailable: circuit breaker open")
		}
		return err
	})
}
