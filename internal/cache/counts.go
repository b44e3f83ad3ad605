// Package cache is the redis-backed warm cache for upstream count probes.
// Entries are keyed by the exact upstream filter parameters plus a
// generation number; a refresh bumps the generation, orphaning every older
// entry. The cache is advisory: failures degrade to a live probe.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oikotie-tools/apartment-radar/internal/metrics"
)

const generationKey = "apartments:count:generation"

// Counts caches upstream-reported match counts per filter parameter set.
type Counts struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// New connects to redis at addr. The returned cache owns the connection.
func New(addr string, ttl time.Duration, log *slog.Logger) *Counts {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &Counts{rdb: rdb, ttl: ttl, log: log}
}

// Ping tests the redis connection.
func (c *Counts) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (c *Counts) Close() error {
	return c.rdb.Close()
}

// Get returns the cached count for a serialized upstream parameter set.
func (c *Counts) Get(ctx context.Context, paramsKey string) (int, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.log.Warn("count cache unavailable", slog.Any("err", err))
		return 0, false
	}

	raw, err := c.rdb.Get(ctx, entryKey(gen, paramsKey)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("count cache read failed", slog.Any("err", err))
		}
		metrics.CountCacheMisses.Inc()
		return 0, false
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		metrics.CountCacheMisses.Inc()
		return 0, false
	}

	metrics.CountCacheHits.Inc()
	return count, true
}

// Set stores a freshly probed count under the current generation.
func (c *Counts) Set(ctx context.Context, paramsKey string, count int) {
	gen, err := c.generation(ctx)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, entryKey(gen, paramsKey), count, c.ttl).Err(); err != nil {
		c.log.Warn("count cache write failed", slog.Any("err", err))
	}
}

// Invalidate bumps the generation so no existing entry can be read again.
func (c *Counts) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

func (c *Counts) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func entryKey(gen int64, paramsKey string) string {
	return fmt.Sprintf("apartments:count:%d:%s", gen, paramsKey)
}
