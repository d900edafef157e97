// Package cache provides the per-source "last seen URL" marker cache
// FreshLinkCollector uses to terminate its newest-first walk early.
// Grounded on original_source/cache_manager.py's get/set-by-source shape,
// generalized from a bare redis.Redis client to the capability-contract
// style the rest of this module uses.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"newsfeed-pipeline/internal/domain/entity"
)

// ErrMarkerNotFound is returned by Get when no marker has been recorded
// yet for a source; callers treat this as "walk the whole feed".
var ErrMarkerNotFound = errors.New("no source marker cached")

// SourceMarkerCache is the capability contract FreshLinkCollector reads
// and writes its optimization cursor through. It is never authoritative:
// spec.md §3 notes the RelationalStore's `url` uniqueness is what
// actually prevents duplicate LinkRecords, so a cache miss or stale value
// only costs extra discovery work, never correctness.
type SourceMarkerCache interface {
	Get(ctx context.Context, source string) (entity.SourceMarker, error)
	Set(ctx context.Context, marker entity.SourceMarker) error
}

// ShortTermCache implements SourceMarkerCache against Redis, storing each
// source's marker under a single string key with no expiry (the marker
// must persist across collector runs).
type ShortTermCache struct {
	client *redis.Client
}

// NewShortTermCache dials addr (a redis:// URL or host:port).
func NewShortTermCache(addr string) (*ShortTermCache, error) {
	var opts *redis.Options
	var err error
	if len(addr) >= 8 && addr[:8] == "redis://" {
		opts, err = redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("short term cache: parse addr: %w", err)
		}
	} else {
		opts = &redis.Options{Addr: addr}
	}

	return &ShortTermCache{client: redis.NewClient(opts)}, nil
}

func markerKey(source string) string {
	return "source_marker:" + source
}

// Get implements SourceMarkerCache.
func (c *ShortTermCache) Get(ctx context.Context, source string) (entity.SourceMarker, error) {
	val, err := c.client.Get(ctx, markerKey(source)).Result()
	if errors.Is(err, redis.Nil) {
		return entity.SourceMarker{}, ErrMarkerNotFound
	}
	if err != nil {
		return entity.SourceMarker{}, fmt.Errorf("short term cache: get %s: %w", source, err)
	}

	return entity.SourceMarker{Source: source, LastURL: val}, nil
}

// Set implements SourceMarkerCache. No expiry: the marker must survive
// indefinitely between collector runs.
func (c *ShortTermCache) Set(ctx context.Context, marker entity.SourceMarker) error {
	if err := c.client.Set(ctx, markerKey(marker.Source), marker.LastURL, 0).Err(); err != nil {
		return fmt.Errorf("short term cache: set %s: %w", marker.Source, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *ShortTermCache) Close() error {
	return c.client.Close()
}

// Ping checks connectivity, used by the worker's health endpoint.
func (c *ShortTermCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}
