// Package cache provides a Redis-backed response cache for search
// queries. Concurrent identical queries are collapsed with
// singleflight so a cold key is computed once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/searchworks/persondex/internal/search"
	"github.com/searchworks/persondex/pkg/config"
	pkgredis "github.com/searchworks/persondex/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "persondex:search:"

type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, req search.Request) ([]search.Result, bool) {
	key := buildKey(req)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkgredis.ErrCacheMiss) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var results []search.Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, req search.Request, results []search.Result) {
	key := buildKey(req)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req search.Request,
	computeFn func() ([]search.Result, error),
) ([]search.Result, bool, error) {
	if results, ok := c.Get(ctx, req); ok {
		return results, true, nil
	}
	key := buildKey(req)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if results, ok := c.Get(ctx, req); ok {
			return results, nil
		}
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, req, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]search.Result), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes a normalised form of the request. Name terms are
// case-folded so "Ana" and "ana" share an entry; the id term is not,
// since the identifier path matches verbatim prefixes.
func buildKey(req search.Request) string {
	raw := fmt.Sprintf("given=%s|family=%s|id=%s|limit=%d",
		strings.ToLower(strings.TrimSpace(req.Given)),
		strings.ToLower(strings.TrimSpace(req.Family)),
		strings.TrimSpace(req.ID),
		req.Limit,
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
