// Package cache keeps search results in Redis. Keys embed the index
// generation, so any write to an index makes its cached results unreachable
// without scanning for keys to delete.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gcbaptista/go-search-core/internal/logger"
	"github.com/gcbaptista/go-search-core/services"
)

const (
	keyPrefix  = "search:"
	defaultTTL = 5 * time.Minute
)

// ErrMiss is returned by a Backend when a key is absent.
var ErrMiss = errors.New("cache miss")

// Backend stores raw cache entries.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// Scope identifies the state of an index a result was computed against.
// Epoch changes whenever an index is (re)opened, Generation on every write.
type Scope struct {
	Index      string
	Epoch      string
	Generation uint64
}

// QueryCache caches search results and collapses concurrent identical
// searches into one computation.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache over backend. A zero ttl selects five minutes.
func New(backend Backend, ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		logger:  logger.WithComponent("query-cache"),
	}
}

// Get returns the cached result for query, if any.
func (c *QueryCache) Get(ctx context.Context, scope Scope, query services.SearchQuery) (services.SearchResult, bool) {
	key := BuildKey(scope, query)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Error("Cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return services.SearchResult{}, false
	}
	var result services.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("Cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return services.SearchResult{}, false
	}
	c.hits.Add(1)
	return result, true
}

// Set stores result for query. Failures are logged, never returned.
func (c *QueryCache) Set(ctx context.Context, scope Scope, query services.SearchQuery, result services.SearchResult) {
	key := BuildKey(scope, query)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("Cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("Cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once for all
// concurrent callers with the same key. The boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	scope Scope,
	query services.SearchQuery,
	compute func() (services.SearchResult, error),
) (services.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, scope, query); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(BuildKey(scope, query), func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, scope, query, result)
		return result, nil
	})
	if err != nil {
		return services.SearchResult{}, false, err
	}
	return val.(services.SearchResult), false, nil
}

// Stats returns hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Ping checks the backend.
func (c *QueryCache) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

// Close closes the backend.
func (c *QueryCache) Close() error {
	return c.backend.Close()
}

// BuildKey hashes the scope and the normalized query into a cache key.
func BuildKey(scope Scope, query services.SearchQuery) string {
	raw := fmt.Sprintf("%s|%s|%d|%s", scope.Index, scope.Epoch, scope.Generation, normalizeQuery(query))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, scope.Index, hash[:16])
}

// normalizeQuery renders a query canonically: lowercased query string,
// sorted field lists, filters in key order.
func normalizeQuery(query services.SearchQuery) string {
	restrict := append([]string(nil), query.RestrictSearchableFields...)
	sort.Strings(restrict)
	retrieve := append([]string(nil), query.RetrievableFields...)
	sort.Strings(retrieve)

	// encoding/json sorts map keys
	filters, _ := json.Marshal(query.Filters)

	return strings.Join([]string{
		strings.Join(strings.Fields(strings.ToLower(query.QueryString)), " "),
		string(filters),
		fmt.Sprintf("page=%d,size=%d", query.Page, query.PageSize),
		strings.Join(restrict, ","),
		strings.Join(retrieve, ","),
	}, "|")
}
