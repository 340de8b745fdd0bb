package ingredient

import (
	"context"
	"encoding/binary"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/metrics"
)

// DefaultCacheTTL is how long a categorization answer is reused.
const DefaultCacheTTL = 10 * time.Minute

// CacheConfig configures CachedCategorizer.
type CacheConfig struct {
	TTL      time.Duration `mapstructure:"ttl"      yaml:"ttl"      json:"ttl"`
	Capacity uint64        `mapstructure:"capacity" yaml:"capacity" json:"capacity"` // 0 = unlimited
	// CallTimeout bounds a shared upstream call, which outlives the caller
	// that started it. 0 means DefaultRequestTimeout.
	CallTimeout time.Duration `mapstructure:"-" yaml:"-" json:"-"`
}

// CacheStats holds counters for a CachedCategorizer.
type CacheStats struct {
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	SingleflightHits uint64 `json:"singleflight_hits"`
	Entries          int    `json:"entries"`
}

// CachedCategorizer memoizes answers of another Categorizer. Identical
// concurrent requests share one upstream call. Errors are never cached.
type CachedCategorizer struct {
	next    Categorizer
	cache   *ttlcache.Cache[string, string]
	sfGroup singleflight.Group
	timeout time.Duration
	log     *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
	sfHits atomic.Uint64
}

// NewCachedCategorizer wraps next with a TTL cache. Call Close to stop the
// expiry goroutine.
func NewCachedCategorizer(next Categorizer, cfg CacheConfig, logger *slog.Logger) *CachedCategorizer {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	opts := []ttlcache.Option[string, string]{
		ttlcache.WithTTL[string, string](ttl),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, string](cfg.Capacity))
	}
	cache := ttlcache.New(opts...)
	go cache.Start()

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &CachedCategorizer{next: next, cache: cache, timeout: timeout, log: logger}
}

// Categorize returns a cached answer or asks the wrapped categorizer.
func (c *CachedCategorizer) Categorize(ctx context.Context, text string) (string, error) {
	key := cacheKey(text)
	if key == "" {
		return "", ErrEmptyInput
	}

	if item := c.cache.Get(key); item != nil {
		c.hits.Add(1)
		metrics.RecordCacheHit()
		return item.Value(), nil
	}

	// The upstream call is shared, so it must not die with whichever caller
	// happened to start it. Each caller still stops waiting on its own ctx.
	ch := c.sfGroup.DoChan(key, func() (any, error) {
		c.misses.Add(1)
		metrics.RecordCacheMiss()

		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		answer, err := c.next.Categorize(callCtx, text)
		if err != nil {
			return "", err
		}
		c.cache.Set(key, answer, ttlcache.DefaultTTL)
		return answer, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.sfHits.Add(1)
			metrics.RecordCacheShared()
			c.log.Debug("Categorization request shared", "text_len", len(text))
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil //nolint:forcetypeassert // the shared call only returns strings
	}
}

// Stats returns the cache counters.
func (c *CachedCategorizer) Stats() CacheStats {
	return CacheStats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		SingleflightHits: c.sfHits.Load(),
		Entries:          c.cache.Len(),
	}
}

// Close stops the cache.
func (c *CachedCategorizer) Close() {
	c.cache.Stop()
}

// cacheKey hashes text after lower-casing and collapsing whitespace, so
// "Diced  Onion" and "diced onion" share an entry.
func cacheKey(text string) string {
	norm := strings.Join(strings.Fields(Lower(text)), " ")
	if norm == "" {
		return ""
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64String(norm))
	return string(buf[:])
}
