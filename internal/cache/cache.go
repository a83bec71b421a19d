package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// Layer identifies which cache tier served a hit.
type Layer string

const (
	LayerHot  Layer = "hot"
	LayerWarm Layer = "warm"
)

// similarityScanLimit bounds how many stored queries a similarity lookup
// compares against.
const similarityScanLimit = 500

// Entry is one cached (query, response) pair.
type Entry struct {
	Fingerprint  string
	Query        string // normalized
	Tokens       []string
	Response     string
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int64
}

// Config encapsulates cache tunables.
type Config struct {
	HotCapacity         int
	WarmPath            string
	WarmMaxEntries      int
	TTL                 time.Duration
	SimilarityThreshold float64
	MinResponseLen      int
	Logger              zerolog.Logger
}

// Cache is the layered response cache. All methods are safe for concurrent
// use.
type Cache struct {
	mu   sync.Mutex
	hot  *hotCache
	warm *warmStore

	threshold  float64
	ttl        time.Duration
	maxEntries int
	minRespLen int
	log        zerolog.Logger

	degraded       bool
	degradedReason string

	hotHits  int64
	warmHits int64
	misses   int64
	stores   int64
	rejected int64
}

// Open builds the cache, creating the warm store at cfg.WarmPath. A warm
// store that cannot be opened yields a degraded hot-only cache rather than
// an error: the request path must keep working.
func Open(cfg Config) *Cache {
	c := &Cache{
		hot:        newHotCache(cfg.HotCapacity),
		threshold:  cfg.SimilarityThreshold,
		ttl:        cfg.TTL,
		maxEntries: cfg.WarmMaxEntries,
		minRespLen: cfg.MinResponseLen,
		log:        cfg.Logger,
	}
	warm, err := openWarmStore(cfg.WarmPath)
	if err != nil {
		c.degraded = true
		c.degradedReason = err.Error()
		c.log.Error().Err(err).Msg("event=cache_degraded warm store unavailable")
		return c
	}
	c.warm = warm
	return c
}

// Lookup resolves a query against the hot layer, then the warm layer, then
// by token-set similarity. A warm hit is promoted into the hot layer.
func (c *Cache) Lookup(ctx context.Context, query string) (*Entry, Layer, bool) {
	norm := Normalize(query)
	fp := Fingerprint(norm)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.hot.get(fp); e != nil {
		if c.expired(e, now) {
			c.evict(ctx, fp)
		} else {
			c.markHit(ctx, e, now)
			c.hotHits++
			lookupsTotal.WithLabelValues("hot").Inc()
			return e, LayerHot, true
		}
	}

	if !c.degraded {
		e, err := c.warm.get(ctx, fp)
		if err != nil {
			c.degrade(err)
		} else if e != nil {
			if c.expired(e, now) {
				c.evict(ctx, fp)
			} else {
				c.markHit(ctx, e, now)
				c.hot.put(e) // idempotent promotion
				c.warmHits++
				lookupsTotal.WithLabelValues("warm").Inc()
				return e, LayerWarm, true
			}
		}
	}

	if e, layer, ok := c.similarLookup(ctx, norm, now); ok {
		return e, layer, true
	}

	c.misses++
	lookupsTotal.WithLabelValues("miss").Inc()
	return nil, "", false
}

// similarLookup scans stored queries for the best Jaccard score at or above
// the threshold; ties go to the most recently accessed entry.
func (c *Cache) similarLookup(ctx context.Context, norm string, now time.Time) (*Entry, Layer, bool) {
	in := TokenSet(norm)
	var bestFP string
	var bestScore float64
	var bestAccessed time.Time

	consider := func(fp, tokens string, accessed time.Time) {
		score := Jaccard(in, TokenSet(tokens))
		if score < c.threshold {
			return
		}
		if score > bestScore || (score == bestScore && accessed.After(bestAccessed)) {
			bestFP, bestScore, bestAccessed = fp, score, accessed
		}
	}

	if c.degraded {
		c.hot.each(func(e *Entry) {
			consider(e.Fingerprint, e.Query, e.LastAccessed)
		})
		if bestFP == "" {
			return nil, "", false
		}
		e := c.hot.get(bestFP)
		if e == nil || c.expired(e, now) {
			return nil, "", false
		}
		c.markHit(ctx, e, now)
		c.hotHits++
		lookupsTotal.WithLabelValues("hot").Inc()
		return e, LayerHot, true
	}

	cands, err := c.warm.candidates(ctx, similarityScanLimit)
	if err != nil {
		c.degrade(err)
		return nil, "", false
	}
	for _, cand := range cands {
		consider(cand.fingerprint, cand.tokens, cand.lastAccessed)
	}
	if bestFP == "" {
		return nil, "", false
	}
	e, err := c.warm.get(ctx, bestFP)
	if err != nil {
		c.degrade(err)
		return nil, "", false
	}
	if e == nil || c.expired(e, now) {
		return nil, "", false
	}
	c.markHit(ctx, e, now)
	c.hot.put(e)
	c.warmHits++
	lookupsTotal.WithLabelValues("warm").Inc()
	return e, LayerWarm, true
}

// Store runs the cacheability filter and persists accepted pairs to both
// layers. Returns whether the pair was stored.
func (c *Cache) Store(ctx context.Context, query, response string) bool {
	if !Cacheable(query, response, c.minRespLen) {
		c.mu.Lock()
		c.rejected++
		c.mu.Unlock()
		storesTotal.WithLabelValues("rejected").Inc()
		return false
	}
	norm := Normalize(query)
	now := time.Now()
	e := &Entry{
		Fingerprint:  Fingerprint(norm),
		Query:        norm,
		Tokens:       tokensOf(norm),
		Response:     response,
		CreatedAt:    now,
		LastAccessed: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hot.put(e)
	if !c.degraded {
		if err := c.warm.put(ctx, e); err != nil {
			c.degrade(err)
		}
	}
	c.stores++
	storesTotal.WithLabelValues("stored").Inc()
	return true
}

// ClearHot empties the hot layer. Used by memory-pressure remediation.
func (c *Cache) ClearHot() {
	c.mu.Lock()
	c.hot.clear()
	c.mu.Unlock()
	c.log.Warn().Msg("event=hot_cache_cleared")
}

// Degraded reports whether the cache is running hot-only, with the cause.
func (c *Cache) Degraded() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded, c.degradedReason
}

// Reinit recreates the warm schema and clears the degraded flag. Cached data
// is expendable; a fresh schema beats a dead cache.
func (c *Cache) Reinit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.warm == nil {
		// Store never opened; nothing to recover in-process.
		return nil
	}
	if err := c.warm.reinit(ctx); err != nil {
		return err
	}
	c.degraded = false
	c.degradedReason = ""
	c.log.Info().Msg("event=cache_reinitialized")
	return nil
}

// IntegrityCheck probes the warm store for the health monitor.
func (c *Cache) IntegrityCheck() error {
	c.mu.Lock()
	warm := c.warm
	c.mu.Unlock()
	if warm == nil {
		return nil
	}
	return warm.integrityCheck()
}

// Sweep purges TTL-expired entries and trims the warm layer to capacity.
// A non-positive TTL means entries never expire and a non-positive capacity
// means the warm layer is unbounded, matching the lazy-expiry path.
func (c *Cache) Sweep(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.degraded {
		return
	}
	var expired, trimmed int64
	var err error
	if c.ttl > 0 {
		expired, err = c.warm.purgeExpired(ctx, time.Now().Add(-c.ttl))
		if err != nil {
			c.degrade(err)
			return
		}
	}
	if c.maxEntries > 0 {
		trimmed, err = c.warm.purgeLRU(ctx, c.maxEntries)
		if err != nil {
			c.degrade(err)
			return
		}
	}
	if expired+trimmed > 0 {
		c.log.Debug().Int64("expired", expired).Int64("trimmed", trimmed).Msg("event=cache_sweep")
	}
}

// StartSweeper runs Sweep on the given interval until ctx is canceled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Stats reports cache counters for /status.
func (c *Cache) Stats(ctx context.Context) types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := types.CacheStats{
		HotEntries: c.hot.len(),
		HotHits:    c.hotHits,
		WarmHits:   c.warmHits,
		Misses:     c.misses,
		Stores:     c.stores,
		Rejected:   c.rejected,
		Degraded:   c.degraded,
	}
	if !c.degraded {
		if n, err := c.warm.count(ctx); err == nil {
			st.WarmEntries = n
		}
	}
	return st
}

// Close releases the warm store.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.warm == nil {
		return nil
	}
	return c.warm.close()
}

func (c *Cache) expired(e *Entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.CreatedAt) > c.ttl
}

// evict lazily drops an expired entry from both layers.
func (c *Cache) evict(ctx context.Context, fingerprint string) {
	c.hot.remove(fingerprint)
	if !c.degraded {
		if err := c.warm.delete(ctx, fingerprint); err != nil {
			c.degrade(err)
		}
	}
}

func (c *Cache) markHit(ctx context.Context, e *Entry, now time.Time) {
	e.LastAccessed = now
	e.AccessCount++
	if !c.degraded {
		// Best-effort recency write; a failure here degrades like any
		// other warm error.
		if err := c.warm.touch(ctx, e.Fingerprint, now); err != nil {
			c.degrade(err)
		}
	}
}

// degrade flips the cache to hot-only mode. Called with c.mu held.
func (c *Cache) degrade(err error) {
	if c.degraded {
		return
	}
	c.degraded = true
	c.degradedReason = err.Error()
	c.log.Error().Err(err).Msg("event=cache_degraded")
}

func tokensOf(norm string) []string {
	set := TokenSet(norm)
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	return out
}
