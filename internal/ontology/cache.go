package ontology

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultCacheTTL = 10 * time.Minute

// Fetcher retrieves an ontology structure by its hash.
type Fetcher interface {
	FetchOntology(ctx context.Context, ontologyHash string) (*Structure, error)
}

type cacheEntry struct {
	index     *Index
	fetchedAt time.Time
}

// Cached wraps a Fetcher and keeps indexed ontologies for a TTL. When a
// refresh fails a stale copy is served if one exists.
type Cached struct {
	fetcher Fetcher
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCached creates a caching wrapper around ontology fetches.
func NewCached(fetcher Fetcher, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached index if fresh, otherwise fetches it again.
func (c *Cached) Get(ctx context.Context, ontologyHash string) (*Index, error) {
	c.mu.RLock()
	entry, ok := c.entries[ontologyHash]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.index, nil
	}

	return c.Refresh(ctx, ontologyHash)
}

// Refresh forces a fetch regardless of cache freshness.
func (c *Cached) Refresh(ctx context.Context, ontologyHash string) (*Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	structure, err := c.fetcher.FetchOntology(ctx, ontologyHash)
	if err == nil {
		var index *Index
		index, err = NewIndex(structure)
		if err == nil {
			c.entries[ontologyHash] = cacheEntry{index: index, fetchedAt: c.now()}
			return index, nil
		}
	}

	if c.logger != nil {
		c.logger.Warn("ontology fetch failed", "ontology_hash", ontologyHash, "error", err)
	}
	if stale, ok := c.entries[ontologyHash]; ok {
		if c.logger != nil {
			c.logger.Info("returning stale ontology", "ontology_hash", ontologyHash)
		}
		return stale.index, nil
	}
	return nil, err
}
