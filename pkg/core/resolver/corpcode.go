package resolver

import (
	"context"
	"fmt"
	"sync"
)

// CorpCodeCache is a process-scoped read-through cache for ticker → corp code
// resolution. The underlying mapping is large and mostly static, so entries
// are treated as append-only: concurrent batch workers may populate the same
// key redundantly and later writes are idempotent, which keeps the cache safe
// without external locking.
type CorpCodeCache struct {
	lookup CorpCodeLookup
	codes  sync.Map // ticker -> corp code
}

// NewCorpCodeCache wraps a lookup with memoization.
func NewCorpCodeCache(lookup CorpCodeLookup) *CorpCodeCache {
	return &CorpCodeCache{lookup: lookup}
}

// Resolve returns the corp code for a ticker, fetching through the lookup on
// first use. Failed lookups are not cached so a transient source error does
// not poison the process.
func (c *CorpCodeCache) Resolve(ctx context.Context, ticker string) (string, error) {
	if v, ok := c.codes.Load(ticker); ok {
		return v.(string), nil
	}
	if c.lookup == nil {
		return "", fmt.Errorf("no corp code lookup configured")
	}

	code, err := c.lookup.LookupCorpCode(ctx, ticker)
	if err != nil {
		return "", fmt.Errorf("corp code lookup for %s: %w", ticker, err)
	}
	if code == "" {
		return "", fmt.Errorf("corp code not found for %s", ticker)
	}

	c.codes.Store(ticker, code)
	return code, nil
}

// Seed inserts a known mapping, used by batch drivers that already hold the
// full listing file.
func (c *CorpCodeCache) Seed(ticker, corpCode string) {
	c.codes.Store(ticker, corpCode)
}
