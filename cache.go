package relata

import (
	"context"
	"strconv"
	"time"
)

// Cache is the interface Repository consults when a read is issued with a
// cacheTtl>0 (§4.8). It is an external collaborator per §1 — relata ships
// only this contract plus a reference implementation in contrib/cache;
// production callers are expected to bring Redis, Memcached, or similar.
type Cache interface {
	// Get retrieves a value from the cache. Returns nil, nil on a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL. ttl==0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key with the given prefix. Repository uses
	// this to invalidate all cached reads for a table after a write.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes every cached value.
	Clear(ctx context.Context) error
}

// CacheKey builds the deterministic keys described in §4.8:
// "<table>:<column>:<value>", "<table>:all", "<table>:paged:<page>:<size>".
type CacheKey struct {
	Table   string
	Column  string
	Value   string
	Page    int
	Size    int
	Variant string // "byColumn", "all", or "paged"
}

// String renders the cache key.
func (k CacheKey) String() string {
	switch k.Variant {
	case "all":
		return k.Table + ":all"
	case "paged":
		return k.Table + ":paged:" + strconv.Itoa(k.Page) + ":" + strconv.Itoa(k.Size)
	default:
		return k.Table + ":" + k.Column + ":" + k.Value
	}
}

// TablePrefix is the invalidation prefix Repository writes use: it matches
// every key variant produced for that table.
func TablePrefix(table string) string { return table + ":" }
