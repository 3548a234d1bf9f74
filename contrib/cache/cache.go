// Package cache is a reference relata.Cache implementation: an in-memory
// map guarded by a mutex, with a background goroutine sweeping expired
// entries. It exists as a working example and a test double — production
// callers are expected to bring Redis, Memcached, or similar (§1).
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// entry is the on-disk (in-memory, here) envelope msgpack-encodes: the
// caller's opaque payload plus the expiry this Cache enforces, so the
// same encoding would carry over unchanged to an out-of-process store.
type entry struct {
	Value     []byte    `msgpack:"value"`
	ExpiresAt time.Time `msgpack:"expiresAt"`
	HasExpiry bool      `msgpack:"hasExpiry"`
}

func (e entry) expired(now time.Time) bool {
	return e.HasExpiry && !e.ExpiresAt.After(now)
}

// Cache is an in-memory relata.Cache. The zero value is not usable; build
// one with New.
type Cache struct {
	mu      sync.RWMutex
	data    map[string][]byte // msgpack-encoded entry
	sweep   time.Duration
	stop    chan struct{}
	stopped sync.Once
}

// New builds a Cache that sweeps expired entries every sweepInterval.
// sweepInterval<=0 disables the background sweep; entries still expire
// lazily on Get.
func New(sweepInterval time.Duration) *Cache {
	c := &Cache{data: make(map[string][]byte), sweep: sweepInterval, stop: make(chan struct{})}
	if sweepInterval > 0 {
		go c.sweepLoop()
	}
	return c
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	raw, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	if e.expired(time.Now()) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, nil
	}
	return e.Value, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{Value: value}
	if ttl > 0 {
		e.HasExpiry = true
		e.ExpiresAt = time.Now().Add(ttl)
	}
	raw, err := msgpack.Marshal(e)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.data[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.data = make(map[string][]byte)
	c.mu.Unlock()
	return nil
}

// Close stops the background sweep goroutine. Safe to call more than
// once; a Cache built with sweepInterval<=0 has nothing to stop.
func (c *Cache) Close() {
	c.stopped.Do(func() { close(c.stop) })
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweepExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, raw := range c.data {
		var e entry
		if err := msgpack.Unmarshal(raw, &e); err != nil {
			continue
		}
		if e.expired(now) {
			delete(c.data, k)
		}
	}
}
