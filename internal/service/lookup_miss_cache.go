package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const entryTokenMissNamespace = "entry_token.not_found"

// LookupMissCache remembers identifiers that were recently looked up and not
// found, so repeated probes for unknown entry tokens skip the database.
type LookupMissCache interface {
	Seen(ctx context.Context, namespace, key string) (bool, error)
	Remember(ctx context.Context, namespace, key string, ttl time.Duration) error
	Forget(ctx context.Context, namespace, key string) error
}

type NoopLookupMissCache struct{}

func (NoopLookupMissCache) Seen(context.Context, string, string) (bool, error) {
	return false, nil
}

func (NoopLookupMissCache) Remember(context.Context, string, string, time.Duration) error {
	return nil
}

func (NoopLookupMissCache) Forget(context.Context, string, string) error {
	return nil
}

type InMemoryLookupMissCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewInMemoryLookupMissCache() *InMemoryLookupMissCache {
	return &InMemoryLookupMissCache{entries: make(map[string]time.Time), now: time.Now}
}

func (c *InMemoryLookupMissCache) Seen(_ context.Context, namespace, key string) (bool, error) {
	k := missKey(namespace, key)
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt, ok := c.entries[k]
	if !ok {
		return false, nil
	}
	if c.now().After(expiresAt) {
		delete(c.entries, k)
		return false, nil
	}
	return true, nil
}

func (c *InMemoryLookupMissCache) Remember(_ context.Context, namespace, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[missKey(namespace, key)] = c.now().Add(ttl)
	return nil
}

func (c *InMemoryLookupMissCache) Forget(_ context.Context, namespace, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, missKey(namespace, key))
	return nil
}

func missKey(namespace, key string) string {
	return normalizeToken(namespace) + ":" + hashToken(key)
}

func normalizeToken(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "_"
	}
	return v
}

func hashToken(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:16])
}
