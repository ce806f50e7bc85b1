package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Membership is the room state restored when a client reconnects.
type Membership struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId,omitempty"`
	Role          Role   `json:"role"`
}

type ReconnectStore interface {
	Save(ctx context.Context, key string, m Membership, ttl time.Duration) error
	// Load returns nil without error when key is unknown or expired.
	Load(ctx context.Context, key string) (*Membership, error)
	Delete(ctx context.Context, key string) error
}

type InMemoryReconnectStore struct {
	mu      sync.Mutex
	entries map[string]reconnectEntry
	now     func() time.Time
}

type reconnectEntry struct {
	membership Membership
	expiresAt  time.Time
}

func NewInMemoryReconnectStore() *InMemoryReconnectStore {
	return &InMemoryReconnectStore{entries: make(map[string]reconnectEntry), now: time.Now}
}

func (s *InMemoryReconnectStore) Save(_ context.Context, key string, m Membership, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = reconnectEntry{membership: m, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryReconnectStore) Load(_ context.Context, key string) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}
	m := entry.membership
	return &m, nil
}

func (s *InMemoryReconnectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *InMemoryReconnectStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

type RedisReconnectStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisReconnectStore(client redis.UniversalClient, prefix string) *RedisReconnectStore {
	if prefix == "" {
		prefix = "live-voting"
	}
	return &RedisReconnectStore{client: client, prefix: prefix + ":ws_resume:"}
}

func (s *RedisReconnectStore) Save(ctx context.Context, key string, m Membership, ttl time.Duration) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, raw, ttl).Err()
}

func (s *RedisReconnectStore) Load(ctx context.Context, key string) (*Membership, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Membership
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *RedisReconnectStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
