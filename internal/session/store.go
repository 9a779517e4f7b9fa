package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coolfix/service-desk/internal/domain"
)

// Store keeps conversation contexts for the lifetime of a chat session.
type Store interface {
	Load(ctx context.Context, sessionID string) (*domain.ConversationContext, error)
	Save(ctx context.Context, conv *domain.ConversationContext) error
	Delete(ctx context.Context, sessionID string) error
}

const keyPrefix = "servicedesk:session:"

// RedisStore serialises contexts as JSON with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*domain.ConversationContext, error) {
	raw, err := s.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	var conv domain.ConversationContext
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &conv, nil
}

func (s *RedisStore) Save(ctx context.Context, conv *domain.ConversationContext) error {
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, keyPrefix+conv.SessionID, raw, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, keyPrefix+sessionID).Err()
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Contexts are stored as JSON so callers never share
// pointers with the store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*domain.ConversationContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.ttl > 0 && !s.now().Before(entry.expiresAt) {
		delete(s.entries, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	var conv domain.ConversationContext
	if err := json.Unmarshal(entry.data, &conv); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &conv, nil
}

func (s *MemoryStore) Save(_ context.Context, conv *domain.ConversationContext) error {
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[conv.SessionID] = memoryEntry{data: raw, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}
