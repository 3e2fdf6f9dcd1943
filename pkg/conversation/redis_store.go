package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ============================================================================
// REDIS SESSION STORE
// ============================================================================
// Redis-backed session storage for multi-node deployments. State is stored
// as JSON under a per-conversation key with a sliding TTL, so idle sessions
// expire server-side without a cleanup goroutine.

const redisKeyPrefix = "guardline:conversation:"

// RedisStore implements Store backed by Redis.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store. A zero ttl defaults
// to one hour, matching the in-memory store.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisStoreFromAddr dials a single Redis node and wraps it in a store.
func NewRedisStoreFromAddr(addr string, ttl time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return NewRedisStore(client, ttl)
}

func redisKey(conversationID string) string {
	return redisKeyPrefix + conversationID
}

// Get retrieves a session by id. Returns nil, nil if not found.
func (s *RedisStore) Get(ctx context.Context, conversationID string) (*State, error) {
	data, err := s.client.Get(ctx, redisKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: redis get %s: %w", conversationID, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("conversation: decode session %s: %w", conversationID, err)
	}
	return &state, nil
}

// Save creates or updates a session and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("conversation: state is nil")
	}
	if state.ConversationID == "" {
		return fmt.Errorf("conversation: conversation id is required")
	}
	if state.MaxHistory == 0 {
		state.MaxHistory = DefaultHistoryWindow
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("conversation: encode session %s: %w", state.ConversationID, err)
	}

	if err := s.client.Set(ctx, redisKey(state.ConversationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("conversation: redis set %s: %w", state.ConversationID, err)
	}
	return nil
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, redisKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("conversation: redis del %s: %w", conversationID, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
