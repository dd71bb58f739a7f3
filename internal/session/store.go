// Package session holds the ephemeral per-user conversation state. Losing an
// entry degrades to restarting the conversation at idle; it never loses
// durable data.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"watchnext-suggestion-service/internal/models"
)

// Store is the conversation-state cache capability. Entries may be evicted
// after the configured TTL; a miss reads as the idle state.
type Store interface {
	Get(ctx context.Context, userID int64) (models.ConversationState, error)
	Set(ctx context.Context, userID int64, st models.ConversationState) error
	Clear(ctx context.Context, userID int64) error
}

// RedisStore implements Store on Redis with JSON values and per-key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("session:%d", userID)
}

// Get returns the user's conversation state, or the idle state if none is
// cached.
func (s *RedisStore) Get(ctx context.Context, userID int64) (models.ConversationState, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.IdleState(), nil
	}
	if err != nil {
		return models.ConversationState{}, &models.StoreError{Op: "get session", Err: err}
	}

	var st models.ConversationState
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt entry is treated like an evicted one.
		return models.IdleState(), nil
	}
	return st, nil
}

// Set overwrites the user's conversation state and refreshes its TTL.
func (s *RedisStore) Set(ctx context.Context, userID int64, st models.ConversationState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(userID), data, s.ttl).Err(); err != nil {
		return &models.StoreError{Op: "set session", Err: err}
	}
	return nil
}

// Clear removes the user's conversation state.
func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return &models.StoreError{Op: "clear session", Err: err}
	}
	return nil
}
