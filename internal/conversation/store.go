// internal/conversation/store.go
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"intent-workers/internal/common/config"
	"intent-workers/internal/common/database"
	"intent-workers/internal/intent/dialog"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when no state exists for the conversation,
// either because none was written or because the TTL expired.
var ErrNotFound = errors.New("conversation state not found")

const (
	defaultKeyPrefix  = "conversation"
	defaultTTLMinutes = 30
)

// Store keeps one dialog.State JSON blob per conversation in Redis. Every Put
// re-arms the TTL, so a conversation lives for the configured window past its
// last turn. Expiry is the only implicit deletion.
type Store struct {
	client    *database.RedisClient
	keyPrefix string
	ttl       time.Duration
}

// NewStore builds a Store. Zero config values fall back to the
// "conversation" prefix and a 30 minute TTL.
func NewStore(client *database.RedisClient, cfg config.ConversationConfig) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	ttlMinutes := cfg.TTLMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = defaultTTLMinutes
	}
	return &Store{
		client:    client,
		keyPrefix: prefix,
		ttl:       time.Duration(ttlMinutes) * time.Minute,
	}
}

// Key returns the Redis key for a conversation id.
func (s *Store) Key(conversationID string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, conversationID)
}

// TTL returns the configured conversation lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get loads the stored state for a conversation. Absent keys return
// ErrNotFound so callers can start a fresh conversation instead.
func (s *Store) Get(ctx context.Context, conversationID string) (dialog.State, error) {
	data, err := s.client.Get(ctx, s.Key(conversationID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return dialog.State{}, ErrNotFound
		}
		return dialog.State{}, fmt.Errorf("get conversation %s: %w", conversationID, err)
	}

	var st dialog.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return dialog.State{}, fmt.Errorf("decode conversation %s: %w", conversationID, err)
	}
	return st, nil
}

// Put writes the state for a conversation and resets its TTL.
func (s *Store) Put(ctx context.Context, conversationID string, st dialog.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", conversationID, err)
	}
	if err := s.client.Set(ctx, s.Key(conversationID), data, s.ttl); err != nil {
		return fmt.Errorf("put conversation %s: %w", conversationID, err)
	}
	return nil
}

// Delete removes the stored state. Deleting an absent conversation is not an
// error.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, s.Key(conversationID)); err != nil {
		return fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}
	return nil
}
