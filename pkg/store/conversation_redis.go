package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"slotbot/pkg/domain"
)

const defaultConversationPrefix = "slotbot:conversation"

// RedisConversationStore keeps sessions in Redis; expiry is the key TTL.
type RedisConversationStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisConversationStore builds a Redis-backed conversation store.
func NewRedisConversationStore(addr, password, prefix string, ttl time.Duration) (*RedisConversationStore, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("conversation store redis addr is required")
	}
	if ttl <= 0 {
		ttl = defaultConversationTTL
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultConversationPrefix
	}
	return &RedisConversationStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl:    ttl,
		prefix: prefix,
	}, nil
}

// Get loads the session for userID. A malformed value is deleted and reported as corrupted.
func (s *RedisConversationStore) Get(ctx context.Context, userID string) (domain.Session, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get conversation: %w", err)
	}
	session, _, err := domain.DecodeSession(data)
	if err != nil {
		_ = s.client.Del(ctx, s.key(userID)).Err()
		return nil, false, err
	}
	return session, true, nil
}

// Save writes the session and resets its TTL.
func (s *RedisConversationStore) Save(ctx context.Context, userID string, session domain.Session) error {
	data, err := domain.EncodeSession(session, time.Now())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// Clear removes the session for userID.
func (s *RedisConversationStore) Clear(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}

// Close releases the Redis client.
func (s *RedisConversationStore) Close() error {
	return s.client.Close()
}

func (s *RedisConversationStore) key(userID string) string {
	return s.prefix + ":" + userID
}
