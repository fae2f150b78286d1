package pending

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/academyhq/academy-server/internal/pkg/cache"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "pending:"

// RedisStore is the multi-instance staging backend. Redis holds each entry
// for twice the logical TTL so a late Consume can still answer ErrExpired
// instead of ErrNotFound; Redis key expiry acts as the sweep, no background
// worker needed.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
	now    func() time.Time
}

// NewRedisStore creates a staging store on the shared cache connection.
func NewRedisStore() *RedisStore {
	return &RedisStore{
		client: cache.GetClient(),
		ctx:    context.Background(),
		now:    time.Now,
	}
}

// Stage stores a payload envelope under a fresh token.
func (s *RedisStore) Stage(payload json.RawMessage) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	now := s.now()
	envelope, err := json.Marshal(Entry{
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
	})
	if err != nil {
		return "", err
	}

	if err := s.client.Set(s.ctx, redisKeyPrefix+token, envelope, 2*TTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume atomically removes and returns a staged payload. GETDEL guarantees
// exactly one concurrent caller wins; the rest observe ErrNotFound.
func (s *RedisStore) Consume(token string) (json.RawMessage, error) {
	raw, err := s.client.GetDel(s.ctx, redisKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, err
	}
	if s.now().After(entry.ExpiresAt) {
		return nil, ErrExpired
	}
	return entry.Payload, nil
}
