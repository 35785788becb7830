package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"peerpair/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "peerpair:idempotency:"

// RedisIdempotencyStore shares cached responses across replicas. Redis
// failures are logged and treated as cache misses.
type RedisIdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb, ttl: ttl, log: log}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	data, err := s.rdb.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.log.Warn("idempotency lookup failed", "error", err)
		return nil, false
	}

	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		s.log.Warn("idempotency entry unreadable", "error", err)
		return nil, false
	}
	return &cached, true
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse) {
	response.CreatedAt = time.Now()
	data, err := json.Marshal(response)
	if err != nil {
		s.log.Warn("idempotency entry not encodable", "error", err)
		return
	}
	// SetNX keeps the first response when two replicas race on one key
	if err := s.rdb.SetNX(ctx, idempotencyKeyPrefix+key, data, s.ttl).Err(); err != nil {
		s.log.Warn("idempotency store failed", "error", err)
	}
}

func (s *RedisIdempotencyStore) Stop() {}
