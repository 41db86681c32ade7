package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to Redis and returns a Store backed by it.
// Sessions survive bot restarts; in-progress dialog data is kept too, which
// is harmless because dispatch always validates the stored state tag.
func NewRedisStore(addr string) (Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis ping failed: %w", err)
	}
	return &redisStore{rdb: rdb}, nil
}

func redisKey(userID int64) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, userID)
}

func (r *redisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := r.rdb.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode stored session: %w", err)
	}
	if s.State == "" {
		s.State = StateIdle
	}
	return &s, nil
}

func (r *redisStore) Put(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, redisKey(s.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, userID int64) error {
	if err := r.rdb.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}
