package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps login sessions and failed-login counters.
type SessionStore interface {
	Create(ctx context.Context, sessionID, userID uuid.UUID, ttl time.Duration) error
	// Lookup returns the session owner or ErrSessionNotFound.
	Lookup(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)
	Extend(ctx context.Context, sessionID uuid.UUID, ttl time.Duration) error
	Delete(ctx context.Context, sessionID uuid.UUID) (bool, error)

	Failures(ctx context.Context, login string) (int, error)
	// RecordFailure increments the counter, starting a window of ttl on the first failure.
	RecordFailure(ctx context.Context, login string, ttl time.Duration) (int, error)
	ResetFailures(ctx context.Context, login string) error
}

func redisKeySession(sessionID uuid.UUID) string { return "session:" + sessionID.String() }

func redisKeyFailures(login string) string { return "login:failures:" + login }

type redisSessions struct {
	rdb *redis.Client
}

// NewRedisSessions stores sessions as "session:<id>" → user id.
func NewRedisSessions(rdb *redis.Client) SessionStore {
	return &redisSessions{rdb: rdb}
}

func (s *redisSessions) Create(ctx context.Context, sessionID, userID uuid.UUID, ttl time.Duration) error {
	return s.rdb.Set(ctx, redisKeySession(sessionID), userID.String(), ttl).Err()
}

func (s *redisSessions) Lookup(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	v, err := s.rdb.Get(ctx, redisKeySession(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrSessionNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("redis get session: %w", err)
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, ErrSessionNotFound
	}
	return id, nil
}

func (s *redisSessions) Extend(ctx context.Context, sessionID uuid.UUID, ttl time.Duration) error {
	return s.rdb.Expire(ctx, redisKeySession(sessionID), ttl).Err()
}

func (s *redisSessions) Delete(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	n, err := s.rdb.Del(ctx, redisKeySession(sessionID)).Result()
	return n > 0, err
}

func (s *redisSessions) Failures(ctx context.Context, login string) (int, error) {
	n, err := s.rdb.Get(ctx, redisKeyFailures(login)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *redisSessions) RecordFailure(ctx context.Context, login string, ttl time.Duration) (int, error) {
	key := redisKeyFailures(login)
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return int(n), err
		}
	}
	return int(n), nil
}

func (s *redisSessions) ResetFailures(ctx context.Context, login string) error {
	return s.rdb.Del(ctx, redisKeyFailures(login)).Err()
}
