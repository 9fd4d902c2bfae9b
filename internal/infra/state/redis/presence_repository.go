// Package redisstate keeps advisory, non-durable room state in Redis.
package redisstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// presenceTTL bounds how long a counter can survive without a refresh, so a
// crashed instance cannot pin stale members forever. The periodic sweep task
// clears negative or expired drift.
const presenceTTL = 24 * time.Hour

// RedisPresenceRepository tracks how many live connections are subscribed to
// each room. The counters are display data only: authoritative membership is
// the in-memory hub index and is rebuilt from scratch on restart.
type RedisPresenceRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisPresenceRepository creates a RedisPresenceRepository instance.
func NewRedisPresenceRepository(client *redis.Client, keyPrefix string) *RedisPresenceRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisPresenceRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "chat:"
	}
	return &RedisPresenceRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisPresenceRepository) roomPresenceKey(roomCode string) string {
	return fmt.Sprintf("%sroom:%s:online", r.keyPrefix, roomCode)
}

func (r *RedisPresenceRepository) presenceIndexKey() string {
	return r.keyPrefix + "rooms:online"
}

// Incr records one more live member in a room.
func (r *RedisPresenceRepository) Incr(ctx context.Context, roomCode string) error {
	key := r.roomPresenceKey(roomCode)
	pipe := r.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, presenceTTL)
	pipe.SAdd(ctx, r.presenceIndexKey(), roomCode)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: incr presence for room %s: %w", roomCode, err)
	}
	return nil
}

// Decr records one fewer live member in a room. Never drops below zero.
func (r *RedisPresenceRepository) Decr(ctx context.Context, roomCode string) error {
	key := r.roomPresenceKey(roomCode)
	n, err := r.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: decr presence for room %s: %w", roomCode, err)
	}
	if n <= 0 {
		pipe := r.client.Pipeline()
		pipe.Del(ctx, key)
		pipe.SRem(ctx, r.presenceIndexKey(), roomCode)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis: clear presence for room %s: %w", roomCode, err)
		}
	}
	return nil
}

// Count returns the recorded number of live members in a room. A missing key
// counts as zero.
func (r *RedisPresenceRepository) Count(ctx context.Context, roomCode string) (int, error) {
	val, err := r.client.Get(ctx, r.roomPresenceKey(roomCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis: get presence for room %s: %w", roomCode, err)
	}
	count, parseErr := strconv.Atoi(val)
	if parseErr != nil {
		return 0, fmt.Errorf("redis: parse presence '%s' for room %s: %w", val, roomCode, parseErr)
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

// Sweep removes counters whose key has expired or decayed to a non-positive
// value, and prunes the room index accordingly. Returns how many entries were
// cleared.
func (r *RedisPresenceRepository) Sweep(ctx context.Context) (int, error) {
	codes, err := r.client.SMembers(ctx, r.presenceIndexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: list presence index: %w", err)
	}
	cleared := 0
	for _, code := range codes {
		count, err := r.Count(ctx, code)
		if err != nil {
			return cleared, err
		}
		if count <= 0 {
			pipe := r.client.Pipeline()
			pipe.Del(ctx, r.roomPresenceKey(code))
			pipe.SRem(ctx, r.presenceIndexKey(), code)
			if _, err := pipe.Exec(ctx); err != nil {
				return cleared, fmt.Errorf("redis: sweep presence for room %s: %w", code, err)
			}
			cleared++
		}
	}
	return cleared, nil
}
