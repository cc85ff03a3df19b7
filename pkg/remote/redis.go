package remote

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list remote calls are pushed to when no key is given.
const DefaultRedisKey = "delegate:remote:calls"

// RedisTransport carries remote calls over a Redis list.
// Send uses LPUSH and Receive BRPOP, so each payload is consumed by exactly
// one receiver and order is preserved per list.
type RedisTransport struct {
	rdb    *redis.Client
	key    string
	block  time.Duration
	closed atomic.Bool
}

// NewRedisTransport creates a transport on key. Pass the client shared with
// the rest of the application; Close does not close it.
func NewRedisTransport(rdb *redis.Client, key string) *RedisTransport {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisTransport{rdb: rdb, key: key, block: 5 * time.Second}
}

// Key returns the list key.
func (t *RedisTransport) Key() string { return t.key }

func (t *RedisTransport) Send(ctx context.Context, payload []byte) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	if err := t.rdb.LPush(ctx, t.key, payload).Err(); err != nil {
		return fmt.Errorf("remote/redis: push: %w", err)
	}
	return nil
}

// Receive blocks in BRPOP slices of a few seconds so Close and ctx are
// observed promptly.
func (t *RedisTransport) Receive(ctx context.Context) ([]byte, error) {
	for {
		if t.closed.Load() {
			return nil, ErrTransportClosed
		}

		result, err := t.rdb.BRPop(ctx, t.block, t.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // BRPOP timed out with nothing queued
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("remote/redis: pop: %w", err)
		}
		if len(result) < 2 {
			continue
		}
		return []byte(result[1]), nil
	}
}

func (t *RedisTransport) Close() error {
	t.closed.Store(true)
	return nil
}
