package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/delegate/config"
	"github.com/shashiranjanraj/delegate/pkg/database"
	"github.com/shashiranjanraj/delegate/pkg/deadletter"
	"github.com/shashiranjanraj/delegate/pkg/logger"
	"github.com/shashiranjanraj/delegate/pkg/remote"
)

// openTransport returns the transport named by REMOTE_TRANSPORT, or a
// WebSocket connection when url is set.
func openTransport(ctx context.Context, url string) (remote.Transport, error) {
	if url != "" {
		return remote.DialWebSocket(ctx, url)
	}

	switch config.RemoteTransport() {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr(),
			Password: config.RedisPassword(),
			DB:       0,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", config.RedisAddr(), err)
		}
		return &redisTransport{RedisTransport: remote.NewRedisTransport(rdb, config.RemoteQueueKey()), rdb: rdb}, nil
	default:
		logger.Warn("REMOTE_TRANSPORT=memory only reaches this process")
		return remote.NewMemoryTransport(0), nil
	}
}

// redisTransport owns its client, unlike remote.RedisTransport.
type redisTransport struct {
	*remote.RedisTransport
	rdb *redis.Client
}

func (t *redisTransport) Close() error {
	_ = t.RedisTransport.Close()
	return t.rdb.Close()
}

// openDeadLetter persists to the configured database, falling back to memory
// when it is unreachable.
func openDeadLetter() deadletter.Store {
	db, err := database.Connect()
	if err == nil {
		var store *deadletter.GormStore
		if store, err = deadletter.NewGormStore(db); err == nil {
			return store
		}
	}
	logger.Warn("dead letters kept in memory only", "driver", config.DatabaseDriver(), "error", err)
	return deadletter.NewMemoryStore(0)
}
