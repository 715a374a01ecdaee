package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/config"
)

const redisPingTimeout = 3 * time.Second

// Redis is the shared client for the ticket store, the log streams and the
// alert channel. Every key it hands out carries Prefix.
type Redis struct {
	Client *redis.Client
	Prefix string
}

// NewRedis builds the client and pings it once. The client is returned even
// when the ping fails so callers can decide whether Redis is mandatory.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  redisPingTimeout,
		ReadTimeout:  redisPingTimeout,
		WriteTimeout: redisPingTimeout,
	})
	r := &Redis{Client: client, Prefix: cfg.KeyPrefix}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		logger.Warn("unable to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
		return r, err
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.String("prefix", cfg.KeyPrefix))
	return r, nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// Key joins parts under the configured prefix with ':'.
func (r *Redis) Key(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if r.Prefix != "" {
		all = append(all, r.Prefix)
	}
	all = append(all, parts...)
	return strings.Join(all, ":")
}
