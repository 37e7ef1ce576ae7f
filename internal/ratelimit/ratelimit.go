// Package ratelimit provides a fixed-window request limiter for the one
// write endpoint the HTTP surface exposes (POST /api/create-lobby), backed
// by Redis when available and an in-process counter otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the limiter's Redis connection settings and rate policy.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool

	// Limit is the maximum number of requests allowed per Window.
	Limit int
	// Window is the fixed-window duration.
	Window time.Duration
}

// Limiter enforces a per-key fixed-window limit, backed by Redis when
// enabled and by an in-process map otherwise.
type Limiter struct {
	cfg    Config
	client *redis.Client

	mu    sync.Mutex
	local map[string]*localWindow
}

type localWindow struct {
	count   int
	resetAt time.Time
}

// New creates a Limiter. If cfg.Enabled is false, or the Redis ping fails,
// it falls back to an in-process limiter rather than failing startup —
// rate limiting is a defense-in-depth concern, not a hard dependency.
func New(cfg Config) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	l := &Limiter{cfg: cfg, local: make(map[string]*localWindow)}
	if !cfg.Enabled {
		return l
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return l
	}
	l.client = client
	return l
}

// Close releases the Redis connection, if any.
func (l *Limiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}

// Allow reports whether a request keyed by key (typically the remote
// address) is within the configured rate limit, incrementing its counter
// as a side effect.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.client != nil {
		return l.allowRedis(ctx, key)
	}
	return l.allowLocal(key), nil
}

func (l *Limiter) allowRedis(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: incr %s: %w", redisKey, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.cfg.Window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: expire %s: %w", redisKey, err)
		}
	}
	return count <= int64(l.cfg.Limit), nil
}

func (l *Limiter) allowLocal(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.local[key]
	if !ok || now.After(w.resetAt) {
		w = &localWindow{count: 0, resetAt: now.Add(l.cfg.Window)}
		l.local[key] = w
	}
	w.count++
	return w.count <= l.cfg.Limit
}
