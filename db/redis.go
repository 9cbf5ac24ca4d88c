package db

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gameVerifyServer/config"

	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to redisURL, which is either host:port or a redis:// URL.
func OpenRedis(ctx context.Context, redisURL, password string, db int) (*redis.Client, error) {
	log.Println("🔌 Connecting to Redis...")

	opts := &redis.Options{
		Addr:         redisURL,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	}
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		if password != "" {
			parsed.Password = password
		}
		opts = parsed
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("✅ Redis connected successfully - Addr: %s", opts.Addr)
	return client, nil
}

/* =========================
   RAPID DUPLICATE WINDOW (Sorted Set)
   Redis Key: verify:dupwindow:{fingerprint} -> ZSET{submitter:nanos -> unix ms}
========================= */

// RedisWindow counts non-self duplicates of a fingerprint inside a trailing
// window, shared by every server instance that uses the same Redis.
type RedisWindow struct {
	client *redis.Client
	window time.Duration
}

// NewRedisWindow creates a sliding window of the given length.
func NewRedisWindow(client *redis.Client, window time.Duration) *RedisWindow {
	return &RedisWindow{client: client, window: window}
}

// Observe adds rec to the window, evicts members older than the window and
// returns how many remain.
func (w *RedisWindow) Observe(ctx context.Context, rec DuplicateRecord) (int, error) {
	key := fmt.Sprintf(config.RedisDuplicateWindowKey, rec.Fingerprint)
	now := rec.SubmittedAt.UnixMilli()
	cutoff := now - w.window.Milliseconds()
	member := rec.SubmitterID + ":" + strconv.FormatInt(rec.SubmittedAt.UnixNano(), 10)

	pipe := w.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, w.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to update duplicate window: %w", err)
	}
	return int(card.Val()), nil
}

// HealthCheck performs a Redis health check
func (w *RedisWindow) HealthCheck(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (w *RedisWindow) Close() error {
	log.Println("🔌 Closing Redis connection...")
	return w.client.Close()
}
