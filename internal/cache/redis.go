package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed recognition cache and token denylist
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at url (redis://[:password@]host:port/db)
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// GetEmployee returns the cached employee ID for a frame hash
func (r *Redis) GetEmployee(ctx context.Context, hash string) (int64, bool, error) {
	val, err := r.client.Get(ctx, frameKeyPrefix+hash).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get cached frame: %w", err)
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Unparseable entries are treated as misses and dropped.
		r.client.Del(ctx, frameKeyPrefix+hash)
		return 0, false, nil
	}
	return id, true, nil
}

// SetEmployee caches the employee ID for a frame hash
func (r *Redis) SetEmployee(ctx context.Context, hash string, employeeID int64, ttl time.Duration) error {
	if err := r.client.Set(ctx, frameKeyPrefix+hash, strconv.FormatInt(employeeID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("cache frame: %w", err)
	}
	return nil
}

// Revoke marks a token ID as revoked for ttl
func (r *Redis) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether a token ID is revoked
func (r *Redis) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// Ping checks the connection
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client
func (r *Redis) Close() error {
	return r.client.Close()
}
