package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// RedisConfig holds connection parameters for the Redis-backed KV.
type RedisConfig struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisKV implements KV via rueidis. Every key is stored under KeyPrefix.
type RedisKV struct {
	client rueidis.Client
	prefix string
}

// NewRedisKV connects to Redis.
func NewRedisKV(cfg RedisConfig) (*RedisKV, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &RedisKV{client: client, prefix: cfg.KeyPrefix}, nil
}

// NewRedisKVForTest wraps an existing client, typically a rueidis mock.
func NewRedisKVForTest(c rueidis.Client, prefix string) *RedisKV {
	return &RedisKV{client: c, prefix: prefix}
}

// Ping checks connectivity.
func (r *RedisKV) Ping(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (r *RedisKV) Close() {
	r.client.Close()
}

// Get retrieves a value by key.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := r.client.B().Get().Key(r.prefix + key).Build()
	data, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrNotFound
		}
		return nil, &Error{Op: OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value with an expiration.
func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = r.client.B().Set().Key(r.prefix + key).Value(string(value)).Ex(ttl).Build()
	} else {
		cmd = r.client.B().Set().Key(r.prefix + key).Value(string(value)).Build()
	}
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return &Error{Op: OpSet, Err: err}
	}
	return nil
}

// DeleteMatching scans for keys matching pattern and deletes them page by page.
func (r *RedisKV) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	deleted := 0
	for {
		cmd := r.client.B().Scan().Cursor(cursor).Match(r.prefix + pattern).Count(100).Build()
		res, err := r.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return deleted, &Error{Op: OpScan, Err: err}
		}
		if len(res.Elements) > 0 {
			del := r.client.B().Del().Key(res.Elements...).Build()
			n, err := r.client.Do(ctx, del).AsInt64()
			if err != nil {
				return deleted, &Error{Op: OpDelete, Err: err}
			}
			deleted += int(n)
		}
		cursor = res.Cursor
		if cursor == 0 {
			return deleted, nil
		}
	}
}
