package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Minute
	scanBatchSize   = 100
	pingTimeout     = 5 * time.Second
)

// jsonStore is the redis plumbing shared by the caches: values are JSON
// documents with a fixed TTL, grouped by key prefix for invalidation.
type jsonStore struct {
	client *redis.Client
	ttl    time.Duration
}

func newJSONStore(cfg config.CacheConfig, ttlSeconds int) (*jsonStore, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return &jsonStore{client: client, ttl: ttlOrDefault(ttlSeconds)}, nil
}

// load decodes the value at key into dst. A missing key reports false.
func (s *jsonStore) load(ctx context.Context, key string, dst any) (bool, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *jsonStore) store(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *jsonStore) remove(ctx context.Context, keys ...string) error {
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// removePrefix walks the keyspace with SCAN so large caches never block redis.
func (s *jsonStore) removePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := s.remove(ctx, keys...); err != nil {
				return err
			}
		}
		if cursor = next; cursor == 0 {
			return nil
		}
	}
}

func ttlOrDefault(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(seconds) * time.Second
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
