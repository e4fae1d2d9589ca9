package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/depgraph/pkg/workspace"
)

const redisKeyPrefix = "depgraph:manifest:"

// RedisSource shares fetched manifests between processes through Redis.
// Redis failures are logged and the wrapped Source is used directly.
type RedisSource struct {
	next   Source
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

// NewRedisClient parses url, applies connection timeouts and pings the server
func NewRedisClient(ctx context.Context, url string, poolSize int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisSource wraps next with a Redis cache whose entries expire after ttl
func NewRedisSource(next Source, client *redis.Client, ttl time.Duration, log *logrus.Logger) *RedisSource {
	if log == nil {
		log = logrus.New()
	}
	return &RedisSource{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Fetch returns the cached manifest or fetches and stores it
func (s *RedisSource) Fetch(ctx context.Context, repo workspace.Repository) (*Manifest, error) {
	key := redisKeyPrefix + cacheKey(repo)

	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var m Manifest
		if jsonErr := json.Unmarshal(data, &m); jsonErr == nil {
			return &m, nil
		}
		s.log.Warnf("Dropping corrupt cached manifest %s", key)
		s.client.Del(ctx, key)
	case err != redis.Nil:
		s.log.Warnf("Redis get %s failed: %v", key, err)
	}

	m, err := s.next.Fetch(ctx, repo)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
		s.log.Warnf("Redis set %s failed: %v", key, err)
	}
	return m, nil
}

// Invalidate removes the cached manifest of a repository
func (s *RedisSource) Invalidate(ctx context.Context, repo workspace.Repository) error {
	return s.client.Del(ctx, redisKeyPrefix+cacheKey(repo)).Err()
}
