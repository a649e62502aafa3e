package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps session values in Redis under "<prefix>:<namespace>:<key>".
// Values never expire on the Redis side; the server decides token lifetime.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	namespace string
}

// RedisOptions configures NewRedisStore
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	Prefix    string
	Namespace string
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = "cpa"
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Addr, err)
	}

	return &RedisStore{client: client, prefix: opts.Prefix, namespace: opts.Namespace}, nil
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + ":" + s.namespace + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Namespaces lists the profiles that have at least one key under the prefix
func (s *RedisStore) Namespaces(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		rest := strings.TrimPrefix(iter.Val(), s.prefix+":")
		if ns, _, found := strings.Cut(rest, ":"); found {
			seen[ns] = true
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}

	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
