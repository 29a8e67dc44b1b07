package peaexec

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/oriys/peapod/internal/pea"
)

// RedisConfigSource resolves redis://addr/key `uses` sources: the spec
// document is stored as a plain string value under key on the given
// Redis instance.
type RedisConfigSource struct {
	client *redis.Client
}

// NewRedisConfigSource connects to addr eagerly and pings immediately,
// so a misconfigured source fails at startup rather than on first use.
func NewRedisConfigSource(addr string) (*RedisConfigSource, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis config source connect %s: %w", addr, err)
	}
	return &RedisConfigSource{client: client}, nil
}

func (r *RedisConfigSource) Resolve(ctx context.Context, uses string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uses, "redis://")
	if !ok {
		return nil, fmt.Errorf("%w: not a redis:// source", pea.ErrConfigSourceBad)
	}
	_, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return nil, fmt.Errorf("%w: malformed redis uri %q", pea.ErrConfigSourceBad, uses)
	}

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: get redis key %q: %v", pea.ErrConfigSourceBad, key, err)
	}
	return data, nil
}
