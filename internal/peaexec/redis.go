package peaexec

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/oriys/peapod/internal/pea"
)

func init() {
	pea.RegisterExecutor("redis-state", newRedisStateExecutor)
}

// RedisState is a reference Executor that accumulates per-request-type
// counts and the last-seen request body in memory, then flushes them to
// Redis on Save, using the same redis.NewClient + Ping-at-construction
// pattern as RedisConfigSource.
type RedisState struct {
	client *redis.Client
	key    string
	owner  *pea.Pea

	mu       sync.Mutex
	counts   map[string]int64
	lastSeen json.RawMessage
	dirty    bool
}

func newRedisStateExecutor(spec pea.ExecutorSpec) (pea.Executor, error) {
	addr, _ := spec.Config["addr"].(string)
	if addr == "" {
		addr = "localhost:6379"
	}
	key, _ := spec.Config["key"].(string)
	if key == "" {
		key = "pea:state"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis-state connect %s: %w", addr, err)
	}

	return &RedisState{
		client: client,
		key:    key,
		counts: make(map[string]int64),
	}, nil
}

func (r *RedisState) Attach(p *pea.Pea) { r.owner = p }

func (r *RedisState) Call(ctx context.Context, requestType string, req pea.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request for redis-state: %w", err)
	}

	r.mu.Lock()
	r.counts[requestType]++
	r.lastSeen = data
	r.dirty = true
	r.mu.Unlock()
	return nil
}

// Save flushes accumulated counts and the last-seen payload to Redis.
// Idempotent: writing the same snapshot twice produces the same Redis
// state, and a no-op Save (nothing dirty since the last flush) skips
// the round trip entirely.
func (r *RedisState) Save(ctx context.Context) error {
	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return nil
	}
	snapshot := struct {
		Counts   map[string]int64 `json:"counts"`
		LastSeen json.RawMessage  `json:"last_seen,omitempty"`
	}{Counts: r.counts, LastSeen: r.lastSeen}
	r.dirty = false
	r.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal redis-state snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("write redis-state snapshot: %w", err)
	}
	return nil
}

func (r *RedisState) Close(ctx context.Context) error {
	return r.client.Close()
}
