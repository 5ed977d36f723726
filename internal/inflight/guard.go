// Package inflight refuses a second run of an operation while the first is outstanding.
package inflight

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var ErrBusy = errors.New("inflight_busy")

// Guard hands out exclusive holds on keys. Acquire never waits: a held key fails with ErrBusy.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryGuard holds keys in process memory.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, errors.New("inflight key is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[key]; ok {
		return nil, ErrBusy
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// RedisGuard holds keys in Redis so that every replica sees the same holds.
// A live hold is extended every ttl/3 until released, so a slow save keeps it.
// A hold whose process died expires after ttl.
type RedisGuard struct {
	client *redis.Client
	script *redis.Script
	extend *redis.Script
	ttl    time.Duration
	prefix string
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGuard{
		client: client,
		script: redis.NewScript(releaseScript),
		extend: redis.NewScript(extendScript),
		ttl:    ttl,
		prefix: "costbook:inflight:",
	}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	if g == nil || g.client == nil {
		return nil, errors.New("inflight redis client not configured")
	}
	if key == "" {
		return nil, errors.New("inflight key is empty")
	}

	redisKey := g.prefix + key
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, redisKey, token, g.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBusy
	}

	stop := keepAlive(g.ttl/3, func(ctx context.Context) error {
		return g.extend.Run(ctx, g.client, []string{redisKey}, token, g.ttl.Milliseconds()).Err()
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			// Released on a fresh context: the caller's may already be done.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = g.script.Run(releaseCtx, g.client, []string{redisKey}, token).Err()
		})
	}, nil
}

// keepAlive calls extend every interval until the returned stop is called.
// stop waits for an extend in progress to return.
func keepAlive(interval time.Duration, extend func(ctx context.Context) error) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = extend(ctx)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
