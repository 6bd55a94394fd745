package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow counts events per fixed period using ulule/limiter. Instances
// are cached per (window, max) pair because the library binds the rate to the
// limiter value.
type FixedWindow struct {
	store limiter.Store

	mu       sync.Mutex
	limiters map[string]*limiter.Limiter
}

var _ Allower = (*FixedWindow)(nil)

// NewFixedWindow builds a fixed window limiter on Redis, or on process memory
// when client is nil.
func NewFixedWindow(client *redis.Client, prefix string) (*FixedWindow, error) {
	opts := limiter.StoreOptions{
		Prefix:          prefix,
		MaxRetry:        limiter.DefaultMaxRetry,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	}
	var (
		store limiter.Store
		err   error
	)
	if client == nil {
		store = memory.NewStoreWithOptions(opts)
	} else {
		store, err = limiterredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, fmt.Errorf("ratelimit: redis store: %w", err)
		}
	}
	return &FixedWindow{store: store, limiters: make(map[string]*limiter.Limiter)}, nil
}

// Allow implements Allower.
func (f *FixedWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	if max <= 0 || window <= 0 {
		return unlimited(time.Now(), window, max), nil
	}
	res, err := f.limiterFor(window, max).Get(ctx, key)
	if err != nil {
		return Decision{Limit: max, Reset: time.Now().Add(window)}, fmt.Errorf("ratelimit: fixed window: %w", err)
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     int(res.Limit),
		Remaining: int(res.Remaining),
		Reset:     time.Unix(res.Reset, 0),
	}, nil
}

func (f *FixedWindow) limiterFor(window time.Duration, max int) *limiter.Limiter {
	id := fmt.Sprintf("%d/%s", max, window)
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.limiters[id]; ok {
		return l
	}
	l := limiter.New(f.store, limiter.Rate{Period: window, Limit: int64(max)})
	f.limiters[id] = l
	return l
}
