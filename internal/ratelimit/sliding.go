package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SlidingWindow limits events over a rolling window using one Redis sorted
// set per key. Rejected attempts are removed again so they do not extend the
// caller's penalty.
type SlidingWindow struct {
	Client redis.UniversalClient
	Prefix string
	Now    func() time.Time
}

var _ Allower = SlidingWindow{}

// Allow implements Allower.
func (s SlidingWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	if s.Client == nil || max <= 0 || window <= 0 {
		return unlimited(now, window, max), nil
	}

	redisKey := s.Prefix + key
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := s.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Limit: max, Reset: now.Add(window)}, fmt.Errorf("ratelimit: sliding window: %w", err)
	}

	reset := now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		reset = time.Unix(0, int64(oldest[0].Score)).Add(window)
	}
	used := int(countCmd.Val())
	if used > max {
		if err := s.Client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return Decision{Limit: max, Reset: reset}, fmt.Errorf("ratelimit: sliding window: %w", err)
		}
		return Decision{Allowed: false, Limit: max, Remaining: 0, Reset: reset}, nil
	}
	return Decision{Allowed: true, Limit: max, Remaining: max - used, Reset: reset}, nil
}
