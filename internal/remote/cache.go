package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-buku/internal/obs"
	"github.com/noah-isme/toko-buku/internal/pricing"
)

const membershipKeyPrefix = "pricing:membership:"

// CachedMembership keeps membership quotes in Redis for a short TTL. Redis
// errors are logged and the upstream is called as if the entry were missing.
type CachedMembership struct {
	next   pricing.MembershipPricer
	client redis.UniversalClient
	ttl    time.Duration
	logger zerolog.Logger
}

var _ pricing.MembershipPricer = (*CachedMembership)(nil)

// NewCachedMembership wraps next. A nil client or a non-positive ttl disables
// caching.
func NewCachedMembership(next pricing.MembershipPricer, client redis.UniversalClient, ttl time.Duration, logger zerolog.Logger) *CachedMembership {
	return &CachedMembership{next: next, client: client, ttl: ttl, logger: logger}
}

// CalculateForUser implements pricing.MembershipPricer.
func (c *CachedMembership) CalculateForUser(ctx context.Context, userID string, avgUnitPrice float64, quantity int) (pricing.MembershipQuote, error) {
	if c.client == nil || c.ttl <= 0 {
		return c.next.CalculateForUser(ctx, userID, avgUnitPrice, quantity)
	}
	key := membershipKey(userID, avgUnitPrice, quantity)
	logger := obs.LoggerFrom(ctx, c.logger)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var quote pricing.MembershipQuote
		if jsonErr := json.Unmarshal(data, &quote); jsonErr == nil {
			observeCache("hit")
			return quote, nil
		}
		observeCache("corrupt")
	case errors.Is(err, redis.Nil):
		observeCache("miss")
	default:
		observeCache("error")
		logger.Warn().Err(err).Str("key", key).Msg("membership_cache_get_failed")
	}

	quote, err := c.next.CalculateForUser(ctx, userID, avgUnitPrice, quantity)
	if err != nil {
		return pricing.MembershipQuote{}, err
	}
	if payload, err := json.Marshal(quote); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("membership_cache_set_failed")
		}
	}
	return quote, nil
}

func membershipKey(userID string, avgUnitPrice float64, quantity int) string {
	return fmt.Sprintf("%s%s:%s:%d", membershipKeyPrefix, userID, strconv.FormatFloat(avgUnitPrice, 'f', -1, 64), quantity)
}

func observeCache(result string) {
	if obs.MembershipCacheTotal != nil {
		obs.MembershipCacheTotal.WithLabelValues(result).Inc()
	}
}
