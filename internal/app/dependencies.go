package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-buku/internal/auth"
	"github.com/noah-isme/toko-buku/internal/config"
	"github.com/noah-isme/toko-buku/internal/health"
	"github.com/noah-isme/toko-buku/internal/pricing"
	"github.com/noah-isme/toko-buku/internal/ratelimit"
	"github.com/noah-isme/toko-buku/internal/remote"
	"github.com/noah-isme/toko-buku/internal/resilience"
)

// Dependencies enumerates the collaborators the HTTP surface is built from.
type Dependencies struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Redis    *redis.Client
	Engine   *pricing.Engine
	Verifier *auth.Verifier
	Limiter  ratelimit.Allower
	Probes   []health.Probe

	// Metrics mounts /metrics and the HTTP collectors.
	Metrics          bool
	MetricsNamespace string
	MetricsBuckets   []float64
	Tracing          bool
}

// Option adjusts how Build assembles the dependencies.
type Option func(*buildOptions)

type buildOptions struct {
	now func() time.Time
}

// WithClock pins the engine's clock, which decides whether the seasonal
// promotion is active.
func WithClock(now func() time.Time) Option {
	return func(o *buildOptions) {
		o.now = now
	}
}

// Build assembles the pricing engine and its supporting pieces from cfg. rdb
// may be nil when Redis is not configured.
func Build(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger, opts ...Option) (Dependencies, error) {
	deps := Dependencies{Config: cfg, Logger: logger, Redis: rdb}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	mode, err := pricing.ParseMode(cfg.Pricing.Mode)
	if err != nil {
		return deps, err
	}
	engineCfg := pricing.EngineConfig{
		Mode:     mode,
		Now:      o.now,
		Location: cfg.Location(),
		Logger:   logger,
	}
	if mode == pricing.ModeAPI {
		membershipBreaker := newBreaker(cfg.Outbound, remote.MembershipTarget, logger)
		discountBreaker := newBreaker(cfg.Outbound, remote.DiscountTarget, logger)

		membership, err := remote.NewMembershipClient(cfg.Pricing.MembershipURL, remoteOptions(cfg.Outbound, membershipBreaker))
		if err != nil {
			return deps, err
		}
		discounts, err := remote.NewDiscountClient(cfg.Pricing.DiscountURL, remoteOptions(cfg.Outbound, discountBreaker))
		if err != nil {
			return deps, err
		}
		engineCfg.Discounts = discounts
		engineCfg.Membership = membership
		if rdb != nil {
			engineCfg.Membership = remote.NewCachedMembership(membership, rdb, cfg.Pricing.MembershipCacheTTL, logger)
		}
		deps.Probes = append(deps.Probes, breakerProbe(remote.MembershipTarget, membershipBreaker), breakerProbe(remote.DiscountTarget, discountBreaker))
	}
	engine, err := pricing.NewEngine(engineCfg)
	if err != nil {
		return deps, err
	}
	deps.Engine = engine

	if rdb != nil {
		deps.Probes = append([]health.Probe{{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		}}, deps.Probes...)
	}

	if strings.TrimSpace(cfg.JWTSecret) != "" {
		verifier, err := auth.NewVerifier(auth.VerifierConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		})
		if err != nil {
			return deps, err
		}
		deps.Verifier = verifier
	} else {
		logger.Warn().Msg("JWT_SECRET not set; every quote is priced anonymously")
	}

	limiter, err := NewLimiter(cfg.RateLimit, rdb)
	if err != nil {
		return deps, err
	}
	deps.Limiter = limiter
	return deps, nil
}

// NewLimiter picks the rate limiting strategy. The sliding window needs Redis;
// without it the fixed window falls back to process memory.
func NewLimiter(cfg config.RateLimitConfig, rdb *redis.Client) (ratelimit.Allower, error) {
	switch cfg.Strategy {
	case "off":
		return nil, nil
	case "sliding":
		if rdb != nil {
			return ratelimit.SlidingWindow{Client: rdb, Prefix: "ratelimit:quote:"}, nil
		}
		return ratelimit.NewFixedWindow(nil, "ratelimit:quote")
	case "fixed", "":
		return ratelimit.NewFixedWindow(rdb, "ratelimit:quote")
	default:
		return nil, fmt.Errorf("app: unknown rate limit strategy %q", cfg.Strategy)
	}
}

func newBreaker(cfg config.OutboundConfig, target string, logger zerolog.Logger) *resilience.Breaker {
	return resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).
		WithTarget(target).
		WithLogger(logger)
}

func remoteOptions(cfg config.OutboundConfig, breaker *resilience.Breaker) remote.Options {
	return remote.Options{
		Timeout:     cfg.Timeout,
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseBackoff: cfg.RetryBase,
		Jitter:      cfg.RetryJitterPercent,
		Breaker:     breaker,
	}
}

// breakerProbe reports an open circuit. Quotes still succeed while a breaker is
// open, so the probe is advisory.
func breakerProbe(target string, b *resilience.Breaker) health.Probe {
	return health.Probe{
		Name:     target,
		Advisory: true,
		Check: func(context.Context) error {
			if b.State() == resilience.Open {
				return errors.New("circuit open")
			}
			return nil
		},
	}
}
