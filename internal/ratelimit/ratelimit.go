package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Allower decides whether one more event for key fits into the window.
type Allower interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error)
}

// unlimited is returned when no positive limit or window is configured.
func unlimited(now time.Time, window time.Duration, max int) Decision {
	return Decision{Allowed: true, Limit: max, Remaining: max, Reset: now.Add(window)}
}
