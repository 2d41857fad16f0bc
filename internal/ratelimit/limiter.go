package ratelimit

import (
	"context"
	"fmt"
	"time"

	limiter "github.com/ulule/limiter/v3"
)

// Limiter counts requests per key in fixed windows kept in a limiter store.
type Limiter struct {
	Store limiter.Store
}

// Allow registers an event for key and reports whether it is within max events per window.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error) {
	if l.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	inst := limiter.New(l.Store, limiter.Rate{Period: window, Limit: int64(max)})
	lc, err := inst.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), fmt.Errorf("rate limit %s: %w", key, err)
	}
	return !lc.Reached, int(lc.Remaining), time.Unix(lc.Reset, 0), nil
}
