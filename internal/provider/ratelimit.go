package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimited blocks each call until the provider's request budget allows it.
type rateLimited struct {
	next    Executor
	limiter *rate.Limiter
}

// RateLimited wraps next so that it is called at most perMinute times per
// minute, with a burst of one. A non-positive perMinute returns next unchanged.
func RateLimited(next Executor, perMinute int) Executor {
	if perMinute <= 0 {
		return next
	}
	return &rateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
	}
}

// Execute waits for a token and forwards the call. A wait aborted by the
// context is reported as the provider's failure.
func (r *rateLimited) Execute(ctx context.Context, req Request) (Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Execute(ctx, req)
}
