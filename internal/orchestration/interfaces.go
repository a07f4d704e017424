package orchestration

import (
	"context"
	"time"

	"github.com/agbru/lookforge/internal/provider"
)

// AttemptRecord is the outcome of invoking one provider for one request.
type AttemptRecord struct {
	// ProviderID identifies the provider that was invoked.
	ProviderID string
	// Err is nil when the attempt succeeded.
	Err error
	// Duration is the wall-clock time spent in the provider call.
	Duration time.Duration
}

// Succeeded reports whether the attempt returned a result.
func (r AttemptRecord) Succeeded() bool { return r.Err == nil }

// AttemptObserver is notified after every provider invocation, successful or
// not. Observers are called synchronously from the fallback loop and must
// return quickly.
//
// Implementations include the Prometheus collectors, which count attempts per
// provider and outcome, and the generation pipeline, which copies failures into
// the session's error list.
type AttemptObserver interface {
	ObserveAttempt(ctx context.Context, req provider.Request, rec AttemptRecord)
}

// AttemptObserverFunc is a function adapter that implements AttemptObserver.
type AttemptObserverFunc func(ctx context.Context, req provider.Request, rec AttemptRecord)

// ObserveAttempt calls the underlying function.
func (f AttemptObserverFunc) ObserveAttempt(ctx context.Context, req provider.Request, rec AttemptRecord) {
	f(ctx, req, rec)
}

// observerKey carries per-call observers through a context.
type observerKey struct{}

// WithAttemptObserver returns a context whose Execute calls additionally
// notify obs. It lets a caller watch the attempts of one specific request
// without registering a process-wide observer.
func WithAttemptObserver(ctx context.Context, obs AttemptObserver) context.Context {
	existing, _ := ctx.Value(observerKey{}).([]AttemptObserver)
	chain := make([]AttemptObserver, 0, len(existing)+1)
	chain = append(chain, existing...)
	chain = append(chain, obs)
	return context.WithValue(ctx, observerKey{}, chain)
}

func observersFrom(ctx context.Context) []AttemptObserver {
	obs, _ := ctx.Value(observerKey{}).([]AttemptObserver)
	return obs
}
