package orchestration

import (
	"cmp"
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/logging"
	"github.com/agbru/lookforge/internal/provider"
)

const tracerName = "github.com/agbru/lookforge/internal/orchestration"

// Orchestrator executes requests against the registered providers with
// sequential fallback. It holds no per-call state and is safe for concurrent
// use; failures are never remembered across calls.
type Orchestrator struct {
	registry  *provider.Registry
	observers []AttemptObserver
	tracer    trace.Tracer
	logger    logging.Logger
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers a process-wide attempt observer.
func WithObserver(obs AttemptObserver) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithTracer replaces the tracer obtained from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// WithLogger sets the logger used for attempt diagnostics.
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock replaces time.Now for measuring attempt durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator over the given registry.
func New(registry *provider.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		tracer:   otel.Tracer(tracerName),
		logger:   logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SelectCandidates returns the providers that are currently available and
// capable of serving req, ordered by ascending priority. Providers with equal
// priority keep their registration order. An empty result is not an error.
func (o *Orchestrator) SelectCandidates(req provider.Request) []provider.Descriptor {
	all := o.registry.All()
	candidates := make([]provider.Descriptor, 0, len(all))
	for _, d := range all {
		if d.IsAvailable() && d.CanServe(req) {
			candidates = append(candidates, d)
		}
	}
	slices.SortStableFunc(candidates, func(a, b provider.Descriptor) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return candidates
}

// Execute runs req against each candidate in order until one succeeds.
//
// It returns the first successful result without invoking the remaining
// candidates. If there are no candidates it fails with
// apperrors.NoProviderAvailableError and invokes nothing. If every candidate
// fails it returns apperrors.AllProvidersFailedError listing each attempt in
// the order it was made. When ctx ends between attempts the loop stops and the
// context error is returned, wrapped with a summary of the attempts so far.
//
// Parameters:
//   - ctx: The context for cancellation, tracing and per-call observers.
//   - req: The unit of work to perform.
//
// Returns:
//   - provider.Result: The winning provider's result, with ProviderID set.
//   - error: nil on success, otherwise one of the errors described above.
func (o *Orchestrator) Execute(ctx context.Context, req provider.Request) (provider.Result, error) {
	ctx, span := o.tracer.Start(ctx, "orchestration.Execute",
		trace.WithAttributes(attribute.String("lookforge.request.kind", string(req.Kind))))
	defer span.End()

	candidates := o.SelectCandidates(req)
	span.SetAttributes(attribute.Int("lookforge.candidates", len(candidates)))
	if len(candidates) == 0 {
		err := apperrors.NoProviderAvailableError{Kind: string(req.Kind)}
		span.RecordError(err)
		span.SetStatus(codes.Error, "no provider available")
		o.logger.Info("no provider available", logging.String("kind", string(req.Kind)))
		return provider.Result{}, err
	}

	observers := append(slices.Clone(o.observers), observersFrom(ctx)...)
	attempts := make([]apperrors.Attempt, 0, len(candidates))

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "canceled")
			return provider.Result{}, apperrors.WrapError(err, "provider fallback stopped after %d attempts%s", len(attempts), summarize(attempts))
		}

		res, rec := o.attempt(ctx, candidate, req)
		for _, obs := range observers {
			obs.ObserveAttempt(ctx, req, rec)
		}

		if rec.Err == nil {
			if res.ProviderID == "" {
				res.ProviderID = candidate.ID
			}
			span.SetAttributes(attribute.String("lookforge.provider", candidate.ID), attribute.Int("lookforge.failed_attempts", len(attempts)))
			o.logger.Debug("provider succeeded",
				logging.String("provider", candidate.ID),
				logging.String("kind", string(req.Kind)),
				logging.Duration("duration", rec.Duration),
				logging.Int("failed_attempts", len(attempts)))
			return res, nil
		}

		attempts = append(attempts, apperrors.Attempt{
			ProviderID: candidate.ID,
			Message:    rec.Err.Error(),
			Duration:   rec.Duration,
		})
		o.logger.Info("provider attempt failed, falling back",
			logging.String("provider", candidate.ID),
			logging.String("kind", string(req.Kind)),
			logging.Duration("duration", rec.Duration),
			logging.Err(rec.Err))
	}

	err := apperrors.AllProvidersFailedError{Kind: string(req.Kind), Attempts: attempts}
	span.RecordError(err)
	span.SetStatus(codes.Error, "all providers failed")
	return provider.Result{}, err
}

// attempt invokes one provider inside its own span.
func (o *Orchestrator) attempt(ctx context.Context, d provider.Descriptor, req provider.Request) (provider.Result, AttemptRecord) {
	ctx, span := o.tracer.Start(ctx, "provider.Execute",
		trace.WithAttributes(
			attribute.String("lookforge.provider", d.ID),
			attribute.Int("lookforge.provider.priority", d.Priority),
		))
	defer span.End()

	start := o.now()
	res, err := d.Executor.Execute(ctx, req)
	rec := AttemptRecord{ProviderID: d.ID, Err: err, Duration: o.now().Sub(start)}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, rec
}

func summarize(attempts []apperrors.Attempt) string {
	if len(attempts) == 0 {
		return ""
	}
	return ": " + apperrors.AllProvidersFailedError{Attempts: attempts}.Summary()
}
