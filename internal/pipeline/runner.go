package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agbru/lookforge/internal/artifacts"
	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/logging"
	"github.com/agbru/lookforge/internal/orchestration"
	"github.com/agbru/lookforge/internal/progress"
	"github.com/agbru/lookforge/internal/provider"
	"github.com/agbru/lookforge/internal/store"
)

// Executor runs one request against the provider pool. *orchestration.Orchestrator
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, req provider.Request) (provider.Result, error)
}

// Step reports which provider served one phase and how long it took.
type Step struct {
	Phase      string        `json:"phase"`
	ProviderID string        `json:"providerId,omitempty"`
	Duration   time.Duration `json:"durationNs"`
}

// Outcome is the result of a successful run.
type Outcome struct {
	SessionID         string        `json:"sessionId"`
	CharacterAnalysis string        `json:"characterAnalysis"`
	ProductAnalysis   string        `json:"productAnalysis"`
	Prompt            string        `json:"prompt"`
	Steps             []Step        `json:"steps"`
	Assets            []store.Asset `json:"assets"`
}

// Runner drives a Job through analysis, generation and persistence while
// reporting progress to a Tracker.
type Runner struct {
	exec    Executor
	tracker *progress.Tracker
	blobs   artifacts.Store
	assets  store.AssetStore
	logger  logging.Logger
	newID   func() string
	now     func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithBlobStore copies inline asset bytes into s before they are recorded.
func WithBlobStore(s artifacts.Store) Option {
	return func(r *Runner) { r.blobs = s }
}

// WithAssetStore records every generated asset in s.
func WithAssetStore(s store.AssetStore) Option {
	return func(r *Runner) { r.assets = s }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIDGenerator replaces uuid generation for session and asset ids.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) { r.newID = fn }
}

// WithClock sets the time source for asset timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner.
func NewRunner(exec Executor, tracker *progress.Tracker, opts ...Option) *Runner {
	r := &Runner{
		exec:    exec,
		tracker: tracker,
		logger:  logging.Nop(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prepare validates job, fills in its session id and initializes the session.
// It lets callers hand the id back before Run starts.
func (r *Runner) Prepare(job Job) (Job, error) {
	if err := job.Validate(); err != nil {
		return job, err
	}
	if job.SessionID == "" {
		job.SessionID = r.newID()
	}
	if job.Output == "" {
		job.Output = OutputImage
	}
	r.tracker.InitSession(job.SessionID, progress.Config{TotalSegments: job.Segments()})
	return job, nil
}

// Run executes job end to end, preparing it first unless Prepare already
// initialized a live session for it. A session that already finished is
// started again. The session is completed on success and failed on any error.
// Errors from the orchestrator are returned unchanged.
func (r *Runner) Run(ctx context.Context, job Job) (Outcome, error) {
	if sess, ok := r.tracker.GetProgress(job.SessionID); !ok || sess.Finished() {
		var err error
		if job, err = r.Prepare(job); err != nil {
			return Outcome{}, err
		}
	}
	run := &run{Runner: r, job: job, out: Outcome{SessionID: job.SessionID}}
	ctx = orchestration.WithAttemptObserver(ctx, orchestration.AttemptObserverFunc(run.observe))

	if err := run.execute(ctx); err != nil {
		// Failed attempts of an exhausted fallback are already recorded by observe.
		var allFailed apperrors.AllProvidersFailedError
		if !errors.As(err, &allFailed) {
			r.tracker.RecordError(job.SessionID, run.phase, err)
		}
		r.tracker.FailSession(job.SessionID, err)
		r.logger.Error("generation failed", err, logging.String("session", job.SessionID), logging.String("phase", run.phase))
		return Outcome{}, err
	}
	r.tracker.CompleteSession(job.SessionID)
	r.logger.Info("generation complete",
		logging.String("session", job.SessionID),
		logging.Int("assets", len(run.out.Assets)))
	return run.out, nil
}

// run holds the state of one Run call. Steps execute sequentially on the
// calling goroutine.
type run struct {
	*Runner
	job   Job
	out   Outcome
	phase string

	image provider.Result
	video provider.Result
}

// observe records failed provider attempts against the current phase so the
// session shows fallback activity.
func (x *run) observe(_ context.Context, _ provider.Request, rec orchestration.AttemptRecord) {
	if rec.Succeeded() {
		return
	}
	x.tracker.RecordError(x.job.SessionID, x.phase, apperrors.ProviderError{ProviderID: rec.ProviderID, Cause: rec.Err})
}

func (x *run) execute(ctx context.Context) error {
	segment := 0
	next := func(phase, message string) {
		segment++
		x.phase = phase
		x.tracker.EmitProgress(x.job.SessionID, progress.Update{
			Status:  progress.StatusRunning,
			Segment: segment,
			Message: message,
			Phase:   phase,
		})
	}

	next(PhaseCharacter, "Analyzing character")
	res, err := x.call(ctx, PhaseCharacter, provider.Request{
		Kind:              provider.KindAnalysis,
		CharacterImageURL: x.job.CharacterImageURL,
		Style:             x.job.Style,
	})
	if err != nil {
		return err
	}
	x.out.CharacterAnalysis = res.Text

	next(PhaseProduct, "Analyzing product")
	res, err = x.call(ctx, PhaseProduct, provider.Request{
		Kind:            provider.KindAnalysis,
		ProductImageURL: x.job.ProductImageURL,
		Style:           x.job.Style,
	})
	if err != nil {
		return err
	}
	x.out.ProductAnalysis = res.Text

	next(PhaseImage, "Generating image")
	stop := x.tracker.TimePhase(x.job.SessionID, PhasePrompt)
	x.out.Prompt = ComposePrompt(x.out.CharacterAnalysis, x.out.ProductAnalysis, x.job.Style)
	stop()
	x.image, err = x.call(ctx, PhaseImage, provider.Request{
		Kind:              provider.KindImage,
		Prompt:            x.out.Prompt,
		CharacterImageURL: x.job.CharacterImageURL,
		ProductImageURL:   x.job.ProductImageURL,
		Style:             x.job.Style,
		AspectRatio:       x.job.AspectRatio,
	})
	if err != nil {
		return err
	}
	if len(x.image.Assets) == 0 {
		return fmt.Errorf("provider %s returned no image", x.image.ProviderID)
	}

	if x.job.Output == OutputVideo {
		next(PhaseVideo, "Generating video")
		source := x.image.Assets[0].URL
		if source == "" {
			return errors.New("generated image has no URL to animate")
		}
		seconds := x.job.VideoSeconds
		if seconds == 0 {
			seconds = DefaultVideoSeconds
		}
		x.video, err = x.call(ctx, PhaseVideo, provider.Request{
			Kind:            provider.KindVideo,
			Prompt:          VideoPrompt(x.job.Style),
			SourceImageURL:  source,
			Style:           x.job.Style,
			AspectRatio:     x.job.AspectRatio,
			DurationSeconds: seconds,
		})
		if err != nil {
			return err
		}
		if len(x.video.Assets) == 0 {
			return fmt.Errorf("provider %s returned no video", x.video.ProviderID)
		}
	}

	next(PhasePersist, "Saving results")
	stop = x.tracker.TimePhase(x.job.SessionID, PhasePersist)
	defer stop()
	if err := x.persist(ctx, provider.KindImage, x.image, x.out.Prompt); err != nil {
		return err
	}
	if x.job.Output == OutputVideo {
		if err := x.persist(ctx, provider.KindVideo, x.video, VideoPrompt(x.job.Style)); err != nil {
			return err
		}
	}
	return nil
}

// call runs one provider request and records its phase timing and step.
func (x *run) call(ctx context.Context, phase string, req provider.Request) (provider.Result, error) {
	start := x.now()
	stop := x.tracker.TimePhase(x.job.SessionID, phase)
	res, err := x.exec.Execute(ctx, req)
	stop()
	if err != nil {
		return provider.Result{}, err
	}
	x.out.Steps = append(x.out.Steps, Step{Phase: phase, ProviderID: res.ProviderID, Duration: x.now().Sub(start)})
	return res, nil
}

func (x *run) persist(ctx context.Context, kind provider.Kind, res provider.Result, prompt string) error {
	for _, a := range res.Assets {
		rec := store.Asset{
			ID:         x.newID(),
			SessionID:  x.job.SessionID,
			Kind:       kind,
			ProviderID: res.ProviderID,
			URL:        a.URL,
			MIMEType:   a.MIMEType,
			Prompt:     prompt,
			Style:      x.job.Style,
			CreatedAt:  x.now(),
		}
		if len(a.Data) > 0 {
			if x.blobs == nil {
				return fmt.Errorf("provider %s returned inline %s data but no blob store is configured", res.ProviderID, kind)
			}
			ref, err := x.blobs.Put(ctx, a.Data, a.MIMEType)
			if err != nil {
				return apperrors.WrapError(err, "store %s blob", kind)
			}
			rec.Digest = ref.Digest
			rec.Location = ref.Location
			rec.Size = ref.Size
		}
		if x.assets != nil {
			if err := x.assets.SaveAsset(ctx, rec); err != nil {
				return apperrors.WrapError(err, "record %s asset", kind)
			}
		}
		x.out.Assets = append(x.out.Assets, rec)
	}
	return nil
}
