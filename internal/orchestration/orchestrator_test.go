package orchestration

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/logging"
	"github.com/agbru/lookforge/internal/provider"
	"github.com/agbru/lookforge/internal/provider/mocks"
)

// countingExecutor records how many times it was invoked.
type countingExecutor struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, req provider.Request) (provider.Result, error)
}

func (c *countingExecutor) Execute(ctx context.Context, req provider.Request) (provider.Result, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.fn(ctx, req)
}

func (c *countingExecutor) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func succeeds(text string) *countingExecutor {
	return &countingExecutor{fn: func(context.Context, provider.Request) (provider.Result, error) {
		return provider.Result{Text: text}, nil
	}}
}

func fails(msg string) *countingExecutor {
	return &countingExecutor{fn: func(context.Context, provider.Request) (provider.Result, error) {
		return provider.Result{}, errors.New(msg)
	}}
}

func descriptor(id string, priority int, exec provider.Executor) provider.Descriptor {
	return provider.Descriptor{ID: id, Name: id, Priority: priority, Kinds: []provider.Kind{provider.KindImage}, Executor: exec}
}

func newOrchestrator(t *testing.T, descs ...provider.Descriptor) *Orchestrator {
	t.Helper()
	reg, err := provider.NewRegistry(descs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return New(reg)
}

func imageRequest() provider.Request {
	return provider.Request{Kind: provider.KindImage, Prompt: "model wearing a red coat"}
}

// TestExecute_FallbackScenario checks the canonical scenario: A fails, B
// succeeds with "ok", and the attempt log holds one failure for A followed by
// a success for B.
func TestExecute_FallbackScenario(t *testing.T) {
	t.Parallel()
	a := fails("upstream 500")
	b := succeeds("ok")
	o := newOrchestrator(t, descriptor("A", 1, a), descriptor("B", 2, b))

	var log []AttemptRecord
	ctx := WithAttemptObserver(context.Background(), AttemptObserverFunc(func(_ context.Context, _ provider.Request, rec AttemptRecord) {
		log = append(log, rec)
	}))

	res, err := o.Execute(ctx, imageRequest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Text != "ok" || res.ProviderID != "B" {
		t.Errorf("expected ok from B, got %+v", res)
	}
	if len(log) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(log))
	}
	if log[0].ProviderID != "A" || log[0].Succeeded() {
		t.Errorf("first attempt should be a failure for A, got %+v", log[0])
	}
	if log[1].ProviderID != "B" || !log[1].Succeeded() {
		t.Errorf("second attempt should be a success for B, got %+v", log[1])
	}
}

func TestExecute_FirstSuccessStopsFallback(t *testing.T) {
	t.Parallel()
	first := succeeds("first")
	second := succeeds("second")
	third := fails("never called")
	o := newOrchestrator(t, descriptor("p1", 1, first), descriptor("p2", 2, second), descriptor("p3", 3, third))

	res, err := o.Execute(context.Background(), imageRequest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Text != "first" {
		t.Errorf("expected result of the highest priority provider, got %q", res.Text)
	}
	if first.Calls() != 1 || second.Calls() != 0 || third.Calls() != 0 {
		t.Errorf("call counts = %d/%d/%d, want 1/0/0", first.Calls(), second.Calls(), third.Calls())
	}
}

func TestExecute_AllProvidersFailed(t *testing.T) {
	t.Parallel()
	execs := []*countingExecutor{fails("timeout"), fails("401 unauthorized"), fails("quota exceeded")}
	o := newOrchestrator(t,
		descriptor("c", 3, execs[2]),
		descriptor("a", 1, execs[0]),
		descriptor("b", 2, execs[1]),
	)

	_, err := o.Execute(context.Background(), imageRequest())
	var failed apperrors.AllProvidersFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected AllProvidersFailedError, got %v", err)
	}
	if failed.Kind != "image" {
		t.Errorf("Kind = %q, want image", failed.Kind)
	}
	wantOrder := []string{"a", "b", "c"}
	wantMsg := []string{"timeout", "401 unauthorized", "quota exceeded"}
	if len(failed.Attempts) != len(wantOrder) {
		t.Fatalf("expected %d attempts, got %d", len(wantOrder), len(failed.Attempts))
	}
	for i, a := range failed.Attempts {
		if a.ProviderID != wantOrder[i] || a.Message != wantMsg[i] {
			t.Errorf("attempt %d = %+v, want %s: %s", i, a, wantOrder[i], wantMsg[i])
		}
	}
	for i, e := range execs {
		if e.Calls() != 1 {
			t.Errorf("provider %d called %d times, want exactly 1", i, e.Calls())
		}
	}
}

func TestExecute_NoProviderAvailable(t *testing.T) {
	t.Parallel()
	unavailable := succeeds("x")
	wrongKind := succeeds("y")
	rejected := succeeds("z")

	descs := []provider.Descriptor{
		{ID: "offline", Priority: 1, Kinds: []provider.Kind{provider.KindImage}, Executor: unavailable, Available: func() bool { return false }},
		{ID: "video-only", Priority: 1, Kinds: []provider.Kind{provider.KindVideo}, Executor: wrongKind},
		{ID: "square-only", Priority: 1, Kinds: []provider.Kind{provider.KindImage}, Executor: rejected,
			Supports: func(r provider.Request) bool { return r.AspectRatio == "1:1" }},
	}
	o := newOrchestrator(t, descs...)

	req := imageRequest()
	req.AspectRatio = "9:16"
	_, err := o.Execute(context.Background(), req)

	var none apperrors.NoProviderAvailableError
	if !errors.As(err, &none) {
		t.Fatalf("expected NoProviderAvailableError, got %v", err)
	}
	if unavailable.Calls()+wrongKind.Calls()+rejected.Calls() != 0 {
		t.Error("no executor may be invoked when there are no candidates")
	}
}

func TestExecute_EmptyRegistry(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)
	_, err := o.Execute(context.Background(), provider.Request{Kind: provider.KindAnalysis})
	var none apperrors.NoProviderAvailableError
	if !errors.As(err, &none) || none.Kind != "analysis" {
		t.Fatalf("expected NoProviderAvailableError for analysis, got %v", err)
	}
}

func TestExecute_AvailabilityReevaluatedPerCall(t *testing.T) {
	t.Parallel()
	online := true
	primary := succeeds("primary")
	backup := succeeds("backup")
	o := newOrchestrator(t,
		provider.Descriptor{ID: "primary", Priority: 1, Kinds: []provider.Kind{provider.KindImage}, Executor: primary, Available: func() bool { return online }},
		descriptor("backup", 2, backup),
	)

	res, _ := o.Execute(context.Background(), imageRequest())
	if res.ProviderID != "primary" {
		t.Fatalf("expected primary while online, got %s", res.ProviderID)
	}
	online = false
	res, _ = o.Execute(context.Background(), imageRequest())
	if res.ProviderID != "backup" {
		t.Fatalf("expected backup once primary is offline, got %s", res.ProviderID)
	}
	online = true
	res, _ = o.Execute(context.Background(), imageRequest())
	if res.ProviderID != "primary" {
		t.Fatalf("failures and outages must not be remembered across calls, got %s", res.ProviderID)
	}
}

func TestExecute_NoBlacklistAfterFailure(t *testing.T) {
	t.Parallel()
	flaky := &countingExecutor{}
	flaky.fn = func(context.Context, provider.Request) (provider.Result, error) {
		if flaky.calls == 1 {
			return provider.Result{}, errors.New("transient")
		}
		return provider.Result{Text: "recovered"}, nil
	}
	backup := succeeds("backup")
	o := newOrchestrator(t, descriptor("flaky", 1, flaky), descriptor("backup", 2, backup))

	if res, _ := o.Execute(context.Background(), imageRequest()); res.ProviderID != "backup" {
		t.Fatalf("first call should fall back, got %s", res.ProviderID)
	}
	if res, _ := o.Execute(context.Background(), imageRequest()); res.ProviderID != "flaky" {
		t.Fatalf("second call should try flaky again, got %s", res.ProviderID)
	}
}

func TestExecute_ProviderIDFromResultIsKept(t *testing.T) {
	t.Parallel()
	exec := provider.ExecutorFunc(func(context.Context, provider.Request) (provider.Result, error) {
		return provider.Result{ProviderID: "upstream-model"}, nil
	})
	o := newOrchestrator(t, descriptor("wrapper", 1, exec))
	res, err := o.Execute(context.Background(), imageRequest())
	if err != nil || res.ProviderID != "upstream-model" {
		t.Fatalf("expected provider id from result, got %+v, %v", res, err)
	}
}

func TestExecute_CancellationStopsFallback(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	first := &countingExecutor{fn: func(context.Context, provider.Request) (provider.Result, error) {
		cancel()
		return provider.Result{}, errors.New("interrupted")
	}}
	second := succeeds("unreached")
	o := newOrchestrator(t, descriptor("first", 1, first), descriptor("second", 2, second))

	_, err := o.Execute(ctx, imageRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !strings.Contains(err.Error(), "first: interrupted") {
		t.Errorf("error should summarize attempts made so far, got %q", err)
	}
	if second.Calls() != 0 {
		t.Error("no candidate may be invoked after cancellation")
	}
	if apperrors.ExitCodeFor(err) != apperrors.ExitErrorCanceled {
		t.Errorf("canceled fallback should map to the canceled exit code")
	}
}

func TestExecute_WithGoMock(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	primary := mocks.NewMockExecutor(ctrl)
	secondary := mocks.NewMockExecutor(ctrl)
	tertiary := mocks.NewMockExecutor(ctrl)

	req := imageRequest()
	gomock.InOrder(
		primary.EXPECT().Execute(gomock.Any(), req).Return(provider.Result{}, errors.New("503")),
		secondary.EXPECT().Execute(gomock.Any(), req).Return(provider.Result{Assets: []provider.Asset{{URL: "https://cdn.example.com/a.png"}}}, nil),
	)
	tertiary.EXPECT().Execute(gomock.Any(), gomock.Any()).Times(0)

	o := newOrchestrator(t, descriptor("primary", 1, primary), descriptor("secondary", 5, secondary), descriptor("tertiary", 9, tertiary))
	res, err := o.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ProviderID != "secondary" || len(res.Assets) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestExecute_ObserversAndLogging(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	var global, local []string
	o := New(mustRegistry(t, descriptor("A", 1, fails("boom")), descriptor("B", 2, succeeds("ok"))),
		WithLogger(logging.NewLogger(&buf, "orchestration")),
		WithObserver(AttemptObserverFunc(func(_ context.Context, _ provider.Request, rec AttemptRecord) {
			global = append(global, rec.ProviderID)
		})),
		WithObserver(nil),
	)
	ctx := WithAttemptObserver(context.Background(), AttemptObserverFunc(func(_ context.Context, _ provider.Request, rec AttemptRecord) {
		local = append(local, rec.ProviderID)
	}))

	if _, err := o.Execute(ctx, imageRequest()); err != nil {
		t.Fatal(err)
	}
	if strings.Join(global, ",") != "A,B" || strings.Join(local, ",") != "A,B" {
		t.Errorf("observers saw global=%v local=%v, want A,B for both", global, local)
	}
	if !strings.Contains(buf.String(), "falling back") || !strings.Contains(buf.String(), "boom") {
		t.Errorf("failed attempt should be logged, got %s", buf.String())
	}

	// A context without the per-call observer only notifies the global one.
	global = nil
	if _, err := o.Execute(context.Background(), imageRequest()); err != nil {
		t.Fatal(err)
	}
	if len(global) != 2 || len(local) != 2 {
		t.Errorf("per-call observer must not leak into other calls")
	}
}

func TestExecute_AttemptDurationUsesClock(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}
	o := New(mustRegistry(t, descriptor("A", 1, fails("x"))), WithClock(clock))
	_, err := o.Execute(context.Background(), imageRequest())
	var failed apperrors.AllProvidersFailedError
	if !errors.As(err, &failed) {
		t.Fatal(err)
	}
	if failed.Attempts[0].Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", failed.Attempts[0].Duration)
	}
}

func mustRegistry(t *testing.T, descs ...provider.Descriptor) *provider.Registry {
	t.Helper()
	reg, err := provider.NewRegistry(descs...)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}
