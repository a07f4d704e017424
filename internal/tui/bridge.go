package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/orchestration"
	"github.com/agbru/lookforge/internal/pipeline"
	"github.com/agbru/lookforge/internal/progress"
	"github.com/agbru/lookforge/internal/provider"
	"github.com/agbru/lookforge/internal/pubsub"
)

// programRef is a shared reference to the tea.Program.
// Because bubbletea copies the model on every Update, we need a pointer
// that survives copies so the bridge goroutines can send messages.
type programRef struct {
	mu      sync.RWMutex
	program *tea.Program
}

// SetProgram sets the tea.Program reference (thread-safe).
func (r *programRef) SetProgram(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

// Send sends a message to the bubbletea program (thread-safe).
func (r *programRef) Send(msg tea.Msg) {
	r.mu.RLock()
	p := r.program
	r.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// attemptForwarder returns an observer sending every provider attempt to the
// dashboard.
func attemptForwarder(ref *programRef) orchestration.AttemptObserver {
	return orchestration.AttemptObserverFunc(func(_ context.Context, req provider.Request, rec orchestration.AttemptRecord) {
		ref.Send(AttemptMsg{ProviderID: rec.ProviderID, Kind: req.Kind, Err: rec.Err, Duration: rec.Duration})
	})
}

// forwardSnapshots relays the snapshots of one session until the channel
// closes or a terminal snapshot arrives.
func forwardSnapshots(ref *programRef, snaps <-chan progress.Snapshot) {
	for snap := range snaps {
		ref.Send(SnapshotMsg{Snapshot: snap})
		if snap.Status.Terminal() {
			return
		}
	}
}

// runGeneration prepares job, follows its session through events and runs it.
// Every intermediate state reaches the dashboard through ref; the returned
// message is the final one.
func runGeneration(ctx context.Context, ref *programRef, runner *pipeline.Runner, events pubsub.Subscriber, job pipeline.Job, gen uint64) tea.Msg {
	start := time.Now()
	job, err := runner.Prepare(job)
	if err != nil {
		ref.Send(ErrorMsg{Err: err, Duration: time.Since(start)})
		return GenerationCompleteMsg{ExitCode: apperrors.ExitCodeFor(err), Generation: gen}
	}
	ref.Send(SessionStartedMsg{SessionID: job.SessionID, TotalSegments: job.Segments(), Generation: gen})

	var follow sync.WaitGroup
	unsubscribe := func() {}
	if events != nil {
		snaps, cancel, err := events.Subscribe(ctx, job.SessionID)
		if err == nil {
			unsubscribe = cancel
			follow.Add(1)
			go func() {
				defer follow.Done()
				forwardSnapshots(ref, snaps)
			}()
		}
	}

	outcome, err := runner.Run(orchestration.WithAttemptObserver(ctx, attemptForwarder(ref)), job)
	// Closing the subscription still lets the follower drain what was buffered.
	unsubscribe()
	follow.Wait()
	if err != nil {
		ref.Send(ErrorMsg{Err: err, Duration: time.Since(start)})
		return GenerationCompleteMsg{ExitCode: apperrors.ExitCodeFor(err), Generation: gen}
	}
	ref.Send(OutcomeMsg{Outcome: outcome})
	return GenerationCompleteMsg{ExitCode: apperrors.ExitSuccess, Generation: gen}
}
