package app

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/agbru/lookforge/internal/cli"
	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/pipeline"
	"github.com/agbru/lookforge/internal/progress"
)

// runGenerate runs one generation from the command line, rendering its
// progress on out.
func (a *Application) runGenerate(ctx context.Context, out io.Writer) int {
	svc, err := buildServices(ctx, a.Config, a.servicesOptions(a.logger()))
	if err != nil {
		return a.reportSetupError(err)
	}
	defer svc.Close(context.Background())

	ctx, cancelTimeout := context.WithTimeout(ctx, a.Config.Timeout)
	defer cancelTimeout()

	if !a.Config.Quiet {
		cli.PrintExecutionConfig(a.Config, out)
		cli.PrintProviders(svc.Registry.Statuses(), out)
	}

	start := time.Now()
	job, err := svc.Runner.Prepare(a.Config.Job())
	if err != nil {
		return cli.HandleError(err, time.Since(start), out)
	}

	outcome, err := a.runWithProgress(ctx, svc, job, out)
	duration := time.Since(start)
	if err != nil {
		return cli.HandleError(err, duration, out)
	}

	var view progress.View
	if session, ok := svc.Tracker.GetProgress(job.SessionID); ok {
		view = session.View()
	}
	outputCfg := cli.OutputConfig{OutputFile: a.Config.OutputFile, Quiet: a.Config.Quiet}
	if err := cli.DisplayOutcomeWithConfig(out, outcome, view, outputCfg); err != nil {
		a.logger().Error("saving outcome", err)
		return apperrors.ExitErrorGeneric
	}
	return apperrors.ExitSuccess
}

// runWithProgress runs job while a spinner follows its session on the bus.
func (a *Application) runWithProgress(ctx context.Context, svc *services, job pipeline.Job, out io.Writer) (pipeline.Outcome, error) {
	if a.Config.Quiet {
		return svc.Runner.Run(ctx, job)
	}
	snaps, unsubscribe, err := svc.Bus.Subscribe(ctx, job.SessionID)
	if err != nil {
		return svc.Runner.Run(ctx, job)
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go cli.DisplayProgress(&wg, snaps, out)

	outcome, runErr := svc.Runner.Run(ctx, job)
	unsubscribe()
	wg.Wait()
	return outcome, runErr
}
