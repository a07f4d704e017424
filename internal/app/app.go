package app

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/agbru/lookforge/internal/config"
	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/logging"
	"github.com/agbru/lookforge/internal/tui"
	"github.com/agbru/lookforge/internal/ui"
)

// Application represents the lookforge application instance.
type Application struct {
	Config    config.AppConfig
	ErrWriter io.Writer
	// Getenv resolves provider credentials. Defaults to os.Getenv.
	Getenv func(string) string
	// HTTPClient is handed to the generic HTTP provider adapter.
	HTTPClient *http.Client
}

// AppOption configures an Application during construction.
type AppOption func(*Application)

// WithGetenv sets the credential lookup used when building providers.
func WithGetenv(fn func(string) string) AppOption {
	return func(a *Application) { a.Getenv = fn }
}

// WithHTTPClient sets the client used by HTTP provider adapters.
func WithHTTPClient(c *http.Client) AppOption {
	return func(a *Application) { a.HTTPClient = c }
}

// New creates a new Application instance by parsing command-line arguments.
func New(args []string, errWriter io.Writer, opts ...AppOption) (*Application, error) {
	app := &Application{ErrWriter: errWriter, Getenv: os.Getenv}
	for _, opt := range opts {
		opt(app)
	}

	programName := "lookforge"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter)
	if err != nil {
		return nil, err
	}
	app.Config = cfg
	return app, nil
}

// Run executes the application based on the configured mode.
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	zerolog.SetGlobalLevel(logging.ParseLevel(a.Config.LogLevel))
	ui.InitTheme(a.Config.NoColor)

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	switch {
	case a.Config.Serve:
		return a.runServe(ctx)
	case a.Config.TUI:
		return a.runTUI(ctx)
	}
	return a.runGenerate(ctx, out)
}

// logger returns the process logger. The dashboard owns the terminal, so it
// gets no log output.
func (a *Application) logger() logging.Logger {
	switch {
	case a.Config.TUI:
		return logging.Nop()
	case a.Config.Serve:
		return logging.NewLogger(a.ErrWriter, "lookforge")
	}
	return logging.NewConsoleLogger(a.ErrWriter, "lookforge", logging.ParseLevel(a.Config.LogLevel))
}

// runTUI launches the interactive studio dashboard.
func (a *Application) runTUI(ctx context.Context) int {
	svc, err := buildServices(ctx, a.Config, a.servicesOptions(logging.Nop()))
	if err != nil {
		return a.reportSetupError(err)
	}
	defer svc.Close(context.Background())

	ctx, cancelTimeout := context.WithTimeout(ctx, a.Config.Timeout)
	defer cancelTimeout()

	return tui.Run(ctx, tui.Deps{Runner: svc.Runner, Events: svc.Bus}, a.Config, Version)
}

func (a *Application) servicesOptions(logger logging.Logger) servicesOptions {
	return servicesOptions{Logger: logger, Getenv: a.Getenv, HTTPClient: a.HTTPClient}
}

// reportSetupError prints an error raised while building services and maps
// it to an exit code.
func (a *Application) reportSetupError(err error) int {
	a.logger().Error("startup failed", err)
	code := apperrors.ExitCodeFor(err)
	if code == apperrors.ExitErrorGeneric {
		return apperrors.ExitErrorConfig
	}
	return code
}

// IsHelpError checks if the error is a help flag error (--help was used).
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}

// ExitCodeForStartup maps an error returned by New to a process exit code.
func ExitCodeForStartup(err error) int {
	if err == nil {
		return apperrors.ExitSuccess
	}
	return apperrors.ExitErrorConfig
}
