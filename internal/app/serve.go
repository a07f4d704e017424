package app

import (
	"context"

	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/logging"
	"github.com/agbru/lookforge/internal/server"
	"github.com/agbru/lookforge/internal/sysmon"
)

// runServe starts the HTTP API and blocks until ctx is cancelled.
func (a *Application) runServe(ctx context.Context) int {
	logger := a.logger()
	svc, err := buildServices(ctx, a.Config, a.servicesOptions(logger))
	if err != nil {
		return a.reportSetupError(err)
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			logger.Error("closing backends", err)
		}
	}()

	srv := server.New(a.serverConfig(), server.Dependencies{
		Runner:    svc.Runner,
		Analyzer:  svc.Orchestrator,
		Tracker:   svc.Tracker,
		Registry:  svc.Registry,
		Events:    svc.Events,
		CrossNode: svc.CrossNode,
		Assets:    svc.Assets,
		Metrics:   svc.Metrics,
		Logger:    logger,
		Health:    svc.Health,
	})

	logger.Info("starting lookforge",
		logging.String("version", Version),
		logging.String("addr", a.Config.Addr),
		logging.String("host", sysmon.Sample(ctx).String()))
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", err)
		return apperrors.ExitErrorGeneric
	}
	logger.Info("server stopped")
	return apperrors.ExitSuccess
}

func (a *Application) serverConfig() server.Config {
	security := server.DefaultSecurityConfig()
	if len(a.Config.AllowedOrigins) > 0 {
		security.AllowedOrigins = a.Config.AllowedOrigins
	}
	return server.Config{
		Addr:            a.Config.Addr,
		Security:        security,
		ShutdownTimeout: a.Config.ShutdownTimeout,
		JobTimeout:      a.Config.Timeout,
	}
}
