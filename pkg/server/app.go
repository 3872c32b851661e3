package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	pkgch "BarPulse/pkg/clickhouse"
	"BarPulse/pkg/config"
	xhttp "BarPulse/pkg/http"
	applogger "BarPulse/pkg/logger"
)

// App owns the process lifecycle: start the HTTP server, wait for a signal,
// drain and close everything in reverse order.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	chClient   *pkgch.Client
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, chClient *pkgch.Client) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		chClient:   chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.httpServer.Start(); err != nil {
		return err
	}
	a.l.Info("serving",
		applogger.String("environment", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("metrics_path", a.cfg.Metrics.Path))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	a.l.Info("shutting down", applogger.String("signal", s.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Error("clickhouse close", applogger.Error(err))
		}
	}

	a.l.Info("stopped")
	return nil
}
