// Package server runs the dashboard process: startup hooks, the HTTP
// server, and ordered shutdown of everything that holds a connection.
package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinScreen/pkg/config"
	xhttp "FinScreen/pkg/http"
	applogger "FinScreen/pkg/logger"
)

// StartupFunc runs once before the HTTP server starts.
type StartupFunc func(ctx context.Context) error

type startHook struct {
	name string
	fn   StartupFunc
}

type closeHook struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	starts      []startHook
	closers     []closeHook
	health      []xhttp.ServerOption
}

// New creates a new App instance.
func New(cfg *config.Config, l *applogger.Logger, h xhttp.Handler) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, log: l.With(applogger.String("component", "app")), httpHandler: h}
}

// OnStart registers a startup hook. A failing hook is logged and does not
// stop the process: the dashboard has to come up even when the backend is
// down.
func (a *App) OnStart(name string, fn StartupFunc) {
	a.starts = append(a.starts, startHook{name: name, fn: fn})
}

// OnClose registers a resource closed on shutdown, in registration order,
// after the HTTP server has stopped.
func (a *App) OnClose(name string, c io.Closer) {
	a.closers = append(a.closers, closeHook{name: name, c: c})
}

// OnHealth adds a dependency check to GET /healthz.
func (a *App) OnHealth(name string, check xhttp.HealthCheck) {
	a.health = append(a.health, xhttp.WithHealthCheck(name, check))
}

// Start runs the startup hooks and starts the HTTP server.
func (a *App) Start(ctx context.Context) error {
	for _, h := range a.starts {
		hctx, cancel := context.WithTimeout(ctx, a.cfg.Backend.Timeout)
		err := h.fn(hctx)
		cancel()
		if err != nil {
			a.log.Warn("startup step failed", applogger.String("step", h.name), applogger.Error(err))
			continue
		}
		a.log.Debug("startup step done", applogger.String("step", h.name))
	}

	opts := append([]xhttp.ServerOption{
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(len(a.cfg.Server.CORSOrigins) > 0, a.cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(a.cfg.Metrics.Enabled),
		xhttp.WithServerLogger(a.log),
	}, a.health...)
	a.httpServer = xhttp.NewServer(a.httpHandler, opts...)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		a.closeAll()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Shutdown stops the HTTP server and closes the registered resources.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.shutdownTimeout())
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
		cancel()
	}
	errs = append(errs, a.closeAll()...)
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeAll() []error {
	var errs []error
	for _, h := range a.closers {
		if err := h.c.Close(); err != nil {
			a.log.Warn("close failed", applogger.String("resource", h.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errs
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
