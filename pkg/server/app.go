package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinValue/pkg/config"
	xhttp "FinValue/pkg/http"
	applogger "FinValue/pkg/logger"
)

// Closer is a named resource released on shutdown, in reverse registration order.
type Closer struct {
	Name  string
	Close func() error
}

// Worker is a background job consumer started before the HTTP server and
// stopped after it.
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type namedWorker struct {
	name string
	w    Worker
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	workers    []namedWorker
	closers    []Closer
}

// New creates an App serving httpServer.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server) *App {
	return &App{cfg: cfg, log: log, httpServer: httpServer}
}

// AddWorker registers a background worker. Nil workers are ignored.
func (a *App) AddWorker(name string, w Worker) {
	if w != nil {
		a.workers = append(a.workers, namedWorker{name: name, w: w})
	}
}

// OnShutdown registers a resource to close after the servers stop.
func (a *App) OnShutdown(name string, fn func() error) {
	if fn != nil {
		a.closers = append(a.closers, Closer{Name: name, Close: fn})
	}
}

// Run starts the application and blocks until interrupted or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i, nw := range a.workers {
		if err := nw.w.Start(ctx); err != nil {
			a.log.Error("worker start error", applogger.String("worker", nw.name), applogger.Error(err))
			a.stopWorkers(a.workers[:i])
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		a.stopWorkers(a.workers)
		return err
	}
	a.log.Info("finvalue started",
		applogger.String("environment", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Int("workers", len(a.workers)),
		applogger.Bool("clickhouse", a.cfg.ClickHouse.Enabled),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then releases infrastructure.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.stopWorkersCtx(ctx, a.workers)

	// flush aggregated logs while the producer is still open
	a.log.RemoveCollector()
	a.closeAll()

	a.log.Info("shutdown complete")
	return nil
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}
}

func (a *App) stopWorkers(ws []namedWorker) {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	a.stopWorkersCtx(ctx, ws)
}

func (a *App) stopWorkersCtx(ctx context.Context, ws []namedWorker) {
	for i := len(ws) - 1; i >= 0; i-- {
		if err := ws[i].w.Stop(ctx); err != nil {
			a.log.Warn("worker stop error", applogger.String("worker", ws[i].name), applogger.Error(err))
		}
	}
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
