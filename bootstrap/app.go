// Package bootstrap runs a service's lifecycle: components start in
// registration order, configure callbacks wire handlers onto started
// infrastructure, hooks run around readiness, and everything stops in
// reverse on SIGINT/SIGTERM or when a one-shot task returns.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kbukum/hvacform/component"
	"github.com/kbukum/hvacform/logger"
)

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// App owns the components and hooks of one process. C is the config type.
//
//	app, err := bootstrap.NewApp(cfg)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    voicenote.NewHandler(manager).RegisterRoutes(api)
//	    return nil
//	})
//	app.Run(ctx)
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	gracefulTimeout time.Duration
	summaryOut      io.Writer
	onConfigure     []func(ctx context.Context, app *App[C]) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp validates cfg and sets up logging. With no WithLogger option the
// global logger is initialized from cfg's logging section.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	base := cfg.GetServiceConfig()
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(),
		Summary:         NewSummary(base.Name, base.Version),
		Logger:          o.logger,
		gracefulTimeout: 15 * time.Second,
		summaryOut:      os.Stdout,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.summaryOut != nil {
		app.summaryOut = o.summaryOut
	}
	if app.Logger == nil {
		logger.Init(base.Logging, base.Name)
		app.Logger = logger.GetGlobalLogger()
	}
	return app, nil
}

// RegisterComponent adds c to the registry. Components registered from a
// configure callback start on the next Components.StartAll.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure registers a callback that runs once infrastructure is up,
// before the ready check.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck fails when any component reports anything but healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var bad []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		entry := fmt.Sprintf("%s=%s", h.Name, h.Status)
		if h.Message != "" {
			entry += " (" + h.Message + ")"
		}
		bad = append(bad, entry)
	}
	if len(bad) > 0 {
		return fmt.Errorf("unhealthy components: %s", strings.Join(bad, ", "))
	}
	return nil
}

// Run starts the app and blocks until a shutdown signal or ctx is done,
// then stops it.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}
	a.Logger.Info("ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

// RunTask starts the app, runs task and stops the app when task returns.
// A shutdown signal cancels the task's context. The task's error wins
// over shutdown errors.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := signal.NotifyContext(ctx, shutdownSignals...)
	defer cancel()
	taskErr := task(taskCtx)
	if taskCtx.Err() != nil && ctx.Err() == nil {
		a.Logger.Info("task interrupted by signal")
	}

	if stopErr := a.stop(); taskErr == nil {
		return stopErr
	}
	return taskErr
}

type phase struct {
	name string
	run  func(ctx context.Context) error
}

func (a *App[C]) startup(ctx context.Context) error {
	started := time.Now()
	a.Logger.Info("starting", map[string]interface{}{"name": a.Name, "version": a.Version})

	phases := []phase{
		{"start components", a.Components.StartAll},
		{"start hooks", func(ctx context.Context) error { return runHooks(ctx, a.onStart) }},
		{"configure", a.configure},
		{"ready check", func(ctx context.Context) error {
			// Degraded components are reported, not fatal.
			if err := a.ReadyCheck(ctx); err != nil {
				a.Logger.Warn("ready check reported issues", map[string]interface{}{"error": err.Error()})
			}
			return nil
		}},
		{"ready hooks", func(ctx context.Context) error { return runHooks(ctx, a.onReady) }},
	}
	for _, p := range phases {
		a.Logger.Debug("startup phase", map[string]interface{}{"phase": p.name})
		if err := p.run(ctx); err != nil {
			a.abort()
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}

	a.Summary.SetStartupDuration(time.Since(started))
	a.DisplaySummary()
	return nil
}

func (a *App[C]) configure(ctx context.Context) error {
	for i, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return fmt.Errorf("callback %d: %w", i, err)
		}
	}
	return nil
}

// abort stops whatever started after a failed startup. OnStop hooks are
// skipped because OnReady never completed.
func (a *App[C]) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.WithError(err).Error("stopping components after failed startup")
	}
}

// DisplaySummary writes the startup summary with live component health.
func (a *App[C]) DisplaySummary() {
	a.Summary.Write(context.Background(), a.summaryOut, a.Components)
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx is done. It returns
// nil in the last case.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("shutdown signal received", map[string]interface{}{"signal": sig.String()})
		return sig
	case <-ctx.Done():
		return nil
	}
}

// Shutdown stops the app for callers managing their own lifecycle.
func (a *App[C]) Shutdown(context.Context) error {
	return a.stop()
}

// stop runs the OnStop hooks, then stops components in reverse order,
// all within the graceful timeout.
func (a *App[C]) stop() error {
	a.Logger.Info("shutting down", map[string]interface{}{"timeout": a.gracefulTimeout.String()})
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	err := errors.Join(runHooks(ctx, a.onStop), a.Components.StopAll(ctx))
	if err != nil {
		a.Logger.WithError(err).Error("shutdown finished with errors")
		return err
	}
	a.Logger.Info("shutdown complete")
	return nil
}
