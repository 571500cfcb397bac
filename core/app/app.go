// Package app is the process bootstrap shared by every cmd/ binary: start a
// fixed set of core/job.Job instances, block until a shutdown signal arrives,
// then stop them in the reverse order they were started.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/briefloop/researchcore/core/job"
)

type Options struct {
	Name string
	Jobs []job.Job
}

type App struct {
	name     string
	stopChan chan os.Signal
	jobs     []job.Job
}

func New(opt *Options) *App {
	return &App{
		name:     opt.Name,
		jobs:     opt.Jobs,
		stopChan: make(chan os.Signal, 1),
	}
}

// Run starts every job, blocks until SIGINT/SIGTERM/SIGHUP/SIGQUIT, then
// stops every job and returns the joined start/stop errors, if any.
func (a *App) Run(ctx context.Context) error {
	startErr := a.start(ctx)
	if startErr != nil {
		slog.Error("app start failed", slog.String("app", a.name), slog.String("err", startErr.Error()))
	}
	a.wait()
	stopErr := a.stop()
	return errors.Join(startErr, stopErr)
}

func (a *App) start(ctx context.Context) error {
	slog.Info("app starting", slog.String("app", a.name))
	errs := make([]error, 0, len(a.jobs))
	for _, j := range a.jobs {
		errs = append(errs, j.Start(ctx))
	}
	return errors.Join(errs...)
}

func (a *App) wait() {
	slog.Info("app running", slog.String("app", a.name))
	signal.Notify(a.stopChan, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	<-a.stopChan
	signal.Stop(a.stopChan)
}

func (a *App) stop() error {
	slog.Info("app stopping", slog.String("app", a.name))
	errs := make([]error, 0, len(a.jobs))
	for i := len(a.jobs) - 1; i >= 0; i-- {
		errs = append(errs, a.jobs[i].Stop())
	}
	return errors.Join(errs...)
}
