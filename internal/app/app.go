// Package app runs the long-lived InboxIntel process: the webhook server
// and the task scheduler, stopped together on shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner is a component that serves until its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// App orchestrates the HTTP server and the scheduler.
type App struct {
	logger    *slog.Logger
	server    Runner
	scheduler *Scheduler
}

// New creates an App. server may be nil to run the scheduler alone.
func New(logger *slog.Logger, server Runner, scheduler *Scheduler) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		logger:    logger.With("component", "orchestrator"),
		server:    server,
		scheduler: scheduler,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting InboxIntel")

	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			if err := a.server.Run(gCtx); err != nil {
				return err
			}
			if gCtx.Err() == nil {
				return fmt.Errorf("http server stopped unexpectedly")
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := a.scheduler.Start(gCtx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler")
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("InboxIntel stopped due to error", "error", err)
		return err
	}

	a.logger.Info("InboxIntel stopped gracefully")
	return nil
}
