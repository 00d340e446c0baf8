package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/inboxintel/internal/app/tasks"
	"github.com/edgard/inboxintel/internal/metrics"
)

// Scheduler runs the pipeline tasks with gocron. No task overlaps itself:
// a run that would start while the previous one is still going is skipped
// until the next slot.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	taskMap   map[string]tasks.Task
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler for taskMap.
func NewScheduler(logger *slog.Logger, taskMap map[string]tasks.Task) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		taskMap:   taskMap,
	}, nil
}

// Start registers every task and starts the scheduler. Tasks receive ctx
// and are expected to stop when it is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.taskMap) == 0 {
		s.logger.Warn("No scheduler tasks configured")
	}

	for taskName, task := range s.taskMap {
		opts := []gocron.JobOption{
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}
		if task.RunOnStart {
			opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
		}

		_, err := s.scheduler.NewJob(
			task.Definition,
			gocron.NewTask(s.wrap, ctx, taskName, task.Run),
			opts...,
		)
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", taskName, err)
		}
		s.logger.Info("Scheduled task", "task_name", taskName, "run_on_start", task.RunOnStart)
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", len(s.taskMap))
	return nil
}

func (s *Scheduler) wrap(ctx context.Context, name string, run tasks.ScheduledTaskFunc) {
	s.logger.Debug("Running scheduled task", "task_name", name)
	startTime := time.Now()

	err := run(ctx)

	duration := time.Since(startTime)
	metrics.TaskDuration.WithLabelValues(name, metrics.Result(err)).Observe(duration.Seconds())
	if err != nil {
		s.logger.Error("Scheduled task failed", "task_name", name, "error", err, "duration", duration)
		return
	}
	s.logger.Debug("Finished scheduled task", "task_name", name, "duration", duration)
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped")
	}

	s.running = false
	return err
}
