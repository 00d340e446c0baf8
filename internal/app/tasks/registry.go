package tasks

import (
	"context"

	"github.com/go-co-op/gocron/v2"
)

// Task names.
const (
	PollMessages    = "poll_messages"
	ClassifyPending = "classify_messages"
	DailyReport     = "daily_report"
	SQLMaintenance  = "sql_maintenance"
)

// ScheduledTaskFunc is the signature of every scheduled task. The context
// is cancelled on shutdown.
type ScheduledTaskFunc func(ctx context.Context) error

// Task is a task function with its schedule.
type Task struct {
	Definition gocron.JobDefinition
	// RunOnStart runs the task once as soon as the scheduler starts.
	RunOnStart bool
	Run        ScheduledTaskFunc
}

// RegisterAllTasks returns the enabled tasks keyed by name.
func RegisterAllTasks(deps TaskDeps) map[string]Task {
	cfg := deps.Config
	tasks := make(map[string]Task)

	if cfg.Polling.Enabled && deps.Poller != nil {
		tasks[PollMessages] = Task{
			Definition: gocron.DurationJob(cfg.Polling.Interval),
			RunOnStart: true,
			Run:        newPollTask(deps),
		}
	}

	tasks[ClassifyPending] = Task{
		Definition: gocron.DurationJob(cfg.Worker.Interval),
		RunOnStart: true,
		Run:        newClassifyTask(deps),
	}

	if cfg.Report.Enabled && deps.Reporter != nil {
		tasks[DailyReport] = Task{
			Definition: gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(cfg.Report.Hour, 0, 0))),
			Run:        newDailyReportTask(deps),
		}
	}

	if cfg.Maintenance.Enabled {
		tasks[SQLMaintenance] = Task{
			Definition: gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(cfg.Maintenance.Hour, 0, 0))),
			Run:        newSQLMaintenanceTask(deps),
		}
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
