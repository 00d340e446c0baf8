// Package tasks implements the scheduled jobs of the pipeline: polling,
// classification, the daily report and database maintenance.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/inboxintel/internal/config"
	"github.com/edgard/inboxintel/internal/database"
	"github.com/edgard/inboxintel/internal/ingest"
	"github.com/edgard/inboxintel/internal/notify"
	"github.com/edgard/inboxintel/internal/worker"
)

// Poller fetches recent messages into the store.
type Poller interface {
	Poll(ctx context.Context) (ingest.Stats, error)
}

// ClassificationRunner runs one classification pass.
type ClassificationRunner interface {
	Run(ctx context.Context) (worker.RunSummary, error)
}

// Reporter renders the daily summary for a date.
type Reporter interface {
	GenerateDailySummary(ctx context.Context, date time.Time) (string, error)
}

// TaskDeps contains the dependencies of the scheduled tasks. Poller and
// Reporter may be nil when their jobs are disabled.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Poller   Poller
	Worker   ClassificationRunner
	Reporter Reporter
	Notifier notify.Notifier
	Config   *config.Config
	Now      func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
