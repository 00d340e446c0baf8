package tasks

import (
	"context"
	"fmt"

	"github.com/edgard/inboxintel/internal/notify"
)

// ReportTitle is the notification title of the daily summary.
const ReportTitle = "Daily Summary"

func newDailyReportTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", DailyReport)

	return func(ctx context.Context) error {
		today := deps.now()
		text, err := deps.Reporter.GenerateDailySummary(ctx, today)
		if err != nil {
			return fmt.Errorf("generate daily summary: %w", err)
		}

		if !notify.Enabled(deps.Notifier) {
			log.InfoContext(ctx, "Daily summary generated; no notifier configured", "report", text)
			return nil
		}
		if err := deps.Notifier.Send(ctx, ReportTitle, text); err != nil {
			return fmt.Errorf("send daily summary: %w", err)
		}
		log.InfoContext(ctx, "Daily summary sent", "date", today.Format("2006-01-02"))
		return nil
	}
}
