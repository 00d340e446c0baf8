package tasks

import (
	"context"
	"fmt"
)

func newPollTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", PollMessages)

	return func(ctx context.Context) error {
		stats, err := deps.Poller.Poll(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Message poll failed",
				"new_saved", stats.NewSaved,
				"error", err,
			)
			return fmt.Errorf("poll messages: %w", err)
		}
		log.InfoContext(ctx, "Message poll completed",
			"pages", stats.Pages,
			"total_fetched", stats.TotalFetched,
			"new_saved", stats.NewSaved,
			"duplicates_skipped", stats.DuplicatesSkipped,
			"invalid_skipped", stats.InvalidSkipped,
		)
		return nil
	}
}
