package tasks

import (
	"context"
	"fmt"
)

func newClassifyTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", ClassifyPending)

	return func(ctx context.Context) error {
		summary, err := deps.Worker.Run(ctx)
		if err != nil {
			return fmt.Errorf("classify messages: %w", err)
		}
		if summary.Failed > 0 {
			// failed messages stay unclassified and are retried next run
			log.WarnContext(ctx, "Some messages could not be classified",
				"processed", summary.Processed,
				"failed", summary.Failed,
			)
		}
		return nil
	}
}
