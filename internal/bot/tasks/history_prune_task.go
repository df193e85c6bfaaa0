package tasks

import (
	"context"
	"fmt"
	"time"
)

// newHistoryPruneTask creates the scheduled task that deletes download
// history rows older than the configured retention.
func newHistoryPruneTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "history_prune")

	return func(ctx context.Context) error {
		cutoff := time.Now().Add(-deps.Config.Database.HistoryRetention)

		deleted, err := deps.Store.DeleteDownloadsBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "History prune task failed", "error", err)
			return fmt.Errorf("history prune failed: %w", err)
		}

		log.InfoContext(ctx, "History prune task completed", "deleted", deleted, "cutoff", cutoff)
		return nil
	}
}
