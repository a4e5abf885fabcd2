package tasks

import (
	"context"
	"fmt"
	"time"
)

// maintenanceTimeout bounds one maintenance run; VACUUM rewrites the whole
// database file and can take a while on a large archive.
const maintenanceTimeout = 5 * time.Minute

// newSQLMaintenanceTask creates the scheduled task that reclaims space and
// refreshes query planner statistics in the archive database.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled SQL maintenance task...")
		start := time.Now()

		timeoutCtx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		if err := deps.Store.RunSQLMaintenance(timeoutCtx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", time.Since(start))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "SQL maintenance task completed", "duration", time.Since(start))
		return nil
	}
}
