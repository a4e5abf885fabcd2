package tasks

import (
	"context"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks initializes and returns a map of all registered scheduled
// tasks. The keys match the scheduler section of config.yaml, which decides
// whether a task runs and on what cron schedule.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	tasks["sql_maintenance"] = newSQLMaintenanceTask(deps)
	tasks["daily_digest"] = newDailyDigestTask(deps)

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
