package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/tgrecall/tgrecall/internal/bot/tasks"
	"github.com/tgrecall/tgrecall/internal/config"
)

// Scheduler manages scheduled tasks using the gocron library.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler for the tasks registered in taskMap.
// Which of them actually run, and when, is decided by the configuration.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(gocron.WithLogger(newGocronLogger(log)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start schedules all enabled tasks and starts the scheduler's ticking.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Warn("No scheduler tasks configured.")
		s.scheduler.Start()
		s.running = true
		return nil
	}

	scheduledCount := 0
	for taskName, taskConfig := range s.cfg.Tasks {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		if taskConfig.Schedule == "" {
			s.logger.Warn("Scheduled task enabled but has empty schedule, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, true),
			gocron.NewTask(
				func(ctx context.Context, name string) {
					s.logger.Info("Running scheduled task", "task_name", name)
					startTime := time.Now()
					if taskErr := taskFunc(ctx); taskErr != nil {
						s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
					}
					s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
				},
				context.Background(),
				taskName,
			),
			gocron.WithName(taskName),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", scheduledCount)

	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
