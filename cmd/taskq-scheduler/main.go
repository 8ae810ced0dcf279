// taskq scheduler — публикует задачи по расписаниям из SCHEDULE_FILE.
//
// Формат файла — JSON-массив:
//
//	[{"name": "nightly", "cron": "0 3 * * *", "timezone": "Europe/Moscow",
//	  "task": "cleanup", "queue": "default", "params": {}}]
//
// Вместо cron можно задать interval_sec.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robbitt07/taskqueue/internal/config"
	"github.com/robbitt07/taskqueue/internal/mq"
	"github.com/robbitt07/taskqueue/internal/scheduler"
	"github.com/robbitt07/taskqueue/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "taskq-scheduler:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("taskq-scheduler")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, closeLogs := cfg.SetupLogger()
	defer closeLogs()
	logger.Info("starting taskq-scheduler", "schedule_file", cfg.ScheduleFile)

	schedules, err := scheduler.LoadSchedules(cfg.ScheduleFile)
	if err != nil {
		logger.Error("failed to load schedules", "error", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	publisher := mq.NewTaskPublisher(cfg.MQ(), logger)
	defer publisher.Close()

	s := scheduler.New(scheduler.Config{
		Publisher: publisher,
		Schedules: schedules,
		Logger:    logger,
	})

	go func() {
		if err := telemetry.Serve(ctx, ":"+cfg.HTTPPort, telemetry.NewOpsMux(), logger); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	if err := s.Run(ctx); err != nil {
		logger.Error("scheduler stopped with error", "error", err)
		return err
	}

	logger.Info("taskq-scheduler stopped")
	return nil
}
