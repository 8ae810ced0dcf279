package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/robbitt07/taskqueue/internal/telemetry"
)

// Publisher — то, что нужно планировщику для публикации задач.
// Реализуется *mq.TaskPublisher.
type Publisher interface {
	PublishTask(ctx context.Context, queue, task string, params map[string]any) error
}

// Scheduler публикует задачи по расписаниям.
type Scheduler struct {
	publisher Publisher
	schedules []Schedule
	logger    *slog.Logger
}

// Config — конфигурация Scheduler.
type Config struct {
	Publisher Publisher
	Schedules []Schedule
	Logger    *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		publisher: cfg.Publisher,
		schedules: cfg.Schedules,
		logger:    telemetry.WithComponent(logger, "scheduler"),
	}
}

// Run регистрирует расписания и публикует задачи до отмены ctx.
// После отмены ждёт завершения запущенных публикаций.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
		cron.WithLogger(cronLogger{s.logger}),
	)

	for i := range s.schedules {
		sched := s.schedules[i]
		if _, err := c.AddFunc(sched.Spec(), func() { _ = s.Fire(ctx, &sched) }); err != nil {
			return fmt.Errorf("add schedule %s: %w", sched.Name, err)
		}
		s.logger.Info("schedule registered",
			"schedule", sched.Name,
			"spec", sched.Spec(),
			"task", sched.Task,
			"queue", sched.Queue,
		)
	}

	c.Start()
	s.logger.Info("scheduler started", "schedules", len(s.schedules))

	<-ctx.Done()

	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// Fire публикует задачу расписания один раз. Ошибка публикации логируется
// и возвращается, но не останавливает планировщик.
func (s *Scheduler) Fire(ctx context.Context, sched *Schedule) error {
	err := s.publisher.PublishTask(ctx, sched.Queue, sched.Task, sched.Params)
	if err != nil {
		telemetry.ScheduledPublishes.WithLabelValues(sched.Name, "failed").Inc()
		s.logger.Error("failed to publish scheduled task",
			"schedule", sched.Name,
			"task", sched.Task,
			"error", err,
		)
		return err
	}

	telemetry.ScheduledPublishes.WithLabelValues(sched.Name, "ok").Inc()
	s.logger.Info("scheduled task published",
		"schedule", sched.Name,
		"task", sched.Task,
		"queue", sched.Queue,
	)
	return nil
}

// cronLogger адаптирует slog к cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
