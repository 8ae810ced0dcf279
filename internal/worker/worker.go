package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robbitt07/taskqueue/internal/mq"
	"github.com/robbitt07/taskqueue/internal/telemetry"
)

const defaultTaskTimeout = 5 * time.Minute

// Consumer — источник доставок. Реализуется *mq.TaskPublisher.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler mq.Handler) error
}

// Worker выполняет задачи из очереди.
//
// Worker — stateless компонент, который:
//   - Получает сообщения {"task", "params"} из очереди RabbitMQ
//   - Проверяет конверт и параметры по JSON Schema
//   - Отбрасывает дубли по message id (Deduplicator)
//   - Выполняет задачу executor'ом из Registry
//
// Ошибка выполнения приводит к nack без возврата в очередь.
// Workers масштабируются горизонтально: несколько экземпляров могут
// потреблять из одной очереди.
type Worker struct {
	consumer Consumer
	queue    string
	registry *Registry
	dedup    Deduplicator

	taskTimeout time.Duration
	logger      *slog.Logger
}

// Config — конфигурация Worker.
type Config struct {
	// Consumer — источник доставок (обязательно).
	Consumer Consumer

	// Queue — очередь задач (default: mq.DefaultQueue).
	Queue string

	// Registry — реестр executor'ов (опционально; если nil — NewRegistry()).
	Registry *Registry

	// Dedup — хранилище обработанных id (опционально; если nil — без дедупликации).
	Dedup Deduplicator

	// TaskTimeout — предельное время выполнения одной задачи (default: 5m).
	TaskTimeout time.Duration

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	queue := cfg.Queue
	if queue == "" {
		queue = mq.DefaultQueue
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	var dedup Deduplicator = NopDeduplicator{}
	if cfg.Dedup != nil {
		dedup = cfg.Dedup
	}

	taskTimeout := cfg.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = defaultTaskTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		consumer:    cfg.Consumer,
		queue:       queue,
		registry:    registry,
		dedup:       dedup,
		taskTimeout: taskTimeout,
		logger:      telemetry.WithComponent(logger, "worker"),
	}
}

// Run потребляет задачи до отмены ctx.
func (w *Worker) Run(ctx context.Context) error {
	if w.consumer == nil {
		return errors.New("worker: consumer is not configured")
	}

	w.logger.Info("starting worker",
		"queue", w.queue,
		"tasks", w.registry.Tasks(),
		"task_timeout", w.taskTimeout,
	)

	err := w.consumer.Consume(ctx, w.queue, w.HandleDelivery)

	w.logger.Info("worker stopped")
	return err
}
