package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robbitt07/taskqueue/internal/mq"
	"github.com/robbitt07/taskqueue/internal/telemetry"
)

// Статусы выполнения задачи в метриках.
const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
	statusDuplicate = "duplicate"
	statusRejected  = "rejected"
)

// HandleDelivery обрабатывает одно сообщение. Возвращённая ошибка приводит
// к nack; nil — к ack.
func (w *Worker) HandleDelivery(ctx context.Context, d *mq.Delivery) error {
	msg, err := DecodeEnvelope(d.Body)
	if err != nil {
		telemetry.TasksExecuted.WithLabelValues("", statusRejected).Inc()
		w.logger.Error("rejected message", "message_id", d.MessageID, "error", err)
		return err
	}

	logger := telemetry.WithTask(w.logger, msg.Task, d.MessageID)

	executor, err := w.registry.Get(msg.Task)
	if err != nil {
		telemetry.TasksExecuted.WithLabelValues(msg.Task, statusRejected).Inc()
		logger.Error("rejected message", "error", err)
		return err
	}
	if err := w.registry.ValidateParams(msg.Task, msg.Params); err != nil {
		telemetry.TasksExecuted.WithLabelValues(msg.Task, statusRejected).Inc()
		logger.Error("rejected message", "error", err)
		return err
	}

	// Сообщения без id (опубликованные не через TaskPublisher) не дедуплицируются
	if d.MessageID != "" {
		state, err := w.dedup.Claim(ctx, d.MessageID, msg.Task)
		if err != nil {
			logger.Warn("dedup store unavailable, requeueing message", "error", err)
			return mq.Requeue(fmt.Errorf("claim message %s: %w", d.MessageID, err))
		}

		switch {
		case state == ClaimDone:
			telemetry.TasksExecuted.WithLabelValues(msg.Task, statusDuplicate).Inc()
			logger.Info("duplicate message skipped", "redelivered", d.Redelivered)
			return nil
		case state == ClaimPending && !d.Redelivered:
			// Копия выполняется другим воркером. Если он упадёт, его копия
			// вернётся в очередь с Redelivered и будет выполнена.
			telemetry.TasksExecuted.WithLabelValues(msg.Task, statusDuplicate).Inc()
			logger.Info("message already in progress, skipped")
			return nil
		case state == ClaimPending:
			logger.Warn("redelivered message has a stale claim, executing")
		}
	}

	logger.Info("task started")
	start := time.Now()

	result, err := w.execute(ctx, executor, msg.Params)
	duration := time.Since(start)

	if err == nil && result.Error != "" {
		err = fmt.Errorf("%w: %s", ErrExecutionFailed, result.Error)
	}
	if err != nil {
		telemetry.TasksExecuted.WithLabelValues(msg.Task, statusFailed).Inc()
		logger.Warn("task failed", "duration", duration, "error", err)
		w.release(ctx, d.MessageID, logger)
		return err
	}

	w.complete(ctx, d.MessageID, logger)

	telemetry.TasksExecuted.WithLabelValues(msg.Task, statusSucceeded).Inc()
	logger.Info("task succeeded", "duration", duration, "outputs", len(result.Outputs))
	return nil
}

// execute запускает executor с таймаутом задачи.
func (w *Worker) execute(ctx context.Context, executor Executor, params map[string]any) (*ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	result, err := executor.Execute(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}
	if result == nil {
		result = &ExecutionResult{}
	}
	return result, nil
}

// release снимает заявку на message id, чтобы повторная публикация
// той же задачи была выполнена.
func (w *Worker) release(ctx context.Context, messageID string, logger *slog.Logger) {
	if messageID == "" {
		return
	}
	if err := w.dedup.Release(context.WithoutCancel(ctx), messageID); err != nil {
		logger.Warn("failed to release message id", "error", err)
	}
}

// complete отмечает message id выполненным. Ошибка не отменяет ack:
// задача уже выполнена, а незавершённая заявка лишь допускает повтор
// при повторной доставке.
func (w *Worker) complete(ctx context.Context, messageID string, logger *slog.Logger) {
	if messageID == "" {
		return
	}
	if err := w.dedup.Complete(context.WithoutCancel(ctx), messageID); err != nil {
		logger.Warn("failed to mark message done", "error", err)
	}
}
