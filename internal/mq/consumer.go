package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robbitt07/taskqueue/internal/telemetry"
)

// consumerPrefetch — не больше одного неподтверждённого сообщения на потребителя.
const consumerPrefetch = 1

// Handler — функция обработки сообщения.
// Возвращает error, если обработка не удалась (сообщение будет nack без requeue).
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Queue       string
	MessageID   string
	Body        []byte
	Redelivered bool
	Timestamp   time.Time
}

// Decode разбирает тело сообщения как TaskMessage.
func (d *Delivery) Decode() (TaskMessage, error) {
	return DecodeTaskMessage(d.Body)
}

// Consume потребляет сообщения из очереди queue до отмены ctx.
//
// Использует долгоживущее соединение: Qos(prefetch=1), durable declare,
// ручной ack. Успешная обработка — ack; ошибка или паника обработчика —
// nack без возврата в очередь, чтобы «ядовитое» сообщение не зациклилось.
// Исключения — ошибки, помеченные Requeue, и обработка, прерванная отменой
// ctx: такие сообщения возвращаются в очередь.
//
// Если поток доставок закрылся, пока ctx жив, канал запрашивается заново,
// что при разорванном соединении переустанавливает его.
// После отмены ctx соединение закрывается и возвращается nil.
func (p *TaskPublisher) Consume(ctx context.Context, queue string, handler Handler) error {
	if queue == "" {
		return ErrEmptyQueue
	}
	if handler == nil {
		return fmt.Errorf("consume %s: nil handler", queue)
	}

	if err := p.conn.Establish(ctx, true); err != nil {
		return err
	}
	defer func() {
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("failed to close consumer connection", "error", err)
		}
	}()

	logger := p.logger.With("queue", queue)

	for {
		ch, err := p.conn.Channel(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("acquire channel: %w", err)
		}

		deliveries, err := setupConsume(ctx, ch, queue)
		if err != nil {
			_ = ch.Close()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		logger.Info("consumer started")
		p.processDeliveries(ctx, logger, queue, deliveries, handler)
		_ = ch.Close()

		if ctx.Err() != nil {
			logger.Info("consumer stopped")
			return nil
		}

		logger.Warn("deliveries channel closed, reconnecting")
		if p.conn.State() == StateOpen {
			// закрылся только канал; пауза, чтобы не крутиться вхолостую
			if err := sleepCtx(ctx, p.cfg.ReconnectDelay); err != nil {
				return nil
			}
		}
	}
}

// setupConsume настраивает канал и начинает потребление.
func setupConsume(ctx context.Context, ch Channel, queue string) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if err := declareDurable(ch, queue); err != nil {
		return nil, err
	}

	deliveries, err := ch.ConsumeWithContext(
		ctx,
		queue, // queue
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}

	return deliveries, nil
}

// processDeliveries обрабатывает сообщения, пока канал открыт и ctx жив.
func (p *TaskPublisher) processDeliveries(ctx context.Context, logger *slog.Logger, queue string, deliveries <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			if p.handleDelivery(ctx, logger, queue, raw, handler) && ctx.Err() == nil {
				// временная ошибка: пауза, чтобы не крутить сообщение вхолостую
				if err := sleepCtx(ctx, p.cfg.ReconnectDelay); err != nil {
					return
				}
			}
		}
	}
}

// handleDelivery обрабатывает одно сообщение и подтверждает его.
// Возвращает true, если сообщение возвращено в очередь.
//
// Ошибка обработчика после отмены ctx означает прерванную остановкой
// обработку, а не сбой задачи: такое сообщение возвращается в очередь.
func (p *TaskPublisher) handleDelivery(ctx context.Context, logger *slog.Logger, queue string, raw amqp.Delivery, handler Handler) bool {
	d := &Delivery{
		Queue:       queue,
		MessageID:   raw.MessageId,
		Body:        raw.Body,
		Redelivered: raw.Redelivered,
		Timestamp:   raw.Timestamp,
	}

	logger.Debug("received message", "message_id", raw.MessageId, "redelivered", raw.Redelivered)

	err := callHandler(ctx, handler, d)
	if err == nil {
		if err := raw.Ack(false); err != nil {
			logger.Warn("failed to ack message", "message_id", raw.MessageId, "error", err)
		}
		telemetry.MessagesConsumed.WithLabelValues(queue, telemetry.OutcomeAck).Inc()
		return false
	}

	requeue := ctx.Err() != nil || IsRequeue(err)
	outcome := telemetry.OutcomeNack
	if requeue {
		outcome = telemetry.OutcomeRequeue
		logger.Warn("handler interrupted, requeueing message",
			"message_id", raw.MessageId,
			"error", err,
		)
	} else {
		logger.Error("handler failed",
			"message_id", raw.MessageId,
			"preview", preview(raw.Body, previewLen),
			"error", err,
		)
	}

	if err := raw.Nack(false, requeue); err != nil {
		logger.Warn("failed to nack message", "message_id", raw.MessageId, "error", err)
	}
	telemetry.MessagesConsumed.WithLabelValues(queue, outcome).Inc()
	return requeue
}

// callHandler вызывает обработчик, превращая панику в ошибку.
func callHandler(ctx context.Context, handler Handler, d *Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, d)
}
