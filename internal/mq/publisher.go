package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robbitt07/taskqueue/internal/telemetry"
)

// MaxPublishRetries — сколько раз Publish повторяет отправку после первой
// неудачной попытки. Всего попыток: MaxPublishRetries + 1.
const MaxPublishRetries = 2

// previewLen — сколько символов тела сообщения попадает в лог.
const previewLen = 100

// Component — идентификатор компонента в логах.
const Component = "TaskPublisher"

// TaskPublisher публикует задачи в долговечные очереди RabbitMQ и
// потребляет их.
//
// Publish и QueueDeclare открывают короткоживущее соединение на каждый
// вызов и не разделяют состояние. Consume использует отдельное
// долгоживущее соединение (Connection), которое переустанавливается при
// разрыве.
type TaskPublisher struct {
	cfg    Config
	dial   Dialer
	logger *slog.Logger

	conn *Connection
}

// Option настраивает TaskPublisher.
type Option func(*TaskPublisher)

// WithDialer подменяет способ подключения к брокеру.
func WithDialer(dial Dialer) Option {
	return func(p *TaskPublisher) {
		if dial != nil {
			p.dial = dial
		}
	}
}

// NewTaskPublisher создаёт TaskPublisher. Конфигурация фиксируется при
// создании; соединения открываются по требованию.
func NewTaskPublisher(cfg Config, logger *slog.Logger, opts ...Option) *TaskPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	p := &TaskPublisher{
		cfg:    cfg.withDefaults(),
		dial:   DialAMQP,
		logger: telemetry.WithComponent(logger, Component),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.conn = NewConnection(p.cfg, p.dial, p.logger)
	return p
}

// Connection возвращает долгоживущее соединение потребителя.
func (p *TaskPublisher) Connection() *Connection {
	return p.conn
}

// Publish доставляет уже сериализованное сообщение в очередь queue.
//
// Каждая попытка открывает новое соединение, объявляет очередь долговечной,
// публикует сообщение с persistent delivery mode и закрывает соединение.
// При ошибке отправка повторяется целиком, не более MaxPublishRetries раз.
// Если все попытки неудачны, возвращается ошибка последней попытки.
//
// Повтор после ошибки с неизвестным исходом может привести к дублю:
// все попытки одного вызова несут один MessageId.
func (p *TaskPublisher) Publish(ctx context.Context, queue string, body []byte) error {
	return p.publish(ctx, queue, body, "")
}

func (p *TaskPublisher) publish(ctx context.Context, queue string, body []byte, contentType string) error {
	if queue == "" {
		return ErrEmptyQueue
	}
	if !utf8.Valid(body) {
		return ErrInvalidMessage
	}

	messageID := uuid.NewString()
	logger := p.logger.With("queue", queue, "message_id", messageID)

	var err error
	for attempt := 0; attempt <= MaxPublishRetries; attempt++ {
		err = p.send(ctx, queue, amqp.Publishing{
			ContentType:  contentType,
			DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		})
		if err == nil {
			telemetry.TasksPublished.WithLabelValues(queue).Inc()
			logger.Info("submitted message",
				"attempt", attempt+1,
				"preview", preview(body, previewLen),
			)
			return nil
		}

		telemetry.PublishAttemptsFailed.WithLabelValues(queue).Inc()
		logger.Error("failed to publish message",
			"attempt", attempt+1,
			"max_attempts", MaxPublishRetries+1,
			"error", err,
		)

		if ctx.Err() != nil {
			break
		}
	}

	telemetry.PublishGivenUp.WithLabelValues(queue).Inc()
	return err
}

// send выполняет одну попытку: connect, declare, publish, close.
func (p *TaskPublisher) send(ctx context.Context, queue string, msg amqp.Publishing) error {
	conn, err := p.dial(ctx, p.cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareDurable(ch, queue); err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx,
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	return nil
}

// QueueDeclare гарантирует существование долговечной очереди, используя
// короткоживущее соединение. Повторный вызов безопасен.
func (p *TaskPublisher) QueueDeclare(ctx context.Context, queue string) error {
	if queue == "" {
		return ErrEmptyQueue
	}

	return p.withChannel(ctx, func(ch Channel) error {
		return declareDurable(ch, queue)
	})
}

// Purge очищает очереди на короткоживущем соединении и возвращает число
// удалённых сообщений по каждой очереди. Ошибка одной очереди не мешает
// остальным; все ошибки объединяются.
func (p *TaskPublisher) Purge(ctx context.Context, queues []string) (map[string]int, error) {
	purged := make(map[string]int, len(queues))

	err := p.withChannel(ctx, func(ch Channel) error {
		var errs []error
		for _, queue := range queues {
			n, err := ch.QueuePurge(queue, false)
			if err != nil {
				p.logger.Warn("failed to purge queue", "queue", queue, "error", err)
				errs = append(errs, fmt.Errorf("purge queue %s: %w", queue, err))
				if IsConnectionError(err) {
					// канал закрыт брокером, дальше продолжать бессмысленно
					break
				}
				continue
			}
			purged[queue] = n
			p.logger.Info("purged queue", "queue", queue, "messages", n)
		}
		return errors.Join(errs...)
	})

	return purged, err
}

// withChannel открывает короткоживущее соединение, вызывает fn и закрывает его.
func (p *TaskPublisher) withChannel(ctx context.Context, fn func(ch Channel) error) error {
	conn, err := p.dial(ctx, p.cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	return fn(ch)
}

// Close закрывает долгоживущее соединение потребителя.
func (p *TaskPublisher) Close() error {
	return p.conn.Close()
}

// preview обрезает тело сообщения до n символов для логов.
func preview(body []byte, n int) string {
	if utf8.RuneCount(body) <= n {
		return string(body)
	}

	var i, count int
	for i < len(body) && count < n {
		_, size := utf8.DecodeRune(body[i:])
		i += size
		count++
	}
	return string(body[:i])
}
