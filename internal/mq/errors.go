package mq

import (
	"errors"
	"net"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Ошибки пакета mq.
var (
	// ErrEmptyQueue — не указано имя очереди.
	ErrEmptyQueue = errors.New("queue name is empty")

	// ErrInvalidMessage — тело сообщения не является корректным UTF-8.
	ErrInvalidMessage = errors.New("message body is not valid UTF-8")

	// ErrEmptyTask — в сообщении не указано имя задачи.
	ErrEmptyTask = errors.New("task name is empty")

	// ErrNotConnected — соединения нет, а переустановить его нельзя:
	// контекст уже отменён.
	ErrNotConnected = errors.New("not connected to broker")
)

// requeueError — ошибка обработчика, после которой сообщение возвращается
// в очередь, а не отбрасывается.
type requeueError struct {
	err error
}

func (e *requeueError) Error() string { return e.err.Error() }
func (e *requeueError) Unwrap() error { return e.err }

// Requeue помечает временную ошибку обработчика (например, недоступно
// внешнее хранилище): Consume вернёт сообщение в очередь через nack с requeue.
func Requeue(err error) error {
	if err == nil {
		return nil
	}
	return &requeueError{err: err}
}

// IsRequeue сообщает, помечена ли ошибка через Requeue.
func IsRequeue(err error) bool {
	var re *requeueError
	return errors.As(err, &re)
}

// IsConnectionError сообщает, относится ли ошибка к классу,
// после которого имеет смысл переустановить соединение:
// закрытое соединение, исчерпанные каналы, сетевой сбой.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, amqp.ErrClosed) || errors.Is(err, amqp.ErrChannelMax) || errors.Is(err, ErrNotConnected) {
		return true
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Code == amqp.ConnectionForced ||
			amqpErr.Code == amqp.ChannelError ||
			amqpErr.Code == amqp.FrameError
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
