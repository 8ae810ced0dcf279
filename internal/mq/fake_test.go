package mq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeBroker — брокер в памяти для тестов пакета.
type fakeBroker struct {
	mu sync.Mutex

	// сохранённые сообщения по очередям
	messages map[string][]amqp.Publishing
	// все попытки публикации, включая неудачные
	attempts []amqp.Publishing
	// сколько раз объявлялась каждая очередь и с каким durable
	declared map[string]int
	durable  map[string]bool
	qos      []int

	dials int
	conns []*fakeConn

	// очереди ошибок, извлекаются по одной на вызов
	dialErrs    []error
	publishErrs []error
	channelErrs []error
	purgeErrs   map[string]error

	// потоки доставок для ConsumeWithContext; если пусто — доставляются
	// сохранённые сообщения очереди
	streams []chan amqp.Delivery

	acker *fakeAcker
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		messages:  make(map[string][]amqp.Publishing),
		declared:  make(map[string]int),
		durable:   make(map[string]bool),
		purgeErrs: make(map[string]error),
		acker:     &fakeAcker{},
	}
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (b *fakeBroker) dial(_ context.Context, _ Config) (Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if err := pop(&b.dialErrs); err != nil {
		return nil, err
	}
	c := &fakeConn{b: b}
	b.conns = append(b.conns, c)
	return c, nil
}

func (b *fakeBroker) lastConn() *fakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[len(b.conns)-1]
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

type fakeConn struct {
	b      *fakeBroker
	mu     sync.Mutex
	closed bool
}

func (c *fakeConn) Channel() (Channel, error) {
	c.b.mu.Lock()
	err := pop(&c.b.channelErrs)
	c.b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if c.IsClosed() {
		return nil, amqp.ErrClosed
	}
	return &fakeChannel{b: c.b}, nil
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// breakConn имитирует разрыв соединения брокером.
func (c *fakeConn) breakConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

type fakeChannel struct {
	b *fakeBroker
}

func (ch *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	ch.b.declared[name]++
	ch.b.durable[name] = durable
	if _, ok := ch.b.messages[name]; !ok {
		ch.b.messages[name] = nil
	}
	return amqp.Queue{Name: name, Messages: len(ch.b.messages[name])}, nil
}

func (ch *fakeChannel) QueuePurge(name string, _ bool) (int, error) {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if err := ch.b.purgeErrs[name]; err != nil {
		return 0, err
	}
	n := len(ch.b.messages[name])
	ch.b.messages[name] = nil
	return n, nil
}

func (ch *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()
	ch.b.qos = append(ch.b.qos, prefetchCount)
	return nil
}

func (ch *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	ch.b.attempts = append(ch.b.attempts, msg)
	if err := pop(&ch.b.publishErrs); err != nil {
		return err
	}
	ch.b.messages[key] = append(ch.b.messages[key], msg)
	return nil
}

func (ch *fakeChannel) ConsumeWithContext(ctx context.Context, queue, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if len(ch.b.streams) > 0 {
		s := ch.b.streams[0]
		ch.b.streams = ch.b.streams[1:]
		return s, nil
	}

	stored := ch.b.messages[queue]
	ch.b.messages[queue] = nil

	out := make(chan amqp.Delivery, len(stored))
	for i, msg := range stored {
		out <- amqp.Delivery{
			Acknowledger: ch.b.acker,
			DeliveryTag:  uint64(i + 1),
			MessageId:    msg.MessageId,
			Timestamp:    msg.Timestamp,
			Body:         msg.Body,
		}
	}
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (ch *fakeChannel) Close() error { return nil }

func (b *fakeBroker) stored(queue string) []amqp.Publishing {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]amqp.Publishing(nil), b.messages[queue]...)
}

// fakeAcker записывает ack/nack.
type fakeAcker struct {
	mu      sync.Mutex
	acks    []uint64
	nacks   []uint64
	requeue []bool
}

func (a *fakeAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *fakeAcker) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcker) counts() (acks, nacks int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks), len(a.nacks)
}

func delivery(acker amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: acker,
		DeliveryTag:  tag,
		MessageId:    "msg-" + body,
		Body:         []byte(body),
	}
}

var errTransient = errors.New("connection reset by peer")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(queues ...string) Config {
	return Config{
		Host:           "localhost",
		Queues:         queues,
		RetryDelay:     -1,
		ReconnectDelay: -1,
	}
}

func newTestPublisher(b *fakeBroker, queues ...string) *TaskPublisher {
	return NewTaskPublisher(testConfig(queues...), testLogger(), WithDialer(b.dial))
}
