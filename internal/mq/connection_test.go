package mq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestConnection_StartsClosed(t *testing.T) {
	c := NewConnection(testConfig(), newFakeBroker().dial, testLogger())

	if c.State() != StateClosed {
		t.Errorf("expected closed, got %s", c.State())
	}
}

func TestConnection_EstablishDeclaresQueues(t *testing.T) {
	b := newFakeBroker()
	c := NewConnection(testConfig("default", "reports"), b.dial, testLogger())

	if err := c.Establish(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.State() != StateOpen {
		t.Errorf("expected open, got %s", c.State())
	}
	if b.declared["default"] != 1 || b.declared["reports"] != 1 {
		t.Errorf("configured queues should be declared, got %v", b.declared)
	}
	if !b.durable["default"] || !b.durable["reports"] {
		t.Error("configured queues should be durable")
	}
}

func TestConnection_BrokenIsDetectedLazily(t *testing.T) {
	b := newFakeBroker()
	c := NewConnection(testConfig("default"), b.dial, testLogger())
	ctx := context.Background()

	if err := c.Establish(ctx, true); err != nil {
		t.Fatal(err)
	}
	b.lastConn().breakConn()

	if c.State() != StateBroken {
		t.Fatalf("expected broken, got %s", c.State())
	}

	// Следующий запрос канала переводит соединение в Open без ошибки
	ch, err := c.Channel(ctx)
	if err != nil {
		t.Fatalf("channel acquisition should recover transparently: %v", err)
	}
	if ch == nil {
		t.Fatal("expected channel")
	}
	if c.State() != StateOpen {
		t.Errorf("expected open after recovery, got %s", c.State())
	}
	if b.dialCount() != 2 {
		t.Errorf("expected 2 dials (initial + recovery), got %d", b.dialCount())
	}
	if b.declared["default"] != 2 {
		t.Errorf("queues should be re-declared on recovery, got %d", b.declared["default"])
	}
}

func TestConnection_ChannelEstablishesWhenClosed(t *testing.T) {
	b := newFakeBroker()
	c := NewConnection(testConfig(), b.dial, testLogger())

	if _, err := c.Channel(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != StateOpen {
		t.Errorf("expected open, got %s", c.State())
	}
}

func TestConnection_ChannelExhaustionTriggersOneReestablish(t *testing.T) {
	b := newFakeBroker()
	c := NewConnection(testConfig(), b.dial, testLogger())
	ctx := context.Background()

	if err := c.Establish(ctx, true); err != nil {
		t.Fatal(err)
	}

	b.channelErrs = []error{amqp.ErrChannelMax}

	if _, err := c.Channel(ctx); err != nil {
		t.Fatalf("expected recovery from channel exhaustion, got %v", err)
	}
	if b.dialCount() != 2 {
		t.Errorf("expected exactly one re-establish, got %d dials", b.dialCount())
	}
}

func TestConnection_SecondFailureAfterReestablishPropagates(t *testing.T) {
	b := newFakeBroker()
	c := NewConnection(testConfig(), b.dial, testLogger())
	ctx := context.Background()

	if err := c.Establish(ctx, true); err != nil {
		t.Fatal(err)
	}

	// 1: запрос канала, 2: канал для declare при переустановке, 3: повторный запрос
	b.channelErrs = []error{amqp.ErrClosed, nil, amqp.ErrClosed}

	_, err := c.Channel(ctx)
	if !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("expected ErrClosed after single recovery attempt, got %v", err)
	}
	if b.dialCount() != 2 {
		t.Errorf("expected a single re-establish, got %d dials", b.dialCount())
	}
}

func TestConnection_NonConnectionErrorIsNotRecovered(t *testing.T) {
	b := newFakeBroker()
	c := NewConnection(testConfig(), b.dial, testLogger())
	ctx := context.Background()

	if err := c.Establish(ctx, true); err != nil {
		t.Fatal(err)
	}

	errDenied := &amqp.Error{Code: amqp.AccessRefused, Reason: "access refused"}
	b.channelErrs = []error{errDenied}

	_, err := c.Channel(ctx)
	if !errors.Is(err, errDenied) {
		t.Fatalf("expected access refused, got %v", err)
	}
	if b.dialCount() != 1 {
		t.Errorf("should not re-establish on non-connection error, got %d dials", b.dialCount())
	}
}

func TestConnection_EstablishFailure(t *testing.T) {
	b := newFakeBroker()
	b.dialErrs = []error{errTransient}
	c := NewConnection(testConfig(), b.dial, testLogger())

	err := c.Establish(context.Background(), true)
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected dial error, got %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("expected closed, got %s", c.State())
	}
}

func TestConnection_Close(t *testing.T) {
	b := newFakeBroker()
	c := NewConnection(testConfig(), b.dial, testLogger())

	if err := c.Establish(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("expected closed, got %s", c.State())
	}
	if !b.lastConn().IsClosed() {
		t.Error("underlying connection should be closed")
	}

	// Повторный Close безопасен
	if err := c.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestConnection_ReestablishHonoursContext(t *testing.T) {
	b := newFakeBroker()
	cfg := testConfig()
	c := NewConnection(cfg, b.dial, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Channel(ctx)
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected wrapping context.Canceled, got %v", err)
	}
	if !IsConnectionError(err) {
		t.Error("not connected should be classified as a connection error")
	}
	if b.dialCount() != 0 {
		t.Errorf("should not dial with cancelled context, got %d", b.dialCount())
	}
}
