package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robbitt07/taskqueue/internal/telemetry"
)

// State — состояние долгоживущего соединения.
type State int

const (
	// StateClosed — соединение не открыто или закрыто явно.
	StateClosed State = iota
	// StateOpen — соединение установлено.
	StateOpen
	// StateBroken — соединение было открыто, но брокер его закрыл.
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateBroken:
		return "broken"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Connection — долгоживущее соединение с RabbitMQ, которое переустанавливается
// лениво: разрыв обнаруживается только при следующем обращении к Channel.
//
// Фонового health-check нет. Мьютекс защищает внутреннее состояние,
// но соединение рассчитано на одного потребителя.
type Connection struct {
	cfg    Config
	dial   Dialer
	logger *slog.Logger

	// sleep — пауза перед переподключением (подменяется в тестах).
	sleep func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	conn Conn
}

// NewConnection создаёт соединение в состоянии Closed. Подключение
// происходит при первом Establish или Channel.
func NewConnection(cfg Config, dial Dialer, logger *slog.Logger) *Connection {
	if dial == nil {
		dial = DialAMQP
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Connection{
		cfg:    cfg.withDefaults(),
		dial:   dial,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// State возвращает текущее состояние соединения.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Connection) stateLocked() State {
	if c.conn == nil {
		return StateClosed
	}
	if c.conn.IsClosed() {
		return StateBroken
	}
	return StateOpen
}

// Establish (пере)устанавливает соединение: закрывает старое, открывает
// новое и объявляет все очереди из конфигурации.
//
// initial=true — первое подключение: пишется info-лог и нет паузы.
func (c *Connection) Establish(ctx context.Context, initial bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.establishLocked(ctx, initial)
}

func (c *Connection) establishLocked(ctx context.Context, initial bool) error {
	if initial {
		c.logger.Info("establishing connection with RabbitMQ", "host", c.cfg.Addr())
	}

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	if !initial {
		if err := c.sleep(ctx, c.cfg.ReconnectDelay); err != nil {
			return err
		}
	}

	conn, err := c.dial(ctx, c.cfg)
	if err != nil {
		c.logger.Error("failed to connect to RabbitMQ", "host", c.cfg.Addr(), "error", err)
		return fmt.Errorf("establish connection: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	for _, queue := range c.cfg.Queues {
		if err := declareDurable(ch, queue); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return err
		}
	}
	_ = ch.Close()

	c.conn = conn

	if !initial {
		telemetry.Reconnects.Inc()
	}
	return nil
}

// Channel возвращает новый канал на долгоживущем соединении.
//
// Если соединения нет или оно закрыто брокером, оно переустанавливается.
// Если открыть канал не удалось из-за ошибки соединения или исчерпания
// каналов, делается ровно одна повторная переустановка.
func (c *Connection) Channel(ctx context.Context) (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != StateOpen {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
		c.logger.Warn("re-establishing connection with RabbitMQ", "host", c.cfg.Addr())
		if err := c.establishLocked(ctx, false); err != nil {
			return nil, err
		}
	}

	ch, err := c.conn.Channel()
	if err == nil {
		return ch, nil
	}
	if !IsConnectionError(err) {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c.logger.Warn("re-establishing connection with RabbitMQ",
		"host", c.cfg.Addr(),
		"error", err,
	)
	if err := c.establishLocked(ctx, false); err != nil {
		return nil, err
	}

	ch, err = c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Close закрывает соединение. Повторный вызов безопасен.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil

	if conn.IsClosed() {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}

	c.logger.Info("connection closed")
	return nil
}

// sleepCtx ждёт d или отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
