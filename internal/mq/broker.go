package mq

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Значения по умолчанию для подключения.
const (
	defaultPort               = 5672
	defaultConnectionAttempts = 10
	defaultRetryDelay         = 2 * time.Second
	defaultHeartbeat          = 1200 * time.Second
	defaultReconnectDelay     = 2 * time.Second
)

// Channel — подмножество *amqp.Channel, которым пользуется пакет.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueuePurge(name string, noWait bool) (int, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Conn — соединение с брокером.
type Conn interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer открывает новое соединение с брокером.
type Dialer func(ctx context.Context, cfg Config) (Conn, error)

// Config — параметры подключения к RabbitMQ.
type Config struct {
	Host     string
	Port     int
	VHost    string
	User     string
	Password string

	// Queues — очереди, которые объявляются при каждом (пере)подключении
	// долгоживущего соединения.
	Queues []string

	// ConnectionAttempts — сколько раз пытаться подключиться (default: 10).
	ConnectionAttempts int

	// RetryDelay — пауза между попытками подключения (default: 2s).
	RetryDelay time.Duration

	// Heartbeat — интервал heartbeat (default: 1200s).
	Heartbeat time.Duration

	// ReconnectDelay — пауза перед переустановкой соединения (default: 2s).
	ReconnectDelay time.Duration
}

// withDefaults возвращает копию конфигурации с заполненными значениями по умолчанию.
func (c Config) withDefaults() Config {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if c.VHost == "" {
		c.VHost = "/"
	}
	if c.ConnectionAttempts <= 0 {
		c.ConnectionAttempts = defaultConnectionAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	} else if c.RetryDelay == 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = defaultHeartbeat
	}
	if c.ReconnectDelay < 0 {
		c.ReconnectDelay = 0
	} else if c.ReconnectDelay == 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	return c
}

// URL собирает AMQP URL из конфигурации.
func (c Config) URL() string {
	c = c.withDefaults()
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.User,
		Password: c.Password,
		Vhost:    c.VHost,
	}
	return uri.String()
}

// Addr возвращает host:port брокера (без учётных данных, для логов).
func (c Config) Addr() string {
	c = c.withDefaults()
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// amqpConn адаптирует *amqp.Connection к интерфейсу Conn.
type amqpConn struct {
	*amqp.Connection
}

func (c amqpConn) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// DialAMQP подключается к RabbitMQ, делая до cfg.ConnectionAttempts попыток.
func DialAMQP(ctx context.Context, cfg Config) (Conn, error) {
	cfg = cfg.withDefaults()

	amqpCfg := amqp.Config{
		Heartbeat: cfg.Heartbeat,
		Vhost:     cfg.VHost,
		Locale:    "en_US",
		SASL:      []amqp.Authentication{&amqp.PlainAuth{Username: cfg.User, Password: cfg.Password}},
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectionAttempts; attempt++ {
		conn, err := amqp.DialConfig(cfg.URL(), amqpCfg)
		if err == nil {
			return amqpConn{conn}, nil
		}
		lastErr = err

		if attempt == cfg.ConnectionAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial amqp %s: %w", cfg.Addr(), ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}

	return nil, fmt.Errorf("dial amqp %s after %d attempts: %w", cfg.Addr(), cfg.ConnectionAttempts, lastErr)
}

// declareDurable объявляет долговечную очередь. Повторное объявление безопасно.
func declareDurable(ch Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}
