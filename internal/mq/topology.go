package mq

import (
	"context"
	"fmt"
	"strings"
)

// DeclareQueues объявляет набор долговечных очередей на одном
// короткоживущем соединении. Используется для провижининга вне путей
// публикации и потребления.
func (p *TaskPublisher) DeclareQueues(ctx context.Context, queues []string) error {
	for _, queue := range queues {
		if queue == "" {
			return ErrEmptyQueue
		}
	}

	return p.withChannel(ctx, func(ch Channel) error {
		for _, queue := range queues {
			if err := declareDurable(ch, queue); err != nil {
				return err
			}
			p.logger.Debug("queue declared", "queue", queue)
		}
		return nil
	})
}

// ParseQueues разбирает список очередей через запятую, отбрасывая пустые
// элементы и дубликаты.
func ParseQueues(s string) []string {
	seen := make(map[string]bool)
	var queues []string
	for _, part := range strings.Split(s, ",") {
		q := strings.TrimSpace(part)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		queues = append(queues, q)
	}
	return queues
}

// TopologyInfo возвращает описание очередей для логирования.
func TopologyInfo(cfg Config) string {
	cfg = cfg.withDefaults()

	var b strings.Builder
	fmt.Fprintf(&b, "RabbitMQ %s vhost=%s\n", cfg.Addr(), cfg.VHost)
	fmt.Fprintln(&b, "  (default exchange)")
	for i, q := range cfg.Queues {
		branch := "├──"
		if i == len(cfg.Queues)-1 {
			branch = "└──"
		}
		fmt.Fprintf(&b, "  %s %s [durable, routing: %s]\n", branch, q, q)
	}
	return b.String()
}
