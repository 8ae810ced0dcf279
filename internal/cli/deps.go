package cli

import (
	"context"

	"github.com/robbitt07/taskqueue/internal/admin"
	"github.com/robbitt07/taskqueue/internal/mq"
)

// Broker — операции с брокером, которые нужны командам CLI.
// Реализуется *mq.TaskPublisher.
type Broker interface {
	PublishTask(ctx context.Context, queue, task string, params map[string]any) error
	DeclareQueues(ctx context.Context, queues []string) error
	Purge(ctx context.Context, queues []string) (map[string]int, error)
	Consume(ctx context.Context, queue string, handler mq.Handler) error
}

// Admin — операции management API. Реализуется *admin.Client.
type Admin interface {
	CreateVHost(ctx context.Context, vhost string) (bool, error)
	ListQueues(ctx context.Context, vhost string) ([]admin.Queue, error)
	QueueNames(ctx context.Context, vhost string) ([]string, error)
}

// Deps — ленивые фабрики зависимостей команд. Вызываются после разбора
// флагов, поэтому учитывают PersistentFlags корневой команды.
type Deps struct {
	Broker func() Broker
	Admin  func() Admin
	Output func() *Output

	// VHost — виртуальный хост по умолчанию для команд management API.
	VHost string
	// Queues — очереди по умолчанию для declare.
	Queues []string
}
