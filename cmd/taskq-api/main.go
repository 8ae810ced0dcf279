// taskq api — HTTP API для постановки задач в очередь.
//
//	POST /api/v1/tasks
//	PUT  /api/v1/queues/{name}
//	GET  /healthz, /metrics
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robbitt07/taskqueue/internal/api"
	"github.com/robbitt07/taskqueue/internal/config"
	"github.com/robbitt07/taskqueue/internal/mq"
	"github.com/robbitt07/taskqueue/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "taskq-api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("taskq-api")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, closeLogs := cfg.SetupLogger()
	defer closeLogs()
	logger.Info("starting taskq-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	publisher := mq.NewTaskPublisher(cfg.MQ(), logger)
	defer publisher.Close()

	// Очереди из RABBITMQ_QUEUES объявляются заранее; недоступный брокер
	// не мешает старту, публикации вернут 503.
	if err := publisher.DeclareQueues(ctx, cfg.RabbitMQ.Queues); err != nil {
		logger.Warn("failed to declare queues", "error", err)
	}

	handler := api.NewHandler(api.Config{
		Publisher: publisher,
		Logger:    logger,
	})

	if err := telemetry.Serve(ctx, ":"+cfg.HTTPPort, handler.Routes(), logger); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("stopped")
	return nil
}
