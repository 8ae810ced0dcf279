// taskq worker — выполняет задачи из очереди RabbitMQ.
//
// Worker:
//   - Потребляет сообщения {"task", "params"} из WORKER_QUEUE
//   - Выполняет их executor'ом по имени задачи (http_request, delay)
//   - Отбрасывает дубли по message id (DEDUP_BACKEND: memory, redis, postgres, none)
//   - Отдаёт /healthz и /metrics на HTTP_PORT
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robbitt07/taskqueue/internal/cache"
	"github.com/robbitt07/taskqueue/internal/config"
	"github.com/robbitt07/taskqueue/internal/mq"
	"github.com/robbitt07/taskqueue/internal/repo"
	"github.com/robbitt07/taskqueue/internal/telemetry"
	"github.com/robbitt07/taskqueue/internal/worker"
)

// cleanupInterval — период удаления устаревших записей дедупликации в PostgreSQL.
const cleanupInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "taskq-worker:", err)
		os.Exit(1)
	}
}

// run запускает воркер и возвращается после остановки. Отложенные вызовы
// (закрытие логов, брокера и хранилища) выполняются и при ошибке.
func run() error {
	cfg, err := config.Load("taskq-worker")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, closeLogs := cfg.SetupLogger()
	defer closeLogs()
	logger.Info("starting taskq-worker", "queue", cfg.WorkerQueue, "dedup", cfg.Dedup.Backend)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dedup, closeDedup, err := newDeduplicator(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init deduplication", "backend", cfg.Dedup.Backend, "error", err)
		return err
	}
	defer closeDedup()

	publisher := mq.NewTaskPublisher(cfg.MQ(), logger)
	defer publisher.Close()
	logger.Debug("broker topology", "topology", mq.TopologyInfo(cfg.MQ()))

	w := worker.New(worker.Config{
		Consumer: publisher,
		Queue:    cfg.WorkerQueue,
		Dedup:    dedup,
		Logger:   logger,
	})

	go func() {
		if err := telemetry.Serve(ctx, ":"+cfg.HTTPPort, telemetry.NewOpsMux(), logger); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	if err := w.Run(ctx); err != nil {
		logger.Error("worker stopped with error", "error", err)
		return err
	}

	logger.Info("taskq-worker stopped")
	return nil
}

// newDeduplicator создаёт хранилище обработанных message id по DEDUP_BACKEND.
// Вторым значением возвращается функция освобождения ресурсов.
func newDeduplicator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (worker.Deduplicator, func(), error) {
	switch cfg.Dedup.Backend {
	case config.DedupRedis:
		rdb, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis connected", "addr", cfg.RedisAddr)
		return cache.NewRedisDeduplicator(rdb, cfg.Dedup.TTL), func() { _ = rdb.Close() }, nil

	case config.DedupPostgres:
		pool, err := repo.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}
		processed := repo.NewProcessedRepo(pool)
		if err := processed.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database connected")

		go cleanupProcessed(ctx, processed, cfg.Dedup.TTL, cleanupInterval, logger)
		return processed, pool.Close, nil

	case config.DedupNone:
		return worker.NopDeduplicator{}, func() {}, nil

	default:
		return worker.NewMemoryDeduplicator(cfg.Dedup.TTL), func() {}, nil
	}
}

// cleanupProcessed каждые interval удаляет записи старше ttl.
// ttl <= 0 — записи хранятся бессрочно, очистка не запускается.
func cleanupProcessed(ctx context.Context, processed *repo.ProcessedRepo, ttl, interval time.Duration, logger *slog.Logger) {
	if ttl <= 0 {
		logger.Info("dedup ttl disabled, processed messages are kept")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := processed.DeleteOlderThan(ctx, ttl)
			if err != nil {
				logger.Warn("failed to clean processed messages", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("processed messages cleaned", "deleted", n)
			}
		}
	}
}
