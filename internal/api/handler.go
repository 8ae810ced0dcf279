package api

import (
	"context"
	"log/slog"
)

// Publisher — операции TaskPublisher, которые нужны API.
type Publisher interface {
	PublishTask(ctx context.Context, queue, task string, params map[string]any) error
	QueueDeclare(ctx context.Context, queue string) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	publisher Publisher
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Publisher Publisher
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		publisher: cfg.Publisher,
		logger:    logger,
	}
}
