package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// LogConfig — настройки логирования.
type LogConfig struct {
	// Level — DEBUG, INFO, WARN, ERROR. По умолчанию: INFO.
	Level string

	// Format — "json" (по умолчанию), "text" или "color".
	Format string

	// Writer — куда писать логи. По умолчанию os.Stdout.
	Writer io.Writer
}

// ParseLevel определяет уровень логирования по строке.
// Возможные значения: DEBUG, INFO, WARN, ERROR
// По умолчанию: INFO
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogLevel читает уровень логирования из LOG_LEVEL.
func LogLevel() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// NewHandler создаёт stdout-обработчик по конфигурации.
//
// Формат вывода:
//   - "json" — JSON формат для production
//   - "text" — человекочитаемый формат
//   - "color" — цветной вывод через tint для локальной разработки
func NewHandler(cfg LogConfig) slog.Handler {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	level := ParseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		return slog.NewTextHandler(w, opts)
	case "color":
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  opts.AddSource,
			TimeFormat: "2006-01-02 15:04:05",
		})
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// SetupLogger инициализирует глобальный логгер.
//
// Дополнительные обработчики (например, Fluent Bit) получают те же записи,
// что и stdout.
func SetupLogger(cfg LogConfig, extra ...slog.Handler) *slog.Logger {
	handler := NewHandler(cfg)
	if len(extra) > 0 {
		handler = NewFanoutHandler(append([]slog.Handler{handler}, extra...)...)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithComponent возвращает логгер с добавленным component.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithTask возвращает логгер с добавленными task и message_id.
func WithTask(logger *slog.Logger, task, messageID string) *slog.Logger {
	return logger.With("task", task, "message_id", messageID)
}
