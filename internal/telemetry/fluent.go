package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// FluentConfig — параметры подключения к Fluent Bit.
type FluentConfig struct {
	Host      string // например, "127.0.0.1" или "fluent-bit" в Docker
	Port      int    // например, 24224
	TagPrefix string // общий префикс тегов этого сервиса
	Level     string
}

// poster — то, что FluentHandler требует от клиента.
type poster interface {
	Post(tag string, message interface{}) error
}

// FluentHandler — slog.Handler, отправляющий записи в Fluent Bit.
// Тег записи — её уровень в нижнем регистре ("info", "error", ...).
type FluentHandler struct {
	client poster
	closer func() error
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

// NewFluentHandler создаёт клиента Fluent Bit и оборачивает его в slog.Handler.
//
// Клиент асинхронный: успешное создание не гарантирует соединение,
// ошибки проявятся при первой отправке.
func NewFluentHandler(cfg FluentConfig) (*FluentHandler, error) {
	if cfg.TagPrefix == "" {
		return nil, fmt.Errorf("fluent tag prefix is required")
	}

	client, err := fluent.New(fluent.Config{
		FluentHost: cfg.Host,
		FluentPort: cfg.Port,
		TagPrefix:  cfg.TagPrefix,
		Async:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("create fluent client: %w", err)
	}

	return &FluentHandler{
		client: client,
		closer: client.Close,
		level:  ParseLevel(cfg.Level),
	}, nil
}

func (h *FluentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *FluentHandler) Handle(_ context.Context, r slog.Record) error {
	return h.client.Post(strings.ToLower(r.Level.String()), h.recordToMap(r))
}

// recordToMap превращает запись в плоскую map для Fluent.
// Атрибуты групп получают префикс "group.".
func (h *FluentHandler) recordToMap(r slog.Record) map[string]any {
	data := make(map[string]any, len(h.attrs)+r.NumAttrs()+3)
	for _, a := range h.attrs {
		addAttr(data, "", a)
	}

	prefix := ""
	if h.group != "" {
		prefix = h.group + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(data, prefix, a)
		return true
	})

	data["level"] = r.Level.String()
	data["message"] = r.Message
	data["timestamp"] = r.Time.UTC().Format(time.RFC3339Nano)
	return data
}

func addAttr(data map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(data, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}

	switch val := v.Any().(type) {
	case error:
		data[prefix+a.Key] = val.Error()
	case time.Duration:
		data[prefix+a.Key] = val.String()
	case time.Time:
		data[prefix+a.Key] = val.UTC().Format(time.RFC3339Nano)
	default:
		data[prefix+a.Key] = val
	}
}

func (h *FluentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	if h.group == "" {
		next.attrs = append(next.attrs, attrs...)
	} else {
		next.attrs = append(next.attrs, slog.Attr{Key: h.group, Value: slog.GroupValue(attrs...)})
	}
	return &next
}

func (h *FluentHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		next.group = h.group + "." + name
	} else {
		next.group = name
	}
	return &next
}

// Close закрывает клиента Fluent Bit.
func (h *FluentHandler) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer()
}
