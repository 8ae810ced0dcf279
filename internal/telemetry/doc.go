// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog (json, text, цветной tint)
//   - fluent.go  — отправка логов в Fluent Bit
//   - fanout.go  — рассылка записей нескольким обработчикам
//   - metrics.go — Prometheus метрики
//   - server.go  — HTTP-сервер /healthz и /metrics с graceful shutdown
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
