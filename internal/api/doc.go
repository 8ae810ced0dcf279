// Package api содержит HTTP API для постановки задач в очередь.
//
// Структура:
//   - handler.go      — Handler с DI (publisher, logger)
//   - routes.go       — регистрация маршрутов (chi)
//   - middleware.go   — middleware (logging + метрики, recovery)
//   - response.go     — унифицированные JSON-ответы и обработка ошибок
//   - dto.go          — Data Transfer Objects (request/response)
//   - task_handler.go — обработчики для /tasks и /queues
//
// Маршруты:
//
//	POST /api/v1/tasks          {"task": "...", "params": {...}, "queue": "..."} → 202
//	PUT  /api/v1/queues/{name}  → 204
//	GET  /healthz
//	GET  /metrics
//
// 202 означает, что брокер принял сообщение; выполнение асинхронно.
package api
