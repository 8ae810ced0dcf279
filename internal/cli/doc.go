// Package cli реализует инструмент командной строки taskq.
//
// # Обзор
//
// CLI работает с брокером напрямую через TaskPublisher и с management API
// RabbitMQ через admin.Client. Используется для публикации задач,
// провижининга очередей и отладки.
//
// # Ключевые компоненты
//
// ## Deps
//
// Фабрики Broker, Admin и Output. Создаются в main как замыкания, чтобы
// зависимости строились после разбора PersistentFlags, а тесты могли
// подставить фейки.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: taskq queues list --json | jq .
//
// ## Commands
//
//   - publish <task> [--queue] [--params] [--count]
//   - declare [queue...]
//   - consume [queue] [--max]
//   - purge [queue...]
//   - vhost create <name>
//   - queues list [--vhost]
package cli
