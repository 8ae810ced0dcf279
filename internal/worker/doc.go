// Package worker выполняет задачи, опубликованные через TaskPublisher.
//
// # Обзор
//
// Worker потребляет сообщения вида {"task": <имя>, "params": {...}} из
// очереди RabbitMQ и выполняет их executor'ом, зарегистрированным под
// именем задачи. Workers масштабируются горизонтально: несколько
// экземпляров потребляют из одной очереди.
//
// # Ключевые компоненты
//
// ## Worker
//
// Создаётся через New(cfg Config) и запускается методом Run(ctx):
//
//	w := worker.New(worker.Config{
//	    Consumer: publisher,
//	    Queue:    "default",
//	    Dedup:    cache.NewRedisDeduplicator(rdb, 24*time.Hour),
//	    Logger:   logger,
//	})
//
//	if err := w.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// ## Executor
//
// Интерфейс для выполнения задачи конкретного типа:
//
//	type Executor interface {
//	    Execute(ctx context.Context, params map[string]any) (*ExecutionResult, error)
//	}
//
// Реализации:
//   - HTTPExecutor ("http_request") — исходящий HTTP-запрос (method, url, headers, body, timeout)
//   - DelayExecutor ("delay") — задержка на указанное количество секунд
//
// ## Registry
//
// Реестр executor'ов по имени задачи. К executor'у можно привязать
// JSON Schema параметров (RegisterWithSchema), параметры проверяются до
// выполнения.
//
// # Обработка сообщения
//
//  1. Проверка конверта по JSON Schema
//  2. Поиск executor'а, проверка параметров
//  3. Claim message id в Deduplicator: выполненный id (done) — ack без
//     выполнения; id в работе (pending) — ack, если сообщение не
//     redelivered, иначе выполнение (прежний воркер упал)
//  4. Выполнение с таймаутом TaskTimeout
//  5. Успех → Complete id и ack; ошибка → Release id и nack без возврата
//     в очередь
//
// Недоступное хранилище дедупликации и остановка воркера во время
// выполнения возвращают сообщение в очередь (mq.Requeue).
//
// # Ошибки
//
// Пакет различает два уровня ошибок:
//   - Инфраструктурные (error от Execute) — сеть упала, DNS не резолвится
//   - Логические (ExecutionResult.Error) — HTTP 500 и подобные
//
// Обе приводят к nack. Повторы не делаются: сообщение, которое не удалось
// обработать, не должно зацикливаться.
package worker
