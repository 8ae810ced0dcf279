// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - broker.go     — конфигурация, интерфейсы Conn/Channel, подключение с попытками
//   - connection.go — долгоживущее соединение с ленивым переподключением
//   - publisher.go  — публикация с ограниченным числом повторов
//   - consumer.go   — потребление сообщений (prefetch=1, ручной ack)
//   - message.go    — конверт задачи {"task", "params"}
//   - topology.go   — объявление очередей
//   - errors.go     — ошибки и классификация ошибок соединения
//
// Жизненный цикл долгоживущего соединения:
//
//	Closed --Establish--> Open
//	Open   --разрыв брокером--> Broken (обнаруживается при следующем Channel)
//	Broken --Channel--> Open
//	Open   --Close--> Closed
//
// Публикация не использует publisher confirms: надёжность обеспечивается
// локальными повторами, поэтому возможна повторная доставка. Все попытки
// одного вызова Publish несут одинаковый MessageId, по которому
// потребитель может отбрасывать дубли.
package mq
