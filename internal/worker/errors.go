package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownTask — нет executor'а для задачи с таким именем.
	ErrUnknownTask = errors.New("unknown task")

	// ErrInvalidEnvelope — тело сообщения не является конвертом задачи.
	ErrInvalidEnvelope = errors.New("invalid task envelope")

	// ErrInvalidParams — параметры не прошли проверку по схеме задачи.
	ErrInvalidParams = errors.New("invalid task params")

	// ErrExecutionFailed — выполнение задачи завершилось ошибкой.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrHTTPRequest — HTTP-запрос завершился ошибкой.
	ErrHTTPRequest = errors.New("http request failed")
)
