package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrEmptyDSN — не задан адрес БД (DB_URL).
	ErrEmptyDSN = errors.New("database url is empty")

	// ErrEmptyMessageID — не указан message id.
	ErrEmptyMessageID = errors.New("message id is empty")
)
