package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/robbitt07/taskqueue/internal/worker"
)

// dbtx — подмножество *pgxpool.Pool / pgx.Tx, которым пользуется репозиторий.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const processedSchema = `
	CREATE TABLE IF NOT EXISTS processed_messages (
		message_id TEXT PRIMARY KEY,
		task       TEXT NOT NULL,
		done       BOOLEAN NOT NULL DEFAULT FALSE,
		claimed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	ALTER TABLE processed_messages ADD COLUMN IF NOT EXISTS done BOOLEAN NOT NULL DEFAULT FALSE
`

// claimAttempts — попытки заявки, если строка исчезла между INSERT и SELECT.
const claimAttempts = 2

// ProcessedRepo — журнал обработанных message id для дедупликации
// на стороне воркера.
type ProcessedRepo struct {
	db dbtx
}

// NewProcessedRepo создаёт новый ProcessedRepo.
func NewProcessedRepo(db dbtx) *ProcessedRepo {
	return &ProcessedRepo{db: db}
}

// EnsureSchema создаёт таблицу, если её нет.
func (r *ProcessedRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, processedSchema); err != nil {
		return fmt.Errorf("create processed_messages: %w", err)
	}
	return nil
}

// Claim записывает message id в состоянии pending. Если id уже записан,
// возвращает его состояние.
func (r *ProcessedRepo) Claim(ctx context.Context, messageID, task string) (worker.ClaimState, error) {
	if messageID == "" {
		return 0, ErrEmptyMessageID
	}

	query := `
		INSERT INTO processed_messages (message_id, task)
		VALUES ($1, $2)
		ON CONFLICT (message_id) DO NOTHING
	`

	for attempt := 0; attempt < claimAttempts; attempt++ {
		tag, err := r.db.Exec(ctx, query, messageID, task)
		if err != nil {
			return 0, fmt.Errorf("insert processed message: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return worker.ClaimAcquired, nil
		}

		var done bool
		err = r.db.QueryRow(ctx,
			`SELECT done FROM processed_messages WHERE message_id = $1`,
			messageID,
		).Scan(&done)
		if errors.Is(err, pgx.ErrNoRows) {
			// строку удалили Release или очистка; пробуем заявить снова
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("select processed message: %w", err)
		}
		if done {
			return worker.ClaimDone, nil
		}
		return worker.ClaimPending, nil
	}
	return worker.ClaimPending, nil
}

// Complete отмечает message id выполненным.
func (r *ProcessedRepo) Complete(ctx context.Context, messageID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE processed_messages SET done = TRUE, claimed_at = now() WHERE message_id = $1`,
		messageID,
	)
	if err != nil {
		return fmt.Errorf("complete processed message: %w", err)
	}
	return nil
}

// Release удаляет запись о message id.
func (r *ProcessedRepo) Release(ctx context.Context, messageID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM processed_messages WHERE message_id = $1`, messageID); err != nil {
		return fmt.Errorf("delete processed message: %w", err)
	}
	return nil
}

// DeleteOlderThan удаляет записи старше age и возвращает их количество.
// age <= 0 означает бессрочное хранение: ничего не удаляется.
func (r *ProcessedRepo) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, nil
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM processed_messages WHERE claimed_at < $1`,
		time.Now().Add(-age),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired processed messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
