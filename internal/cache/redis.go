// Package cache — хранилище дедупликации message id в Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robbitt07/taskqueue/internal/worker"
)

const keyPrefix = "taskqueue:processed:"

// ErrEmptyMessageID — не указан message id.
var ErrEmptyMessageID = errors.New("message id is empty")

// NewClient подключается к Redis и проверяет соединение.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Значения ключа заявки.
const (
	statePending = "pending"
	stateDone    = "done"
)

// claimAttempts — попытки заявки, если ключ исчез между SETNX и GET.
const claimAttempts = 2

// RedisDeduplicator заявляет message id через SET NX с TTL. Общий для всех
// экземпляров воркера.
type RedisDeduplicator struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisDeduplicator создаёт хранилище. ttl <= 0 — ключи не истекают.
func NewRedisDeduplicator(client redis.Cmdable, ttl time.Duration) *RedisDeduplicator {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisDeduplicator{client: client, ttl: ttl}
}

// Claim берёт заявку в состоянии pending или сообщает состояние
// существующей.
func (d *RedisDeduplicator) Claim(ctx context.Context, messageID, _ string) (worker.ClaimState, error) {
	if messageID == "" {
		return 0, ErrEmptyMessageID
	}
	key := keyPrefix + messageID

	for attempt := 0; attempt < claimAttempts; attempt++ {
		ok, err := d.client.SetNX(ctx, key, statePending, d.ttl).Result()
		if err != nil {
			return 0, fmt.Errorf("setnx %s: %w", messageID, err)
		}
		if ok {
			return worker.ClaimAcquired, nil
		}

		state, err := d.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// ключ истёк или снят Release; пробуем заявить снова
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("get %s: %w", messageID, err)
		}
		if state == stateDone {
			return worker.ClaimDone, nil
		}
		return worker.ClaimPending, nil
	}
	return worker.ClaimPending, nil
}

// Complete отмечает заявку выполненной; TTL отсчитывается заново.
func (d *RedisDeduplicator) Complete(ctx context.Context, messageID string) error {
	if err := d.client.Set(ctx, keyPrefix+messageID, stateDone, d.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", messageID, err)
	}
	return nil
}

// Release удаляет заявку.
func (d *RedisDeduplicator) Release(ctx context.Context, messageID string) error {
	if err := d.client.Del(ctx, keyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("del %s: %w", messageID, err)
	}
	return nil
}
