package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ClaimState — результат заявки на message id.
type ClaimState int

const (
	// ClaimAcquired — id новый, заявка взята этим воркером.
	ClaimAcquired ClaimState = iota + 1
	// ClaimPending — id заявлен, но выполнение не отмечено завершённым.
	ClaimPending
	// ClaimDone — задача с этим id уже выполнена.
	ClaimDone
)

func (s ClaimState) String() string {
	switch s {
	case ClaimAcquired:
		return "acquired"
	case ClaimPending:
		return "pending"
	case ClaimDone:
		return "done"
	default:
		return fmt.Sprintf("claim(%d)", int(s))
	}
}

// Deduplicator отмечает message id как обрабатываемые и обработанные.
//
// Брокер доставляет сообщения как минимум один раз, и повторная публикация
// после сбоя с неизвестным исходом даёт дубль с тем же message id.
// Заявка проходит два состояния: Claim берёт её как pending, Complete
// после успешного выполнения отмечает done. Release снимает заявку после
// неудачи. Заявка, оставшаяся pending после падения воркера, не блокирует
// повторную доставку того же сообщения.
type Deduplicator interface {
	Claim(ctx context.Context, messageID, task string) (ClaimState, error)
	Complete(ctx context.Context, messageID string) error
	Release(ctx context.Context, messageID string) error
}

// memoryClaim — запись MemoryDeduplicator.
type memoryClaim struct {
	at   time.Time
	done bool
}

// MemoryDeduplicator — in-process хранилище с TTL. Подходит для одного
// экземпляра воркера.
type MemoryDeduplicator struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	seen map[string]memoryClaim
}

// NewMemoryDeduplicator создаёт хранилище. ttl <= 0 — записи не истекают.
func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]memoryClaim),
	}
}

// Claim заявляет message id.
func (d *MemoryDeduplicator) Claim(_ context.Context, messageID, _ string) (ClaimState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.evictLocked(now)

	if c, ok := d.seen[messageID]; ok {
		if c.done {
			return ClaimDone, nil
		}
		return ClaimPending, nil
	}
	d.seen[messageID] = memoryClaim{at: now}
	return ClaimAcquired, nil
}

// Complete отмечает задачу выполненной; TTL отсчитывается заново.
func (d *MemoryDeduplicator) Complete(_ context.Context, messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[messageID] = memoryClaim{at: d.now(), done: true}
	return nil
}

// Release снимает заявку, чтобы повторная публикация могла быть обработана.
func (d *MemoryDeduplicator) Release(_ context.Context, messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, messageID)
	return nil
}

func (d *MemoryDeduplicator) evictLocked(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for id, c := range d.seen {
		if now.Sub(c.at) >= d.ttl {
			delete(d.seen, id)
		}
	}
}

// NopDeduplicator заявляет любой id (дедупликация выключена).
type NopDeduplicator struct{}

func (NopDeduplicator) Claim(context.Context, string, string) (ClaimState, error) {
	return ClaimAcquired, nil
}
func (NopDeduplicator) Complete(context.Context, string) error { return nil }
func (NopDeduplicator) Release(context.Context, string) error  { return nil }
