package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robbitt07/taskqueue/internal/worker"
)

// fakeRedis — map вместо Redis для команд, которыми пользуется
// RedisDeduplicator. Остальные методы Cmdable не вызываются.
type fakeRedis struct {
	redis.Cmdable

	keys map[string]string
	err  error

	// vanish — ключ исчезает после SETNX (истёк TTL между командами).
	vanish bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		if f.vanish {
			delete(f.keys, key)
			f.vanish = false
		}
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.keys[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.keys[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.keys, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisDeduplicator_EmptyID(t *testing.T) {
	d := NewRedisDeduplicator(nil, 0)
	if _, err := d.Claim(context.Background(), "", "task"); !errors.Is(err, ErrEmptyMessageID) {
		t.Errorf("expected ErrEmptyMessageID, got %v", err)
	}
}

func TestNewRedisDeduplicator_NegativeTTL(t *testing.T) {
	d := NewRedisDeduplicator(nil, -1)
	if d.ttl != 0 {
		t.Errorf("negative ttl should mean no expiry, got %v", d.ttl)
	}
}

func TestRedisDeduplicator_States(t *testing.T) {
	d := NewRedisDeduplicator(newFakeRedis(), time.Minute)
	ctx := context.Background()

	steps := []struct {
		action func() error
		want   worker.ClaimState
	}{
		{nil, worker.ClaimAcquired},
		{nil, worker.ClaimPending},
		{func() error { return d.Complete(ctx, "m1") }, worker.ClaimDone},
		{func() error { return d.Release(ctx, "m1") }, worker.ClaimAcquired},
	}

	for i, step := range steps {
		if step.action != nil {
			if err := step.action(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
		}
		state, err := d.Claim(ctx, "m1", "send_email")
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if state != step.want {
			t.Errorf("step %d: expected %s, got %s", i, step.want, state)
		}
	}
}

func TestRedisDeduplicator_KeyVanishedBetweenCommands(t *testing.T) {
	f := newFakeRedis()
	f.keys[keyPrefix+"m1"] = statePending
	f.vanish = true
	d := NewRedisDeduplicator(f, time.Minute)

	state, err := d.Claim(context.Background(), "m1", "send_email")
	if err != nil {
		t.Fatal(err)
	}
	if state != worker.ClaimAcquired {
		t.Errorf("vanished key should be claimed again, got %s", state)
	}
}

func TestRedisDeduplicator_StoreError(t *testing.T) {
	f := newFakeRedis()
	f.err = errors.New("connection refused")
	d := NewRedisDeduplicator(f, time.Minute)

	if _, err := d.Claim(context.Background(), "m1", "x"); !errors.Is(err, f.err) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}
